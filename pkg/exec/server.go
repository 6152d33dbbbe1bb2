package exec

import (
	"context"
	"errors"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"k8s.io/klog/v2"

	"github.com/kubechat-dev/kubechat/pkg/api"
	"github.com/kubechat-dev/kubechat/pkg/httpserver"
)

var commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kubechat_executor_commands_total",
	Help: "Commands processed by the executor service, by tool and outcome.",
}, []string{"tool", "outcome"})

const (
	defaultCommandTimeout = 30 * time.Second
	maxCommandTimeout     = 10 * time.Minute
	versionProbeTimeout   = 5 * time.Second
)

// HealthResponse reports the executor's view of its local tooling.
type HealthResponse struct {
	Status          string `json:"status"`
	Service         string `json:"service"`
	KubectlVersion  string `json:"kubectl_version,omitempty"`
	HelmVersion     string `json:"helm_version,omitempty"`
	KubeconfigFound bool   `json:"kubeconfig_found"`
}

// Service is the HTTP boundary of the command executor.
type Service struct {
	runner Runner
}

// NewService creates the executor HTTP service around a Runner.
func NewService(runner Runner) *Service {
	return &Service{runner: runner}
}

// Routes registers the service's handlers on mux.
func (s *Service) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /run", s.handleRun)
	mux.HandleFunc("POST /execute", s.handleExecuteLegacy)
	mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Service) handleRun(w http.ResponseWriter, r *http.Request) {
	var req api.ExecuteRequest
	if err := httpserver.DecodeJSON(r, &req); err != nil {
		httpserver.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.execute(r.Context(), w, req.Command, req.TimeoutSeconds)
}

// handleExecuteLegacy accepts bare kubectl arguments without the tool prefix,
// the contract of the original /execute endpoint.
func (s *Service) handleExecuteLegacy(w http.ResponseWriter, r *http.Request) {
	var req api.ExecuteRequest
	if err := httpserver.DecodeJSON(r, &req); err != nil {
		httpserver.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.execute(r.Context(), w, "kubectl "+strings.TrimSpace(req.Command), req.TimeoutSeconds)
}

func (s *Service) execute(ctx context.Context, w http.ResponseWriter, command string, timeoutSeconds int) {
	timeout := defaultCommandTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if timeout > maxCommandTimeout {
		timeout = maxCommandTimeout
	}

	tool := "unknown"
	if fields := strings.Fields(command); len(fields) > 0 {
		tool = fields[0]
	}

	result, err := s.runner.Run(ctx, command, timeout)
	if err != nil {
		if errors.Is(err, ErrCommandNotAllowed) {
			commandsTotal.WithLabelValues(tool, "rejected").Inc()
			httpserver.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		commandsTotal.WithLabelValues(tool, "error").Inc()
		klog.Errorf("executing command %q: %v", command, err)
		httpserver.WriteError(w, http.StatusInternalServerError, "Error executing command: "+err.Error())
		return
	}

	outcome := "success"
	if result.ReturnCode != 0 {
		outcome = "failure"
	}
	commandsTotal.WithLabelValues(tool, outcome).Inc()
	httpserver.WriteJSON(w, http.StatusOK, result)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kubectlVersion := probeVersion(ctx, "kubectl", "version", "--client", "--short")
	helmVersion := probeVersion(ctx, "helm", "version", "--short")

	status := "healthy"
	if kubectlVersion == "" || helmVersion == "" {
		status = "degraded"
	}

	httpserver.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:          status,
		Service:         "executor",
		KubectlVersion:  kubectlVersion,
		HelmVersion:     helmVersion,
		KubeconfigFound: kubeconfigFound(ctx),
	})
}

func probeVersion(ctx context.Context, name string, args ...string) string {
	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, name, args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func kubeconfigFound(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	return exec.CommandContext(probeCtx, "kubectl", "config", "current-context").Run() == nil
}
