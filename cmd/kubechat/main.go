package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/kubechat-dev/kubechat/pkg/agent"
	"github.com/kubechat-dev/kubechat/pkg/config"
	"github.com/kubechat-dev/kubechat/pkg/conversations"
	"github.com/kubechat-dev/kubechat/pkg/exec"
	"github.com/kubechat-dev/kubechat/pkg/fetch"
	"github.com/kubechat-dev/kubechat/pkg/httpserver"
	"github.com/kubechat-dev/kubechat/pkg/journal"
	"github.com/kubechat-dev/kubechat/pkg/llm"
	"github.com/kubechat-dev/kubechat/pkg/llm/provider"
)

// set at build time with -ldflags
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "kubechat",
		Short:        "KubeChat runs Kubernetes commands on behalf of an LLM agent",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to an optional YAML config file")

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	loadConfig := func() (config.Config, error) {
		// A missing .env file is the normal case outside docker-compose.
		_ = godotenv.Load()
		cfg, err := config.FromEnv()
		if err != nil {
			return cfg, err
		}
		if configPath != "" {
			if err := cfg.LoadFile(configPath); err != nil {
				return cfg, err
			}
		}
		return cfg, cfg.Validate()
	}

	root.AddCommand(
		newAgentCommand(loadConfig),
		newGatewayCommand(loadConfig),
		newExecutorCommand(loadConfig),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("kubechat %s\n", version)
			},
		},
	)
	return root
}

func newAgentCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the agent service (chat API and command loop)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			recorder := journal.Recorder(journal.NopRecorder{})
			if cfg.JournalPath != "" {
				fileRecorder, err := journal.NewFileRecorder(cfg.JournalPath)
				if err != nil {
					return err
				}
				defer fileRecorder.Close()
				recorder = fileRecorder
			}

			a, err := agent.New(
				llm.NewClient(cfg.GatewayURL, cfg.LLMTimeout),
				exec.NewClient(cfg.ExecutorURL, cfg.CommandTimeout),
				fetch.New(cfg.FetchTimeout),
				recorder,
				agent.Options{
					Model:          cfg.Model,
					MaxIterations:  cfg.MaxIterations,
					CommandTimeout: cfg.CommandTimeout,
				},
			)
			if err != nil {
				return err
			}

			store := conversations.NewMemoryStore(cfg.MaxConversations)
			service := agent.NewService(a, store)
			service.GatewayURL = cfg.GatewayURL
			service.ExecutorURL = cfg.ExecutorURL

			mux := http.NewServeMux()
			service.Routes(mux)
			return serve(cmd, "agent", cfg.AgentListenAddr, mux)
		},
	}
}

func newGatewayCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "llm-gateway",
		Short: "Run the LLM gateway service (provider-neutral completion API)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var p provider.Provider
			switch cfg.Provider {
			case "openrouter":
				p = provider.NewOpenRouter(cfg.OpenRouterAPIKey, cfg.LLMTimeout)
			default:
				p = provider.NewAnthropic(cfg.AnthropicAPIKey, cfg.LLMTimeout)
			}
			if !p.Configured() {
				klog.Warningf("provider %s has no API key configured; completions will fail until one is set", p.Name())
			}

			mux := http.NewServeMux()
			llm.NewService(p).Routes(mux)
			return serve(cmd, "llm-gateway", cfg.GatewayListenAddr, mux)
		},
	}
}

func newExecutorCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "executor",
		Short: "Run the executor service (allow-listed kubectl and helm commands)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			exec.NewService(exec.NewLocalRunner()).Routes(mux)
			return serve(cmd, "executor", cfg.ExecutorListenAddr, mux)
		},
	}
}

func serve(cmd *cobra.Command, name, listenAddr string, mux *http.ServeMux) error {
	mux.Handle("GET /metrics", promhttp.Handler())

	server, err := httpserver.New(listenAddr, httpserver.LogRequests(mux))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	klog.Infof("%s listening on %s", name, server.Addr())
	return server.Run(ctx)
}
