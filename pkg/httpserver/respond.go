package httpserver

import (
	"encoding/json"
	"net/http"

	"k8s.io/klog/v2"

	"github.com/kubechat-dev/kubechat/pkg/api"
)

// WriteJSON writes v as a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Errorf("writing JSON response: %v", err)
	}
}

// WriteError writes an error body in the {"detail": ...} shape.
func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, api.ErrorResponse{Detail: detail})
}

// DecodeJSON decodes the request body into v. Unknown fields are ignored.
func DecodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// LogRequests wraps a handler with request logging.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		klog.V(2).Infof("%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
