package httpapi

import "net/http"

// NewRouter registers the gateway routes. Both the trailing-slash and bare
// forms of each path are accepted.
func NewRouter(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process/{$}", h.ProcessFile)
	mux.HandleFunc("POST /process", h.ProcessFile)
	mux.HandleFunc("POST /process-url/{$}", h.ProcessURL)
	mux.HandleFunc("POST /process-url", h.ProcessURL)
	mux.HandleFunc("GET /healthz", h.Healthz)
	return mux
}
