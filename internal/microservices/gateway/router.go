package gateway

import "net/http"

func Router(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/tools", h.ListTools)
	mux.HandleFunc("POST /api/v1/tools/{name}", h.CallTool)
	mux.HandleFunc("POST /api/v1/sessions", h.StartSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/messages", h.AddMessage)
	mux.HandleFunc("POST /api/v1/sessions/{id}/end", h.EndSession)
	mux.HandleFunc("GET /api/v1/usage", h.Usage)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}
