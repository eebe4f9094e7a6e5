package httpapi

import (
	"encoding/json"
	"net/http"

	"shopflow/internal/trace"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

const recentTraceLimit = 200

// mountTrace exposes the service's trace log. Both services carry these
// routes so a saga can be followed end to end by one trace id.
func mountTrace(mux *http.ServeMux, store *trace.Store) {
	mux.HandleFunc("GET /trace/recent", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.Recent(recentTraceLimit))
	})
	mux.HandleFunc("GET /trace/{traceID}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.ByID(r.PathValue("traceID")))
	})
}
