package server

import (
	"net/http"

	"spoolscan/internal/server/middleware"
)

func NewMux(analyze *AnalyzeHandler, relay http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/analyze", analyze.HandleAnalyzeSSE)
	mux.HandleFunc("/api/analyze/ws", analyze.HandleAnalyzeWS)
	mux.HandleFunc("/api/history", analyze.HandleHistory)

	if relay != nil {
		mux.Handle("/relay/", http.StripPrefix("/relay", relay))
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return middleware.CORS(mux)
}
