package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"spoolscan/internal/analysis"
	"spoolscan/internal/history"
)

// AnalyzeHandler serves the analysis endpoints: an SSE feed for plain
// browsers and a websocket variant. Both push the same event sequence:
// zero or more log/box events, then exactly one complete or error event.
type AnalyzeHandler struct {
	Svc     *analysis.Service
	History *history.Store
}

type analyzeRequest struct {
	Image string `json:"image"`
}

type errorEvent struct {
	Message string `json:"message"`
}

func (h *AnalyzeHandler) HandleAnalyzeSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	img, err := decodeImagePayload(req.Image)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	writeEvent := func(event string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	rec, err := h.Svc.Analyze(r.Context(), img, analysis.Callbacks{
		OnLog: func(e analysis.LogEvent) { writeEvent("log", e) },
		OnBox: func(b analysis.BoxAnnotation) { writeEvent("box", b) },
	})
	if err != nil {
		writeEvent("error", errorEvent{Message: err.Error()})
		return
	}
	writeEvent("complete", rec)
}

// HandleHistory lists recent completed analyses. 404s when no history
// backend is configured, which keeps the endpoint honest for the UI.
func (h *AnalyzeHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.History == nil {
		http.Error(w, "history is not configured", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.History.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}
