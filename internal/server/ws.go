package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"spoolscan/internal/analysis"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type wsEvent struct {
	Type   string                  `json:"type"`
	Log    *analysis.LogEvent      `json:"log,omitempty"`
	Box    *analysis.BoxAnnotation `json:"box,omitempty"`
	Record *analysis.Record        `json:"record,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// HandleAnalyzeWS runs one analysis per connection: the client sends a
// single {image} message, the server pushes log/box events and a terminal
// complete or error event, then closes.
func (h *AnalyzeHandler) HandleAnalyzeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		log.Printf("analyze ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	var req analyzeRequest
	if err := conn.ReadJSON(&req); err != nil {
		return
	}
	// Keep reading so pongs and the client close frame are processed.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	img, err := decodeImagePayload(req.Image)
	if err != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = conn.WriteJSON(wsEvent{Type: "error", Error: err.Error()})
		return
	}

	writeCh := make(chan wsEvent, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-writeCh:
				if !ok {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// A dead writer must release the producer, or a disconnect mid-stream
	// would leave the analysis callbacks blocked on a full channel.
	send := func(ev wsEvent) {
		select {
		case writeCh <- ev:
		case <-done:
		}
	}

	rec, err := h.Svc.Analyze(r.Context(), img, analysis.Callbacks{
		OnLog: func(e analysis.LogEvent) {
			send(wsEvent{Type: "log", Log: &e})
		},
		OnBox: func(b analysis.BoxAnnotation) {
			send(wsEvent{Type: "box", Box: &b})
		},
	})
	if err != nil {
		send(wsEvent{Type: "error", Error: err.Error()})
	} else {
		send(wsEvent{Type: "complete", Record: &rec})
	}
	close(writeCh)
	<-done
}
