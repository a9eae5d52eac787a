package optd

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/QuantTune-Labs/optimizer-core/pkg/logger"
)

// ProgressEvent is one progress update pushed to websocket subscribers
type ProgressEvent struct {
	Study      string   `json:"study"`
	RunID      string   `json:"run_id,omitempty"`
	Fraction   float64  `json:"fraction"`
	ETASeconds *float64 `json:"eta_seconds,omitempty"`
	TrialCount int      `json:"trial_count"`
	BestValue  *float64 `json:"best_value,omitempty"`
	Final      bool     `json:"final,omitempty"`
}

// Hub fans progress events out to the websocket connections subscribed to
// each study. Connections that fail a write are dropped.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*websocket.Conn]bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*websocket.Conn]bool)}
}

// Subscribe registers a connection for the named study's events
func (h *Hub) Subscribe(studyName string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[studyName] == nil {
		h.subs[studyName] = make(map[*websocket.Conn]bool)
	}
	h.subs[studyName][conn] = true
}

// Unsubscribe removes a connection; the caller still owns closing it
func (h *Hub) Unsubscribe(studyName string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[studyName], conn)
	if len(h.subs[studyName]) == 0 {
		delete(h.subs, studyName)
	}
}

// SubscriberCount returns the number of connections watching a study
func (h *Hub) SubscriberCount(studyName string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[studyName])
}

// Broadcast sends an event to every subscriber of the study
func (h *Hub) Broadcast(event ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("failed to marshal progress event", "study", event.Study, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.subs[event.Study] {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debug("dropping progress subscriber", "study", event.Study, "error", err)
			conn.Close()
			delete(h.subs[event.Study], conn)
		}
	}
}
