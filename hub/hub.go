// Package hub fans out state-change events to all connected observers.
// Delivery is best-effort: a slow or dead observer is dropped, never allowed
// to block or fail delivery to the others.
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"auric/internal/id"
)

// Streamed event types.
const (
	TickUpdate   = "tick_update"
	CandleUpdate = "candle_update"
	Reasoning    = "reasoning"
	TradeEvent   = "trade_event"
	Positions    = "positions"
	Account      = "account"
	AgentStatus  = "agent_status"
	Status       = "status"
)

// Message is the wire envelope for every event.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// Observer receives serialized messages. Send returning an error marks the
// observer dead; the hub deregisters it and moves on.
type Observer interface {
	Send(data []byte) error
}

type Hub struct {
	mu        sync.Mutex
	observers map[string]Observer
	log       *logrus.Entry
}

func New(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		observers: make(map[string]Observer),
		log:       log,
	}
}

// Register adds an observer and returns its id. Safe to call while a
// broadcast is in progress.
func (h *Hub) Register(o Observer) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	oid := id.New()
	h.observers[oid] = o
	h.log.WithField("observers", len(h.observers)).Debug("observer registered")
	return oid
}

func (h *Hub) Deregister(oid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.observers, oid)
	h.log.WithField("observers", len(h.observers)).Debug("observer deregistered")
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Broadcast delivers the event to every currently registered observer.
// The observer set is snapshotted first and failures are removed after
// iteration, so registration during a broadcast is safe and no collection
// is mutated while being iterated.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	payload, err := json.Marshal(envelope(eventType, data))
	if err != nil {
		h.log.WithError(err).WithField("event", eventType).Warn("drop unmarshalable event")
		return
	}

	h.mu.Lock()
	snapshot := make(map[string]Observer, len(h.observers))
	for oid, o := range h.observers {
		snapshot[oid] = o
	}
	h.mu.Unlock()

	var dead []string
	for oid, o := range snapshot {
		if err := o.Send(payload); err != nil {
			dead = append(dead, oid)
		}
	}

	if len(dead) > 0 {
		h.mu.Lock()
		for _, oid := range dead {
			delete(h.observers, oid)
		}
		h.mu.Unlock()
		h.log.WithFields(logrus.Fields{"event": eventType, "dropped": len(dead)}).Info("dropped dead observers")
	}
}

// SendDirect delivers one event to one observer. A failed observer is
// deregistered; the failure does not propagate.
func (h *Hub) SendDirect(oid string, eventType string, data interface{}) {
	h.mu.Lock()
	o, ok := h.observers[oid]
	h.mu.Unlock()
	if !ok {
		return
	}

	payload, err := json.Marshal(envelope(eventType, data))
	if err != nil {
		h.log.WithError(err).WithField("event", eventType).Warn("drop unmarshalable event")
		return
	}

	if err := o.Send(payload); err != nil {
		h.Deregister(oid)
	}
}

func envelope(eventType string, data interface{}) Message {
	return Message{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
