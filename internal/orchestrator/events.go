package orchestrator

import (
	"encoding/json"
	"sync"
)

// Event is a generic SSE payload wrapper.
type Event struct {
	Event          string      `json:"event"`
	ConversationID string      `json:"conversation_id"`
	Payload        interface{} `json:"payload,omitempty"`
}

type subscriber chan []byte

// Hub fans orchestration progress out to SSE subscribers per conversation.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[subscriber]struct{} // conversationID -> set of subscribers
}

func NewHub() *Hub { return &Hub{subs: map[string]map[subscriber]struct{}{}} }

func (h *Hub) Subscribe(conversationID string) (subscriber, func()) {
	ch := make(subscriber, 16)
	h.mu.Lock()
	set := h.subs[conversationID]
	if set == nil {
		set = map[subscriber]struct{}{}
		h.subs[conversationID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()
	unsubscribe := func() {
		h.mu.Lock()
		if set, ok := h.subs[conversationID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, conversationID)
			}
		}
		close(ch)
		h.mu.Unlock()
	}
	return ch, unsubscribe
}

func (h *Hub) Publish(conversationID string, ev Event) {
	b, _ := json.Marshal(ev)
	h.mu.RLock()
	set := h.subs[conversationID]
	for ch := range set {
		// non-blocking send
		select {
		case ch <- b:
		default:
		}
	}
	h.mu.RUnlock()
}
