package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ashita-ai/kakehashi/internal/model"
)

// Broker fans out call records to SSE subscribers. The gateway registers
// Publish as the registry's CallHook, so every record appended to the
// ledger reaches every listener on /admin/calls/stream.
type Broker struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
}

// NewBroker creates an SSE broker with no subscribers.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger:      logger,
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Publish broadcasts one call record to all subscribers. It is synchronous
// and never blocks: slow subscribers drop events instead of stalling the
// invocation path that fires the hook.
func (b *Broker) Publish(call model.ToolCall) {
	payload, err := json.Marshal(call)
	if err != nil {
		b.logger.Warn("broker: marshal call record", "error", err)
		return
	}
	b.broadcast(formatSSE("call", string(payload)))
}

// Subscribe returns a channel that receives SSE-formatted events.
// The caller must call Unsubscribe when done.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64) // Buffer to avoid blocking the broadcast loop.
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}

// broadcast sends an event to all subscribers. Slow subscribers that have
// a full buffer are skipped (their event is dropped) to prevent one slow
// client from blocking all others.
func (b *Broker) broadcast(event []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full; drop this event for them.
		}
	}
}

// formatSSE formats a payload as a Server-Sent Events message.
func formatSSE(eventType, data string) []byte {
	// SSE format: "event: <type>\ndata: <payload>\n\n"
	return []byte("event: " + eventType + "\ndata: " + data + "\n\n")
}
