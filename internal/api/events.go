package api

import (
	"context"
	"log/slog"
	"mlops-pipeline/internal/messaging"
	"sync"
)

// EventFeed keeps the most recent stage events received from the broker.
type EventFeed struct {
	mu     sync.RWMutex
	events []messaging.StageEvent
	size   int
}

func NewEventFeed(size int) *EventFeed {
	return &EventFeed{size: size}
}

func (f *EventFeed) Add(event messaging.StageEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, event)
	if len(f.events) > f.size {
		f.events = f.events[len(f.events)-f.size:]
	}
}

// Recent returns the buffered events, newest first.
func (f *EventFeed) Recent() []messaging.StageEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]messaging.StageEvent, 0, len(f.events))
	for i := len(f.events) - 1; i >= 0; i-- {
		out = append(out, f.events[i])
	}
	return out
}

// Consume reads events from receiver until ctx is done or the receiver is
// closed. Undecodable messages are rejected.
func (f *EventFeed) Consume(ctx context.Context, receiver messaging.Receiver) {
	messages := receiver.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			event, err := messaging.DecodeStageEvent(msg)
			if err != nil {
				slog.Error("error decoding stage event", "queue", msg.Type(), "error", err)
				if err := msg.Reject(); err != nil {
					slog.Error("error rejecting message", "error", err)
				}
				continue
			}

			f.Add(event)
			if err := msg.Ack(); err != nil {
				slog.Error("error acking stage event", "event_id", event.EventId, "error", err)
			}
		}
	}
}
