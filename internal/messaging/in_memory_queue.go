package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type inMemoryMessage struct {
	queue   string
	payload []byte
}

func (m *inMemoryMessage) Type() string {
	return m.queue
}

func (m *inMemoryMessage) Payload() []byte {
	return m.payload
}

func (m *inMemoryMessage) Ack() error {
	return nil
}

func (m *inMemoryMessage) Nack() error {
	return nil
}

func (m *inMemoryMessage) Reject() error {
	return nil
}

// InMemoryQueue is both a Publisher and a Receiver. Publishing blocks once
// the buffer is full and nothing is receiving.
type InMemoryQueue struct {
	mu       sync.Mutex
	messages chan Message
	out      <-chan Message
}

var (
	_ Publisher = (*InMemoryQueue)(nil)
	_ Receiver  = (*InMemoryQueue)(nil)
)

func NewInMemoryQueue() *InMemoryQueue {
	messages := make(chan Message, 100)
	return &InMemoryQueue{messages: messages, out: messages}
}

func (q *InMemoryQueue) publishInternal(ctx context.Context, queue string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.messages == nil {
		return fmt.Errorf("queue is closed")
	}

	select {
	case q.messages <- &inMemoryMessage{queue: queue, payload: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryQueue) PublishStageEvent(ctx context.Context, event StageEvent) error {
	return q.publishInternal(ctx, StageEventsQueue, event)
}

func (q *InMemoryQueue) Messages() <-chan Message {
	return q.out
}

func (q *InMemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.messages != nil {
		close(q.messages)
		q.messages = nil
	}
}
