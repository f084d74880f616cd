package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueuePublishReceive(t *testing.T) {
	queue := NewInMemoryQueue()
	defer queue.Close()

	event := StageEvent{
		EventId:       uuid.New(),
		PipelineRunId: uuid.New(),
		Stage:         "train",
		Status:        "COMPLETED",
		Artifact:      json.RawMessage(`{"runId":"run-1"}`),
		Timestamp:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, queue.PublishStageEvent(context.Background(), event))

	select {
	case msg := <-queue.Messages():
		assert.Equal(t, StageEventsQueue, msg.Type())
		decoded, err := DecodeStageEvent(msg)
		require.NoError(t, err)
		assert.Equal(t, event.EventId, decoded.EventId)
		assert.Equal(t, "train", decoded.Stage)
		assert.JSONEq(t, `{"runId":"run-1"}`, string(decoded.Artifact))
		assert.True(t, event.Timestamp.Equal(decoded.Timestamp))
		assert.NoError(t, msg.Ack())
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestInMemoryQueueClosed(t *testing.T) {
	queue := NewInMemoryQueue()
	messages := queue.Messages()
	queue.Close()
	queue.Close()

	_, ok := <-messages
	assert.False(t, ok)
	assert.Error(t, queue.PublishStageEvent(context.Background(), StageEvent{Stage: "data"}))
}

func TestDiscardPublisher(t *testing.T) {
	var publisher Publisher = DiscardPublisher{}
	assert.NoError(t, publisher.PublishStageEvent(context.Background(), StageEvent{Stage: "deploy"}))
	publisher.Close()
}
