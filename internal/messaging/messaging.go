package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	StageEventsQueue = "pipeline_stage_events"
	RetryDelay       = 5 * time.Second
	MaxConnectRetry  = 5
)

type Message interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// StageEvent is published once per stage execution, after the outcome is known.
type StageEvent struct {
	EventId       uuid.UUID       `json:"eventId"`
	PipelineRunId uuid.UUID       `json:"pipelineRunId"`
	Stage         string          `json:"stage"`
	Status        string          `json:"status"`
	Artifact      json.RawMessage `json:"artifact,omitempty"`
	Error         string          `json:"error,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

type Publisher interface {
	PublishStageEvent(ctx context.Context, event StageEvent) error

	Close()
}

type Receiver interface {
	Messages() <-chan Message

	Close()
}

func DecodeStageEvent(msg Message) (StageEvent, error) {
	var event StageEvent
	err := json.Unmarshal(msg.Payload(), &event)
	return event, err
}

// DiscardPublisher drops every event. It is used when no broker is configured.
type DiscardPublisher struct{}

func (DiscardPublisher) PublishStageEvent(ctx context.Context, event StageEvent) error {
	return nil
}

func (DiscardPublisher) Close() {}
