package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jainyogya07/monolith/pkg/model"
)

type Event struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// DecisionEvent is the wire form of an admission decision. The payload body
// is left out to keep the channel light.
type DecisionEvent struct {
	TaskID   string                `json:"taskId"`
	TaskType model.TaskType        `json:"taskType"`
	Heavy    bool                  `json:"heavy"`
	Action   model.Action          `json:"action"`
	Reason   model.Reason          `json:"reason"`
	Metrics  model.DecisionMetrics `json:"metrics"`
}

const (
	ChannelDecisions = "monolith:decisions"
	ChannelTelemetry = "monolith:telemetry"

	EventDecision  = "decision"
	EventTelemetry = "telemetry"
)

type Bus struct {
	client redis.UniversalClient
}

func NewBus(client redis.UniversalClient) *Bus {
	return &Bus{client: client}
}

func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}, nil
}

func (b *Bus) Publish(ctx context.Context, channel string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *Bus) PublishDecision(ctx context.Context, decision model.Decision) error {
	event, err := NewEvent(EventDecision, DecisionEvent{
		TaskID:   decision.Task.ID.String(),
		TaskType: decision.Task.Type,
		Heavy:    decision.Task.Payload.Heavy,
		Action:   decision.Action,
		Reason:   decision.Reason,
		Metrics:  decision.Metrics,
	})
	if err != nil {
		return err
	}
	return b.Publish(ctx, ChannelDecisions, event)
}

func (b *Bus) PublishSnapshot(ctx context.Context, snapshot model.Snapshot) error {
	event, err := NewEvent(EventTelemetry, snapshot)
	if err != nil {
		return err
	}
	return b.Publish(ctx, ChannelTelemetry, event)
}
