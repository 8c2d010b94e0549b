package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jainyogya07/monolith/pkg/model"
)

func setupBus(t *testing.T) (*miniredis.Miniredis, *Bus) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewBus(client)
}

func receive(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed before an event arrived")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func TestPublishDecisionRoundTrip(t *testing.T) {
	_, bus := setupBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.subscribe(ctx, ChannelDecisions)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	task := model.NewTask("BACKGROUND", model.Payload{Heavy: true}, time.Now())
	decision := model.Decision{
		Action: model.ActionDrop,
		Reason: model.ReasonForecastedSLAViolation,
		Metrics: model.DecisionMetrics{
			Load:     80,
			Priority: 12,
			Risk:     0.3,
			Forecast: &model.ForecastResult{FailureProbability: 1, ExpectedQueue: 151, WorstCaseQueue: 160, SLAMs: 500},
		},
		Task: task,
	}
	if err := bus.PublishDecision(ctx, decision); err != nil {
		t.Fatalf("publish: %v", err)
	}

	event := receive(t, events)
	if event.Type != EventDecision {
		t.Fatalf("expected event type %q, got %q", EventDecision, event.Type)
	}

	var got DecisionEvent
	if err := json.Unmarshal(event.Data, &got); err != nil {
		t.Fatalf("decode decision event: %v", err)
	}
	if got.TaskID != task.ID.String() || got.TaskType != model.TaskBackground || !got.Heavy {
		t.Fatalf("unexpected task fields: %+v", got)
	}
	if got.Action != model.ActionDrop || got.Reason != model.ReasonForecastedSLAViolation {
		t.Fatalf("unexpected verdict: %s/%s", got.Action, got.Reason)
	}
	if got.Metrics.Forecast == nil || got.Metrics.Forecast.ExpectedQueue != 151 {
		t.Fatalf("expected forecast to survive the round trip, got %+v", got.Metrics.Forecast)
	}
}

func TestPublishSnapshotUsesTelemetryChannel(t *testing.T) {
	_, bus := setupBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	decisions, err := bus.subscribe(ctx, ChannelDecisions)
	if err != nil {
		t.Fatalf("subscribe decisions: %v", err)
	}
	telemetry, err := bus.subscribe(ctx, ChannelTelemetry)
	if err != nil {
		t.Fatalf("subscribe telemetry: %v", err)
	}

	snap := model.Snapshot{QueueLength: 7, SystemLoad: 42.5, RawLag: 3.2, Timestamp: 1700000000000}
	if err := bus.PublishSnapshot(ctx, snap); err != nil {
		t.Fatalf("publish: %v", err)
	}

	event := receive(t, telemetry)
	var got model.Snapshot
	if err := json.Unmarshal(event.Data, &got); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if got != snap {
		t.Fatalf("expected %+v, got %+v", snap, got)
	}

	select {
	case e := <-decisions:
		t.Fatalf("decision channel received unexpected event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	_, bus := setupBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := bus.subscribe(ctx, ChannelTelemetry)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not close after cancel")
	}
}

func TestPublishFailsWhenServerIsDown(t *testing.T) {
	mr, bus := setupBus(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := bus.PublishSnapshot(ctx, model.Snapshot{}); err == nil {
		t.Fatal("expected publish to fail against a stopped server")
	}
}

const subscriberBuffer = 100

// subscribe waits for the server to confirm the subscription, then streams
// events until ctx is cancelled. Malformed messages are skipped.
func (b *Bus) subscribe(ctx context.Context, channels ...string) (<-chan *Event, error) {
	sub := b.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}

	ch := make(chan *Event, subscriberBuffer)
	msgs := sub.Channel()

	go func() {
		defer close(ch)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case ch <- &event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
