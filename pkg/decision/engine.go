// Package decision turns a submission into an accept or drop verdict using
// three layers: a hard overload guard, a forecast of SLA risk, and a default
// accept that places the task in the backlog.
package decision

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jainyogya07/monolith/pkg/forecast"
	"github.com/jainyogya07/monolith/pkg/metrics"
	"github.com/jainyogya07/monolith/pkg/model"
	"github.com/jainyogya07/monolith/pkg/queue"
	"github.com/jainyogya07/monolith/pkg/risk"
)

// Policy thresholds. Load is in percent, priority on the 0-100 scale.
const (
	OverloadLoad          = 95.0
	OverloadPriorityFloor = 30.0

	ForecastLoad          = 70.0
	ForecastFailureLimit  = 0.8
	ForecastPriorityFloor = 50.0

	DefaultDropLogsPerSec = 10.0
	DefaultPublishBuffer  = 1024
	publishTimeout        = 250 * time.Millisecond
)

// Publisher receives decisions from a background loop started by Run.
// Failures are logged and otherwise ignored.
type Publisher interface {
	PublishDecision(ctx context.Context, decision model.Decision) error
}

type Config struct {
	Queue             queue.Config
	Forecast          forecast.Config
	DropLogsPerSecond float64
	// PublishBuffer bounds decisions waiting for the publisher. When full,
	// new decisions are not published.
	PublishBuffer int
}

func DefaultConfig() Config {
	return Config{
		Queue:             queue.DefaultConfig(),
		Forecast:          forecast.DefaultConfig(),
		DropLogsPerSecond: DefaultDropLogsPerSec,
		PublishBuffer:     DefaultPublishBuffer,
	}
}

type Option func(*Engine)

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithRiskModel(m *risk.Model) Option {
	return func(e *Engine) { e.risk = m }
}

func WithForecaster(f *forecast.Forecaster) Option {
	return func(e *Engine) { e.forecaster = f }
}

func WithQueue(m *queue.Manager) Option {
	return func(e *Engine) { e.queue = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithDropLogLimiter replaces the limiter that throttles drop logs.
func WithDropLogLimiter(l *rate.Limiter) Option {
	return func(e *Engine) { e.dropLog = l }
}

type Engine struct {
	risk       *risk.Model
	queue      *queue.Manager
	forecaster *forecast.Forecaster
	publisher  Publisher
	events     chan model.Decision

	logger  *zap.Logger
	dropLog *rate.Limiter
	now     func() time.Time
}

func NewEngine(cfg Config, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.risk == nil {
		e.risk = risk.NewModel()
	}
	if e.forecaster == nil {
		e.forecaster = forecast.NewForecaster(cfg.Forecast)
	}
	if e.queue == nil {
		e.queue = queue.NewManager(cfg.Queue, logger.Named("queue"),
			queue.WithProcessedHook(metrics.ObserveProcessed),
			queue.WithClock(e.now),
		)
	}
	if e.dropLog == nil {
		perSec := cfg.DropLogsPerSecond
		if perSec <= 0 {
			perSec = DefaultDropLogsPerSec
		}
		e.dropLog = rate.NewLimiter(rate.Limit(perSec), int(math.Ceil(perSec)))
	}
	if e.publisher != nil {
		size := cfg.PublishBuffer
		if size <= 0 {
			size = DefaultPublishBuffer
		}
		e.events = make(chan model.Decision, size)
	}

	return e
}

// Submit classifies one task. It never blocks on the drain worker or the
// publisher and never fails: every submission yields exactly one decision.
func (e *Engine) Submit(ctx context.Context, taskType model.TaskType, payload model.Payload) model.Decision {
	now := e.now()
	task := model.NewTask(taskType, payload, now)
	score := e.risk.Evaluate(task)
	load := e.queue.EffectiveLoad()

	decision := model.Decision{
		Task:  task,
		Score: score,
		Metrics: model.DecisionMetrics{
			Load:     load,
			Priority: score.Priority,
			Risk:     score.Risk,
		},
	}

	switch {
	case load > OverloadLoad && score.Priority < OverloadPriorityFloor:
		decision.Action = model.ActionDrop
		decision.Reason = model.ReasonSystemOverload

	case load > ForecastLoad:
		result := e.forecaster.Predict(e.queue.Len(), score.EstimatedCost)
		decision.Metrics.Forecast = &result
		if result.FailureProbability > ForecastFailureLimit && score.Priority < ForecastPriorityFloor {
			decision.Action = model.ActionDrop
			decision.Reason = model.ReasonForecastedSLAViolation
		}
	}

	if decision.Action == "" {
		e.queue.Enqueue(model.QueuedEntry{Task: task, Score: score, EnqueuedAt: now})
		decision.Action = model.ActionAccept
		decision.Reason = model.ReasonWithinCapacity
	}

	e.observe(decision)
	return decision
}

func (e *Engine) observe(decision model.Decision) {
	metrics.RecordDecision(decision)

	if decision.Accepted() {
		e.logger.Debug("task accepted",
			zap.String("task_id", decision.Task.ID.String()),
			zap.String("type", string(decision.Task.Type)),
			zap.Float64("priority", decision.Metrics.Priority),
			zap.Float64("load", decision.Metrics.Load),
		)
	} else if e.dropLog.Allow() {
		fields := []zap.Field{
			zap.String("task_id", decision.Task.ID.String()),
			zap.String("type", string(decision.Task.Type)),
			zap.String("reason", string(decision.Reason)),
			zap.Float64("priority", decision.Metrics.Priority),
			zap.Float64("load", decision.Metrics.Load),
		}
		if f := decision.Metrics.Forecast; f != nil {
			fields = append(fields,
				zap.Float64("failure_probability", f.FailureProbability),
				zap.Int("expected_queue", f.ExpectedQueue),
			)
		}
		e.logger.Info("task dropped", fields...)
	}

	if e.events == nil {
		return
	}
	select {
	case e.events <- decision:
	default:
		metrics.DecisionEventsDropped.Inc()
		if e.dropLog.Allow() {
			e.logger.Warn("publish buffer full, decision not published",
				zap.String("task_id", decision.Task.ID.String()),
				zap.Int("buffer", cap(e.events)),
			)
		}
	}
}

func (e *Engine) publishLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case decision := <-e.events:
			e.publish(ctx, decision)
		}
	}
}

func (e *Engine) publish(ctx context.Context, decision model.Decision) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := e.publisher.PublishDecision(pubCtx, decision); err != nil && ctx.Err() == nil {
		e.logger.Warn("failed to publish decision",
			zap.String("task_id", decision.Task.ID.String()),
			zap.Error(err),
		)
	}
}

func (e *Engine) SetManualLoad(load float64) {
	e.queue.SetManualLoad(load)
	e.logger.Info("manual load override updated", zap.Float64("load", e.queue.ManualLoad()))
}

func (e *Engine) QueueLength() int {
	return e.queue.Len()
}

func (e *Engine) EffectiveLoad() float64 {
	return e.queue.EffectiveLoad()
}

func (e *Engine) RawLag() float64 {
	return e.queue.RawLag()
}

func (e *Engine) Snapshot() model.Snapshot {
	return e.queue.Snapshot()
}

// Starve blocks the caller for d. It only shows up in auto load when the
// process is CPU-bound across all Ps; see queue.Manager.Starve.
func (e *Engine) Starve(d time.Duration) time.Duration {
	return e.queue.Starve(d)
}

// Run drives the lag sampler, the drain worker and, when a publisher is set,
// the publish loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.events == nil {
		return e.queue.Run(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.queue.Run(ctx) })
	g.Go(func() error { return e.publishLoop(ctx) })
	return g.Wait()
}
