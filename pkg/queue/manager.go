package queue

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jainyogya07/monolith/pkg/model"
)

const (
	DefaultSampleInterval = 50 * time.Millisecond
	DefaultDrainInterval  = 10 * time.Millisecond
	DefaultHeavyDuration  = 20 * time.Millisecond
	DefaultCostUnit       = time.Millisecond

	lagSmoothing = 0.9
	// fullLoadLagMs is the smoothed lag that maps to 100% load.
	fullLoadLagMs = 100.0
	maxLoad       = 100.0
	maxStarve     = 10 * time.Second
)

type Config struct {
	SampleInterval time.Duration
	DrainInterval  time.Duration
	HeavyDuration  time.Duration
	CostUnit       time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleInterval: DefaultSampleInterval,
		DrainInterval:  DefaultDrainInterval,
		HeavyDuration:  DefaultHeavyDuration,
		CostUnit:       DefaultCostUnit,
	}
}

func (c Config) withDefaults() Config {
	if c.SampleInterval <= 0 {
		c.SampleInterval = DefaultSampleInterval
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = DefaultDrainInterval
	}
	if c.HeavyDuration < 0 {
		c.HeavyDuration = DefaultHeavyDuration
	}
	if c.CostUnit < 0 {
		c.CostUnit = DefaultCostUnit
	}
	return c
}

// ProcessedHook is called by the drain worker after each entry finishes.
type ProcessedHook func(entry model.QueuedEntry, waited, took time.Duration)

type Option func(*Manager)

func WithProcessedHook(hook ProcessedHook) Option {
	return func(m *Manager) { m.onProcessed = hook }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns the backlog, the load estimate and the single drain worker.
type Manager struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	backlog Backlog

	lagMu       sync.RWMutex
	smoothedLag float64

	// float64 bits of the manual load override
	override atomic.Uint64

	onProcessed ProcessedHook
}

func NewManager(cfg Config, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Enqueue(entry model.QueuedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backlog.Insert(entry)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backlog.Len()
}

// Entries returns a copy of the backlog in dequeue order.
func (m *Manager) Entries() []model.QueuedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backlog.Entries()
}

func (m *Manager) dequeue() (model.QueuedEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backlog.PopFront()
}

// RawLag is the smoothed scheduler lag in milliseconds.
func (m *Manager) RawLag() float64 {
	m.lagMu.RLock()
	defer m.lagMu.RUnlock()
	return m.smoothedLag
}

func (m *Manager) AutoLoad() float64 {
	return clampLoad(m.RawLag() / fullLoadLagMs * maxLoad)
}

func (m *Manager) ManualLoad() float64 {
	return math.Float64frombits(m.override.Load())
}

// SetManualLoad overrides the load floor for stress injection. Values are
// clamped to [0, 100]; the last write wins.
func (m *Manager) SetManualLoad(load float64) {
	m.override.Store(math.Float64bits(clampLoad(load)))
}

func (m *Manager) EffectiveLoad() float64 {
	return math.Max(m.AutoLoad(), m.ManualLoad())
}

func (m *Manager) Snapshot() model.Snapshot {
	return model.Snapshot{
		QueueLength: m.Len(),
		SystemLoad:  m.EffectiveLoad(),
		RawLag:      m.RawLag(),
		Timestamp:   m.now().UnixMilli(),
	}
}

// observeLag folds one sampler period into the moving average.
func (m *Manager) observeLag(elapsed time.Duration) {
	lag := math.Max(0, msec(elapsed)-msec(m.cfg.SampleInterval))

	m.lagMu.Lock()
	m.smoothedLag = m.smoothedLag*lagSmoothing + lag*(1-lagSmoothing)
	m.lagMu.Unlock()
}

// Run drives the lag sampler and the drain worker until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("queue manager starting",
		zap.Duration("sample_interval", m.cfg.SampleInterval),
		zap.Duration("drain_interval", m.cfg.DrainInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.sampleLag(ctx) })
	g.Go(func() error { return m.drain(ctx) })

	err := g.Wait()
	m.logger.Info("queue manager stopped", zap.Int("backlog", m.Len()))
	return err
}

func (m *Manager) sampleLag(ctx context.Context) error {
	timer := time.NewTimer(m.cfg.SampleInterval)
	defer timer.Stop()

	last := m.now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			now := m.now()
			m.observeLag(now.Sub(last))
			last = now
			timer.Reset(m.cfg.SampleInterval)
		}
	}
}

func (m *Manager) drain(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Processing runs inline so a slow entry delays the next tick
			// instead of overlapping with it.
			m.DrainOnce(ctx)
		}
	}
}

// DrainOnce pops the head of the backlog and processes it. It reports false
// when the backlog was empty.
func (m *Manager) DrainOnce(ctx context.Context) bool {
	entry, ok := m.dequeue()
	if !ok {
		return false
	}

	started := m.now()
	m.process(ctx, entry)
	took := m.now().Sub(started)

	if m.onProcessed != nil {
		m.onProcessed(entry, started.Sub(entry.EnqueuedAt), took)
	}
	return true
}

func (m *Manager) process(ctx context.Context, entry model.QueuedEntry) {
	if entry.Task.Payload.Heavy {
		m.logger.Debug("processing heavy task",
			zap.String("task_id", entry.Task.ID.String()),
			zap.Duration("block", m.cfg.HeavyDuration),
		)
		spin(m.cfg.HeavyDuration)
		return
	}

	wait := time.Duration(entry.Score.EstimatedCost * float64(m.cfg.CostUnit))
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Starve blocks the calling goroutine with the same busy computation used for
// heavy tasks. Durations are capped at ten seconds.
//
// The runtime preempts the spinning goroutine, so the lag sampler keeps
// firing and auto load barely moves unless every P is busy. Use
// SetManualLoad to drive the engine into overload deterministically.
func (m *Manager) Starve(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if d > maxStarve {
		d = maxStarve
	}
	m.logger.Warn("injecting scheduler starvation", zap.Duration("duration", d))
	spin(d)
	return d
}

// spin is a simulation hook: it burns CPU until d has elapsed and cannot be
// interrupted once started, modelling work that starves the scheduler.
func spin(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}

func clampLoad(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > maxLoad {
		return maxLoad
	}
	return v
}

func msec(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
