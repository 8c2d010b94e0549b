package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jainyogya07/monolith/pkg/model"
)

const defaultSampleInterval = 100 * time.Millisecond

// SnapshotSource is anything that can report the engine telemetry tuple.
type SnapshotSource interface {
	Snapshot() model.Snapshot
}

type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snapshot model.Snapshot) error
}

// Sampler polls a SnapshotSource on a fixed interval, mirrors it into gauges
// and forwards it to an optional publisher.
type Sampler struct {
	source    SnapshotSource
	publisher SnapshotPublisher
	logger    *zap.Logger
	interval  time.Duration

	queueLength prometheus.Gauge
	systemLoad  prometheus.Gauge
	rawLag      prometheus.Gauge
	publishErrs prometheus.Counter
}

func NewSampler(
	source SnapshotSource,
	publisher SnapshotPublisher,
	logger *zap.Logger,
	registerer prometheus.Registerer,
	interval time.Duration,
) *Sampler {
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sampler{
		source:    source,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monolith_queue_length",
			Help: "Number of entries waiting in the backlog.",
		}),
		systemLoad: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monolith_system_load_percent",
			Help: "Effective load (0-100) used for admission decisions.",
		}),
		rawLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monolith_scheduler_lag_ms",
			Help: "Smoothed scheduler lag in milliseconds.",
		}),
		publishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monolith_telemetry_publish_errors_total",
			Help: "Total number of telemetry snapshots that could not be published.",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(s.queueLength, s.systemLoad, s.rawLag, s.publishErrs)
	}

	return s
}

func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sample(ctx)
		}
	}
}

// Sample takes one reading. Publishing is best effort.
func (s *Sampler) Sample(ctx context.Context) model.Snapshot {
	snapshot := s.source.Snapshot()

	s.queueLength.Set(float64(snapshot.QueueLength))
	s.systemLoad.Set(snapshot.SystemLoad)
	s.rawLag.Set(snapshot.RawLag)

	if s.publisher != nil {
		if err := s.publisher.PublishSnapshot(ctx, snapshot); err != nil && ctx.Err() == nil {
			s.publishErrs.Inc()
			s.logger.Warn("failed to publish telemetry snapshot", zap.Error(err))
		}
	}

	return snapshot
}
