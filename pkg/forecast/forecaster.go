// Package forecast predicts whether accepting one more task is likely to push
// projected queueing latency past the SLA.
//
// The model is a cheap Monte-Carlo approximation meant to run on every
// borderline admission: arrivals and completions over a fixed horizon are
// drawn with uniform jitter around their means instead of from a true
// Poisson process.
package forecast

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/jainyogya07/monolith/pkg/model"
)

const (
	DefaultSimulations    = 100
	DefaultHorizon        = time.Second
	DefaultSLA            = 500 * time.Millisecond
	DefaultAvgProcessTime = 10 * time.Millisecond
	DefaultArrivalRate    = 50.0 // tasks per second

	arrivalJitter    = 0.2
	completionJitter = 0.1
)

type Config struct {
	Simulations int
	Horizon     time.Duration
	SLA         time.Duration
	// AvgProcessTime is the forecaster's own service-time assumption. It is
	// not derived from the queue's per-task cost.
	AvgProcessTime time.Duration
	ArrivalRate    float64
}

func DefaultConfig() Config {
	return Config{
		Simulations:    DefaultSimulations,
		Horizon:        DefaultHorizon,
		SLA:            DefaultSLA,
		AvgProcessTime: DefaultAvgProcessTime,
		ArrivalRate:    DefaultArrivalRate,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Simulations <= 0 {
		c.Simulations = def.Simulations
	}
	if c.Horizon <= 0 {
		c.Horizon = def.Horizon
	}
	if c.SLA <= 0 {
		c.SLA = def.SLA
	}
	if c.AvgProcessTime <= 0 {
		c.AvgProcessTime = def.AvgProcessTime
	}
	if c.ArrivalRate < 0 {
		c.ArrivalRate = def.ArrivalRate
	}
	return c
}

type Option func(*Forecaster)

// WithRand replaces the uniform [0, 1) source.
func WithRand(fn func() float64) Option {
	return func(f *Forecaster) {
		if fn != nil {
			f.rand = fn
		}
	}
}

type Forecaster struct {
	cfg  Config
	rand func() float64
}

func NewForecaster(cfg Config, opts ...Option) *Forecaster {
	f := &Forecaster{
		cfg:  cfg.withDefaults(),
		rand: rand.Float64,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Predict runs the simulation for a queue currently holding currentDepth
// entries plus the task under evaluation. incomingCost is accepted for
// interface stability; the model sizes service time from AvgProcessTime.
func (f *Forecaster) Predict(currentDepth int, incomingCost float64) model.ForecastResult {
	_ = incomingCost

	n := f.cfg.Simulations
	horizonMs := msec(f.cfg.Horizon)
	avgMs := msec(f.cfg.AvgProcessTime)
	slaMs := msec(f.cfg.SLA)

	depths := make([]int, n)
	failures := 0
	for i := 0; i < n; i++ {
		projected := currentDepth + 1 + f.arrivals(horizonMs) - f.completions(horizonMs, avgMs)
		if projected < 0 {
			projected = 0
		}
		depths[i] = projected

		if float64(projected)*avgMs > slaMs {
			failures++
		}
	}

	sort.Ints(depths)

	return model.ForecastResult{
		FailureProbability: float64(failures) / float64(n),
		ExpectedQueue:      depths[percentileIndex(n, 0.5)],
		WorstCaseQueue:     depths[percentileIndex(n, 0.95)],
		SLAMs:              slaMs,
	}
}

func (f *Forecaster) arrivals(horizonMs float64) int {
	expected := f.cfg.ArrivalRate * horizonMs / 1000
	sample := expected + (f.rand()-0.5)*expected*2*arrivalJitter
	return int(math.Max(0, math.Round(sample)))
}

func (f *Forecaster) completions(horizonMs, avgMs float64) int {
	capacity := horizonMs / avgMs
	sample := capacity + (f.rand()-0.5)*capacity*2*completionJitter
	return int(math.Max(1, math.Round(sample)))
}

func percentileIndex(n int, p float64) int {
	idx := int(math.Floor(float64(n) * p))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func msec(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
