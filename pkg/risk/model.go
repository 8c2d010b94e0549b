package risk

import (
	"math"
	"math/rand"

	"github.com/jainyogya07/monolith/pkg/model"
)

const (
	maxPriority = 100.0
	minCost     = 1.0
	jitterSpan  = 10.0 // uniform jitter in [-span/2, +span/2]
)

type baseline struct {
	priority float64
	risk     float64
	cost     float64
}

var baselines = map[model.TaskType]baseline{
	model.TaskCritical:     {priority: 90, risk: 0.8, cost: 50},
	model.TaskHighPriority: {priority: 75, risk: 0.4, cost: 30},
	model.TaskStandard:     {priority: 50, risk: 0.2, cost: 20},
	// Batch jobs are cheap to delay but expensive to run.
	model.TaskBackground: {priority: 10, risk: 0.05, cost: 100},
}

// RandFunc returns a uniform value in [0, 1).
type RandFunc func() float64

type Option func(*Model)

func WithRand(fn RandFunc) Option {
	return func(m *Model) {
		if fn != nil {
			m.rand = fn
		}
	}
}

// Model scores tasks. It holds no state besides its random source and is safe
// for concurrent use as long as the source is.
type Model struct {
	rand RandFunc
}

func NewModel(opts ...Option) *Model {
	m := &Model{rand: rand.Float64}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Model) Evaluate(task model.Task) model.TaskScore {
	base, ok := baselines[task.Type]
	if !ok {
		base = baselines[model.TaskStandard]
	}

	priority := base.priority + m.jitter()
	cost := base.cost + m.jitter()

	return model.TaskScore{
		Priority:      math.Max(0, math.Min(maxPriority, priority)),
		Risk:          base.risk,
		EstimatedCost: math.Max(minCost, cost),
	}
}

func (m *Model) jitter() float64 {
	return m.rand()*jitterSpan - jitterSpan/2
}
