package model

type Action string

const (
	ActionAccept Action = "accept"
	ActionDrop   Action = "drop"
)

type Reason string

const (
	ReasonWithinCapacity         Reason = "within_capacity"
	ReasonSystemOverload         Reason = "system_overload"
	ReasonForecastedSLAViolation Reason = "forecasted_sla_violation"
)

type ForecastResult struct {
	FailureProbability float64 `json:"failureProbability"`
	ExpectedQueue      int     `json:"expectedQueue"`
	WorstCaseQueue     int     `json:"worstCaseQueue"`
	SLAMs              float64 `json:"slaMs"`
}

type DecisionMetrics struct {
	Load     float64         `json:"load"`
	Priority float64         `json:"priority"`
	Risk     float64         `json:"risk"`
	Forecast *ForecastResult `json:"forecast,omitempty"`
}

// Decision is the full observable outcome of one submission.
type Decision struct {
	Action  Action          `json:"action"`
	Reason  Reason          `json:"reason"`
	Metrics DecisionMetrics `json:"metrics"`
	Task    Task            `json:"task"`
	Score   TaskScore       `json:"score"`
}

func (d Decision) Accepted() bool {
	return d.Action == ActionAccept
}

// Snapshot is the telemetry tuple polled by reporting components.
type Snapshot struct {
	QueueLength int     `json:"queueLength"`
	SystemLoad  float64 `json:"systemLoad"`
	RawLag      float64 `json:"rawLag"`
	Timestamp   int64   `json:"timestamp"`
}
