package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskCritical     TaskType = "CRITICAL"
	TaskHighPriority TaskType = "HIGH_PRIORITY"
	TaskStandard     TaskType = "STANDARD"
	TaskBackground   TaskType = "BACKGROUND"
)

// SourceUserRequest tags every task built from an external submission.
const SourceUserRequest = "UserRequest"

// ParseTaskType never fails: anything that is not exactly one of the four
// known names is STANDARD. Matching is case and whitespace sensitive.
func ParseTaskType(value string) TaskType {
	if t := TaskType(value); t.Valid() {
		return t
	}
	return TaskStandard
}

// ParseTaskTypeJSON maps a raw JSON "type" field. Missing, null and
// non-string values are STANDARD.
func ParseTaskTypeJSON(raw json.RawMessage) TaskType {
	var value string
	if len(raw) == 0 || json.Unmarshal(raw, &value) != nil {
		return TaskStandard
	}
	return ParseTaskType(value)
}

func (t TaskType) Valid() bool {
	switch t {
	case TaskCritical, TaskHighPriority, TaskStandard, TaskBackground:
		return true
	}
	return false
}

// Payload is the opaque body of a task. Heavy is the only field the engine
// looks at; Data keeps the submitted document untouched.
type Payload struct {
	Heavy bool
	Data  json.RawMessage
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw struct {
		Heavy bool `json:"heavy"`
	}
	// Non-object payloads (strings, arrays) are legal and simply not heavy.
	_ = json.Unmarshal(data, &raw)
	p.Heavy = raw.Heavy
	p.Data = append(p.Data[:0], data...)
	return nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p.Data) > 0 {
		return p.Data, nil
	}
	if p.Heavy {
		return []byte(`{"heavy":true}`), nil
	}
	return []byte(`{}`), nil
}

type Task struct {
	ID          uuid.UUID `json:"id"`
	Type        TaskType  `json:"type"`
	Payload     Payload   `json:"payload"`
	SubmittedAt time.Time `json:"timestamp"`
	Source      string    `json:"source"`
}

func NewTask(taskType TaskType, payload Payload, now time.Time) Task {
	return Task{
		ID:          uuid.New(),
		Type:        ParseTaskType(string(taskType)),
		Payload:     payload,
		SubmittedAt: now,
		Source:      SourceUserRequest,
	}
}

type TaskScore struct {
	Priority      float64 `json:"priority"`
	Risk          float64 `json:"risk"`
	EstimatedCost float64 `json:"estimatedCost"`
}

type QueuedEntry struct {
	Task       Task      `json:"task"`
	Score      TaskScore `json:"score"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}
