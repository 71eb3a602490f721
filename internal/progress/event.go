package progress

import "time"

// Status is the lifecycle marker carried by an Event.
type Status string

const (
	StatusStarted  Status = "started"
	StatusThinking Status = "thinking"
	StatusDone     Status = "done"
	StatusDegraded Status = "degraded"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Event is one progress update of a research run.
type Event struct {
	RunID   string    `json:"run_id"`
	Seq     int       `json:"seq"`
	Stage   string    `json:"agent"`
	Status  Status    `json:"status"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
	Time    time.Time `json:"time"`
}

// Terminal reports whether the event ends a run.
func (e Event) Terminal() bool {
	return e.Status == StatusComplete || e.Status == StatusError
}
