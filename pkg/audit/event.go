// Package audit provides an operator trail of provisioning operations.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Operations recorded in the trail.
const (
	OpSetUser    = "set-user"
	OpDeployRoot = "deploy-root"
	OpSetNetwork = "set-network"
)

// Change is one setting applied by an operation. Secrets are never recorded;
// their Value is Redacted.
type Change struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Redacted replaces secret values in recorded changes.
const Redacted = "<redacted>"

// Event represents an auditable provisioning operation
type Event struct {
	ID        string        `json:"id"`
	RunID     string        `json:"run_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Device    string        `json:"device"`
	Operation string        `json:"operation"`
	Target    string        `json:"target,omitempty"`
	Changes   []Change      `json:"changes,omitempty"`
	State     string        `json:"state,omitempty"`
	Attempts  int           `json:"attempts,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	User        string
	Operation   string
	Target      string
	RunID       string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// NewRunID returns an identifier grouping the events of one CLI run.
func NewRunID() string {
	return uuid.NewString()
}

// WithRun sets the run identifier
func (e *Event) WithRun(runID string) *Event {
	e.RunID = runID
	return e
}

// WithTarget sets the module the operation addressed ("server-3")
func (e *Event) WithTarget(target string) *Event {
	e.Target = target
	return e
}

// WithChange appends a recorded setting
func (e *Event) WithChange(field, value string) *Event {
	e.Changes = append(e.Changes, Change{Field: field, Value: value})
	return e
}

// WithSecret records that a secret field was set without its value
func (e *Event) WithSecret(field string) *Event {
	return e.WithChange(field, Redacted)
}

// WithState records the final lifecycle state and attempt count of a target
func (e *Event) WithState(state string, attempts int) *Event {
	e.State = state
	e.Attempts = attempts
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithResult marks the event successful when err is nil and failed otherwise
func (e *Event) WithResult(err error) *Event {
	if err != nil {
		return e.WithError(err)
	}
	return e.WithSuccess()
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}
