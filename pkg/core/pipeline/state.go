// Package pipeline runs one assessment per user at a time: a cosmetic
// progress sequence alongside the resilient remote call, followed by a
// local metrics merge and a history commit.
package pipeline

import (
	"errors"
	"strings"
	"time"

	"finpulse/pkg/core/assessor"
	"finpulse/pkg/core/resilience"
	"finpulse/pkg/models"
)

type State string

const (
	StateIdle          State = "idle"
	StatePreprocessing State = "preprocessing"
	StateInvoking      State = "invoking"
	StateMerging       State = "merging"
	StateCommitted     State = "committed"
	StateFailed        State = "failed"
)

// InFlight reports whether a pipeline run currently owns the session.
func (s State) InFlight() bool {
	return s == StatePreprocessing || s == StateInvoking || s == StateMerging
}

var (
	ErrBusy          = errors.New("an assessment is already in progress for this user")
	ErrUnknownReport = errors.New("report not found in user history")
)

// Error kinds reported to API clients.
const (
	KindValidation  = "validation"
	KindRateLimited = "rate_limited"
	KindTransient   = "transient"
	KindContract    = "contract"
	KindBusy        = "busy"
	KindFatal       = "fatal"
)

// ErrorKind names the failure class of a Submit error.
func ErrorKind(err error) string {
	var ve *models.ValidationError
	var ce *assessor.ContractError
	var rl *resilience.RateLimitError
	var te *resilience.TransientError
	switch {
	case IsBusy(err):
		return KindBusy
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &ce):
		return KindContract
	case errors.As(err, &rl):
		return KindRateLimited
	case errors.As(err, &te):
		return KindTransient
	}
	return KindFatal
}

// UserMessage is the text shown to the business owner for a failed run.
func UserMessage(err error) string {
	switch ErrorKind(err) {
	case KindBusy:
		return "An assessment is already running. Please wait for it to finish."
	case KindRateLimited:
		return "System quota exhausted. Please wait 60s for the assessment engine to reset."
	case KindValidation:
		var ve *models.ValidationError
		errors.As(err, &ve)
		return "Financial values failed validation: " + strings.Join(ve.FieldNames(), ", ")
	case KindContract:
		return "Assessment response failed data-integrity checks."
	}
	return "Operational interruption. Check data integrity and retry."
}

// Failure records the last failed run of a session.
type Failure struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Detail  string    `json:"detail"`
	From    State     `json:"from"`
	At      time.Time `json:"at"`
}

// EventType distinguishes the events of a run.
type EventType string

const (
	EventProgress EventType = "progress"
	EventState    EventType = "state"
	EventRetry    EventType = "retry"
)

// Event is emitted to a Sink while a run is in flight. Progress events carry
// Step (1-based) and Label; retry events carry Attempt, WaitMs and RetryKind.
type Event struct {
	Type      EventType `json:"type"`
	State     State     `json:"state,omitempty"`
	Step      int       `json:"step,omitempty"`
	Total     int       `json:"total,omitempty"`
	Label     string    `json:"label,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	WaitMs    int64     `json:"wait_ms,omitempty"`
	RetryKind string    `json:"retry_kind,omitempty"`
}

// Sink receives run events. It is called from the run's goroutines and must
// not block for long.
type Sink func(Event)

func (s Sink) emit(e Event) {
	if s != nil {
		s(e)
	}
}
