package resilience

import "fmt"

// Error is returned by Invoke whenever the operation did not succeed. It
// carries the classification of the last failure observed.
type Error struct {
	Kind     Kind
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failure after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// As lets callers match on the kind-specific types below.
func (e *Error) As(target any) bool {
	switch t := target.(type) {
	case **RateLimitError:
		if e.Kind == KindRateLimited {
			*t = &RateLimitError{Attempts: e.Attempts, Err: e.Err}
			return true
		}
	case **TransientError:
		if e.Kind == KindTransient {
			*t = &TransientError{Attempts: e.Attempts, Err: e.Err}
			return true
		}
	}
	return false
}

// RateLimitError means the remote quota stayed exhausted across every attempt.
type RateLimitError struct {
	Attempts int
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// TransientError means network or server failures persisted across every attempt.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

type permanentError struct {
	err error
}

func (e *permanentError) Error() string   { return e.err.Error() }
func (e *permanentError) Unwrap() error   { return e.err }
func (e *permanentError) Permanent() bool { return true }

// Permanent marks err as fatal so Invoke returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
