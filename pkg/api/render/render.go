// Package render writes JSON and Server-Sent Event responses for the API handlers.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"finpulse/pkg/core/pipeline"
	"finpulse/pkg/core/store"
)

type ErrorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Status int    `json:"status"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Error(w http.ResponseWriter, status int, kind, message string) {
	JSON(w, status, ErrorBody{Error: message, Kind: kind, Status: status})
}

// Decode reads a JSON request body, rejecting unknown fields.
func Decode(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	return nil
}

// Failure maps a domain error to its status code and the owner-facing message.
func Failure(w http.ResponseWriter, err error) {
	body := FailureBody(err)
	JSON(w, body.Status, body)
}

// FailureBody is what Failure writes, for responses that have already sent
// their status line, such as an event stream.
func FailureBody(err error) ErrorBody {
	status, kind, msg := classify(err)
	return ErrorBody{Error: msg, Kind: kind, Status: status}
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrInvalidUser),
		errors.Is(err, store.ErrInvalidEntry),
		errors.Is(err, store.ErrInvalidLogin):
		return http.StatusBadRequest, "bad_request", err.Error()
	case errors.Is(err, pipeline.ErrUnknownReport):
		return http.StatusNotFound, "not_found", err.Error()
	}

	kind := pipeline.ErrorKind(err)
	msg := pipeline.UserMessage(err)
	switch kind {
	case pipeline.KindBusy:
		return http.StatusConflict, kind, msg
	case pipeline.KindValidation:
		return http.StatusUnprocessableEntity, kind, msg
	case pipeline.KindRateLimited:
		return http.StatusTooManyRequests, kind, msg
	}
	return http.StatusBadGateway, kind, msg
}

// EventStream writes named SSE events. Send is safe for concurrent use.
type EventStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewEventStream sets the SSE headers. It fails when the writer cannot flush.
func NewEventStream(w http.ResponseWriter) (*EventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &EventStream{w: w, flusher: flusher}, nil
}

func (s *EventStream) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
