package domain

import "time"

type EventType string

const (
	EventState       EventType = "state"
	EventSubmitStart EventType = "submit_start"
	EventSubmitDone  EventType = "submit_done"
	EventLog         EventType = "log"
	EventWarning     EventType = "warning"
	EventError       EventType = "error"
)

type Event struct {
	Type    EventType
	TS      time.Time
	Source  string
	Level   LogLevel
	Payload any
}

type StatePayload struct {
	State AppState
}

type SubmitStartPayload struct {
	SubmissionID string
	Target       Target
	// Canonical request body, as sent.
	Body map[string]float64
}

type SubmitDonePayload struct {
	SubmissionID string
	Outcome      Outcome
	Duration     time.Duration
}

type LogPayload struct {
	Message string
	Fields  map[string]string
}
