package domain

import (
	"strings"
	"time"
)

// Snapshot holds a value for every metric in the catalog.
type Snapshot map[MetricKey]float64

// DefaultSnapshot returns the values a session starts with.
func DefaultSnapshot() Snapshot {
	s := make(Snapshot, len(catalog))
	for _, m := range catalog {
		s[m.Key] = m.Default
	}
	return s
}

func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Valid reports whether every catalog key is present and within its range or
// domain. Keys outside the catalog make the snapshot invalid.
func (s Snapshot) Valid() bool {
	if len(s) != len(catalog) {
		return false
	}
	for _, m := range catalog {
		v, ok := s[m.Key]
		if !ok || !m.InDomain(v) {
			return false
		}
	}
	return true
}

const (
	DefaultHost = "52.91.48.195"
	DefaultPort = "5001"
)

// Target is where predictions are sent. Both parts are free text; a bad
// value only shows up as a transport failure.
type Target struct {
	Host string
	Port string
}

func (t Target) String() string {
	return strings.TrimSpace(t.Host) + ":" + strings.TrimSpace(t.Port)
}

type OutcomeStatus string

const (
	OutcomePending OutcomeStatus = "pending"
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome is the result slot of a submission. Exactly one of the status
// variants is active; fields of the inactive variants are zero.
type Outcome struct {
	Status OutcomeStatus

	// Success only.
	Message     string
	Probability *float64

	// Failure only.
	Reason string
}

func Pending() Outcome {
	return Outcome{Status: OutcomePending}
}

func Success(message string, probability *float64) Outcome {
	return Outcome{Status: OutcomeSuccess, Message: message, Probability: probability}
}

func Failure(reason string) Outcome {
	return Outcome{Status: OutcomeFailure, Reason: reason}
}

func (o Outcome) IsPending() bool { return o.Status == "" || o.Status == OutcomePending }

// Severity is the three-level reading of a successful outcome's message.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

type Screen string

const (
	ScreenConnect Screen = "connect"
	ScreenForm    Screen = "form"
)

// AppState is the whole session as seen by renderers.
type AppState struct {
	Screen Screen

	Snapshot Snapshot
	Target   Target
	// Target is read-only while Frozen.
	Frozen bool

	Busy    bool
	Outcome Outcome
	// ID of the submission currently in flight or last completed.
	SubmissionID string

	StartedAt time.Time
}

func (s AppState) Clone() AppState {
	s.Snapshot = s.Snapshot.Clone()
	if s.Outcome.Probability != nil {
		p := *s.Outcome.Probability
		s.Outcome.Probability = &p
	}
	return s
}

type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

type LogEntry struct {
	TS      time.Time
	Level   LogLevel
	Source  string
	Message string
	Fields  map[string]string
}
