// Package session runs a prediction session: it owns the input store, the
// busy flag and the outcome slot, applies actions one at a time and reports
// every change as an event.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Joserraldo/diabetes/internal/domain"
	"github.com/Joserraldo/diabetes/internal/form"
	"github.com/Joserraldo/diabetes/internal/predict"
)

// Submitter performs one prediction request.
type Submitter interface {
	Submit(ctx context.Context, snap domain.Snapshot, target domain.Target) (domain.Outcome, error)
}

type Engine struct {
	store     *form.Store
	submitter Submitter
	logger    *zap.Logger
	newID     func() string

	state domain.AppState
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator replaces the submission id source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func New(store *form.Store, submitter Submitter, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		submitter: submitter,
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state = domain.AppState{
		Screen:    domain.ScreenConnect,
		Outcome:   domain.Pending(),
		StartedAt: time.Now(),
	}
	if store.Frozen() {
		e.state.Screen = domain.ScreenForm
	}
	return e
}

type submitResult struct {
	id       string
	outcome  domain.Outcome
	err      error
	duration time.Duration
}

// Run starts the session loop in a goroutine and returns immediately. The
// events channel is closed when ctx is cancelled or actions is closed. A
// request still in flight at that point is abandoned and its result dropped.
func (e *Engine) Run(ctx context.Context, ch chan<- domain.Event, actions <-chan domain.Action) {
	go func() {
		defer close(ch)

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		results := make(chan submitResult, 1)

		emit := func(ev domain.Event) bool {
			if ev.TS.IsZero() {
				ev.TS = time.Now()
			}
			if ev.Source == "" {
				ev.Source = "session"
			}
			if ev.Level == "" {
				ev.Level = domain.LogInfo
			}
			if runCtx.Err() != nil {
				return false
			}
			select {
			case <-runCtx.Done():
				return false
			case ch <- ev:
				return true
			}
		}

		if !e.emitState(emit) {
			return
		}

		for {
			select {
			case <-runCtx.Done():
				return
			case a, ok := <-actions:
				if !ok {
					return
				}
				if !e.apply(runCtx, a, emit, results) {
					return
				}
			case r := <-results:
				if !e.finish(r, emit) {
					return
				}
			}
		}
	}()
}

func (e *Engine) apply(ctx context.Context, a domain.Action, emit func(domain.Event) bool, results chan<- submitResult) bool {
	var err error
	switch a.Type {
	case domain.ActionSetMetric:
		_, err = e.store.Set(a.Metric, a.Value)
	case domain.ActionStepMetric:
		_, err = e.store.Step(a.Metric, a.Delta)
	case domain.ActionSetHost:
		err = e.store.SetHost(a.Text)
	case domain.ActionSetPort:
		err = e.store.SetPort(a.Text)
	case domain.ActionConnect:
		e.store.Freeze()
		e.state.Screen = domain.ScreenForm
		target := e.store.Target()
		e.logger.Info("target selected", zap.String("target", target.String()))
		if !note(emit, "predictions go to "+predict.URL(target), map[string]string{"target": target.String()}) {
			return false
		}
	case domain.ActionDisconnect:
		e.store.Unfreeze()
		e.state.Screen = domain.ScreenConnect
		if !note(emit, "target released for editing", nil) {
			return false
		}
	case domain.ActionSubmit:
		return e.submit(ctx, emit, results)
	default:
		return warn(emit, "unknown action: "+string(a.Type))
	}
	if err != nil {
		e.logger.Debug("action rejected", zap.String("action", string(a.Type)), zap.Error(err))
		return warn(emit, err.Error())
	}
	return e.emitState(emit)
}

func (e *Engine) submit(ctx context.Context, emit func(domain.Event) bool, results chan<- submitResult) bool {
	if e.state.Busy {
		e.logger.Debug("submit ignored while busy", zap.String("submission_id", e.state.SubmissionID))
		return warn(emit, "a prediction request is already in flight")
	}

	id := e.newID()
	snap := e.store.Snapshot()
	target := e.store.Target()

	e.state.Busy = true
	e.state.Outcome = domain.Pending()
	e.state.SubmissionID = id
	if !e.emitState(emit) {
		return false
	}
	if !emit(domain.Event{
		Type: domain.EventSubmitStart,
		Payload: domain.SubmitStartPayload{
			SubmissionID: id,
			Target:       target,
			Body:         predict.Translate(snap),
		},
	}) {
		return false
	}

	e.logger.Info("submitting prediction",
		zap.String("submission_id", id),
		zap.String("target", target.String()),
	)

	go func() {
		start := time.Now()
		out, err := e.submitter.Submit(ctx, snap, target)
		// Buffered; at most one submission is outstanding.
		results <- submitResult{id: id, outcome: out, err: err, duration: time.Since(start)}
	}()
	return true
}

func (e *Engine) finish(r submitResult, emit func(domain.Event) bool) bool {
	if r.id != e.state.SubmissionID {
		return true
	}
	e.state.Busy = false
	e.state.Outcome = r.outcome

	fields := []zap.Field{
		zap.String("submission_id", r.id),
		zap.Duration("duration", r.duration),
		zap.String("status", string(r.outcome.Status)),
	}
	if r.err != nil {
		e.logger.Warn("prediction failed", append(fields, zap.Error(r.err))...)
	} else {
		e.logger.Info("prediction completed", append(fields,
			zap.String("message", r.outcome.Message),
			zap.String("probability", predict.FormatProbability(r.outcome.Probability)),
		)...)
	}

	level := domain.LogInfo
	if r.outcome.Status == domain.OutcomeFailure {
		level = domain.LogError
		kind := "unknown"
		var perr *predict.Error
		if errors.As(r.err, &perr) {
			kind = string(perr.Kind)
		}
		if !emit(domain.Event{
			Type:  domain.EventError,
			Level: domain.LogError,
			Payload: domain.LogPayload{
				Message: "prediction failed: " + r.outcome.Reason,
				Fields:  map[string]string{"kind": kind, "submission_id": r.id},
			},
		}) {
			return false
		}
	}
	if !emit(domain.Event{
		Type:  domain.EventSubmitDone,
		Level: level,
		Payload: domain.SubmitDonePayload{
			SubmissionID: r.id,
			Outcome:      r.outcome,
			Duration:     r.duration,
		},
	}) {
		return false
	}
	return e.emitState(emit)
}

func (e *Engine) emitState(emit func(domain.Event) bool) bool {
	e.state.Snapshot = e.store.Snapshot()
	e.state.Target = e.store.Target()
	e.state.Frozen = e.store.Frozen()
	return emit(domain.Event{
		Type:    domain.EventState,
		Payload: domain.StatePayload{State: e.state.Clone()},
	})
}

func note(emit func(domain.Event) bool, msg string, fields map[string]string) bool {
	return emit(domain.Event{
		Type:    domain.EventLog,
		Payload: domain.LogPayload{Message: msg, Fields: fields},
	})
}

func warn(emit func(domain.Event) bool, msg string) bool {
	return emit(domain.Event{
		Type:    domain.EventWarning,
		Level:   domain.LogWarning,
		Payload: domain.LogPayload{Message: msg},
	})
}
