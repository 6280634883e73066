package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Joserraldo/diabetes/internal/domain"
	"github.com/Joserraldo/diabetes/internal/engine/session"
	"github.com/Joserraldo/diabetes/internal/form"
	"github.com/Joserraldo/diabetes/internal/logging"
	"github.com/Joserraldo/diabetes/internal/predict"
)

// metricFlag remembers whether it was given on the command line.
type metricFlag struct {
	key domain.MetricKey
	v   float64
	set bool
}

func (f *metricFlag) String() string { return "" }
func (f *metricFlag) Set(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	f.v, f.set = v, true
	return nil
}

func metricFlagName(m domain.Metric) string {
	return strings.ToLower(m.Canonical)
}

func registerMetricFlags(fs *flag.FlagSet) []*metricFlag {
	metrics := domain.Metrics()
	out := make([]*metricFlag, 0, len(metrics))
	for _, m := range metrics {
		f := &metricFlag{key: m.Key}
		usage := m.Label
		if m.Kind == domain.KindContinuous {
			usage = fmt.Sprintf("%s, %s..%s (default %s)", m.Label,
				strconv.FormatFloat(m.Min, 'f', -1, 64), strconv.FormatFloat(m.Max, 'f', -1, 64), m.Format(m.Default))
		} else {
			labels := make([]string, 0, len(m.Choices))
			for _, c := range m.Choices {
				labels = append(labels, fmt.Sprintf("%g=%s", c.Value, c.Label))
			}
			usage = fmt.Sprintf("%s, one of %s", m.Label, strings.Join(labels, ", "))
		}
		fs.Var(f, metricFlagName(m), usage)
		out = append(out, f)
	}
	return out
}

// buildStore applies explicitly given metric values on top of the defaults.
func buildStore(target domain.Target, flags []*metricFlag) (*form.Store, error) {
	store := form.NewStore(target)
	for _, f := range flags {
		if !f.set {
			continue
		}
		if _, err := store.Set(f.key, f.v); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func runPredict(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var cf clientFlags
	cf.register(fs)
	asJSON := fs.Bool("json", false, "Print the outcome as JSON")
	metricFlags := registerMetricFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		return 2
	}
	cfg, err := cf.load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	store, err := buildStore(cfg.TargetValue(), metricFlags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, err := logging.NewZap(logging.ZapConfig{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	submitter, mode, err := newSubmitter(cf.demo, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	events := make(chan domain.Event, 64)
	actions := make(chan domain.Action, 4)
	engineCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	session.New(store, submitter, session.WithLogger(logger)).Run(engineCtx, events, actions)

	sessionLog := logging.NewEventLogger(logging.Config{Always: cf.log, Dir: cf.logDir, Version: Version, Mode: "cli-" + string(mode)})
	actions <- domain.Action{Type: domain.ActionConnect}
	actions <- domain.Action{Type: domain.ActionSubmit}

	done, err := runCLI(ctx, events, sessionLog)
	cancel()
	if err != nil {
		return finish(sessionLog, err)
	}
	if err := printOutcome(os.Stdout, done, *asJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if code := finish(sessionLog, nil); code != 0 {
		return code
	}
	if done.Outcome.Status != domain.OutcomeSuccess {
		if !*asJSON {
			fmt.Fprintf(os.Stderr, "Prediction failed: %s\n", done.Outcome.Reason)
		}
		return 1
	}
	return 0
}

// runCLI consumes engine events until the first submission completes.
func runCLI(ctx context.Context, events <-chan domain.Event, rec *logging.EventLogger) (domain.SubmitDonePayload, error) {
	for {
		select {
		case <-ctx.Done():
			return domain.SubmitDonePayload{}, fmt.Errorf("prediction cancelled: %w", ctx.Err())
		case ev, ok := <-events:
			if !ok {
				return domain.SubmitDonePayload{}, errors.New("session ended before a result arrived")
			}
			rec.Record(ev)
			switch ev.Type {
			case domain.EventWarning:
				if p, ok := ev.Payload.(domain.LogPayload); ok {
					fmt.Fprintf(os.Stderr, "warning: %s\n", p.Message)
				}
			case domain.EventSubmitDone:
				if p, ok := ev.Payload.(domain.SubmitDonePayload); ok {
					return p, nil
				}
			}
		}
	}
}

type outcomeJSON struct {
	SubmissionID string   `json:"submission_id"`
	Status       string   `json:"status"`
	Severity     string   `json:"severity,omitempty"`
	Message      string   `json:"message,omitempty"`
	Probability  *float64 `json:"probability,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	DurationMS   int64    `json:"duration_ms"`
}

func printOutcome(w io.Writer, done domain.SubmitDonePayload, asJSON bool) error {
	out := done.Outcome
	if asJSON {
		j := outcomeJSON{
			SubmissionID: done.SubmissionID,
			Status:       string(out.Status),
			Reason:       out.Reason,
			DurationMS:   done.Duration.Milliseconds(),
		}
		if out.Status == domain.OutcomeSuccess {
			j.Severity = string(predict.Classify(out.Message))
			j.Message = out.Message
			j.Probability = out.Probability
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(j)
	}
	if out.Status != domain.OutcomeSuccess {
		return nil
	}
	_, err := fmt.Fprintf(w, "Severity:    %s\nMessage:     %s\nProbability: %s\n",
		strings.ToUpper(string(predict.Classify(out.Message))), out.Message, predict.FormatProbability(out.Probability))
	return err
}
