package logging

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Joserraldo/diabetes/internal/domain"
	"github.com/Joserraldo/diabetes/internal/predict"
)

const sessionLogName = "session.md"

type Config struct {
	// Always writes the log even when no submission failed.
	Always  bool
	Dir     string
	Version string
	Mode    string
}

type Result struct {
	Path    string
	Written bool
}

type submission struct {
	id       string
	started  time.Time
	target   domain.Target
	body     map[string]float64
	outcome  domain.Outcome
	duration time.Duration
	done     bool
}

// EventLogger collects session events and writes a markdown summary of every
// submission when the session ends.
type EventLogger struct {
	cfg      Config
	started  time.Time
	ended    time.Time
	order    []string
	byID     map[string]*submission
	buffer   logBuffer
	hadError bool
}

func NewEventLogger(cfg Config) *EventLogger {
	return &EventLogger{
		cfg:     cfg,
		started: time.Now(),
		byID:    map[string]*submission{},
	}
}

func (l *EventLogger) Record(ev domain.Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now()
	}
	l.ended = ev.TS

	switch ev.Type {
	case domain.EventSubmitStart:
		p, ok := ev.Payload.(domain.SubmitStartPayload)
		if !ok {
			return
		}
		if _, seen := l.byID[p.SubmissionID]; !seen {
			l.order = append(l.order, p.SubmissionID)
		}
		l.byID[p.SubmissionID] = &submission{
			id:      p.SubmissionID,
			started: ev.TS,
			target:  p.Target,
			body:    p.Body,
		}
	case domain.EventSubmitDone:
		p, ok := ev.Payload.(domain.SubmitDonePayload)
		if !ok {
			return
		}
		s := l.byID[p.SubmissionID]
		if s == nil {
			s = &submission{id: p.SubmissionID, started: ev.TS}
			l.byID[p.SubmissionID] = s
			l.order = append(l.order, p.SubmissionID)
		}
		s.outcome = p.Outcome
		s.duration = p.Duration
		s.done = true
		if p.Outcome.Status == domain.OutcomeFailure {
			l.hadError = true
		}
	case domain.EventLog:
		l.buffer.add(ev, domain.LogInfo)
	case domain.EventWarning:
		l.buffer.add(ev, domain.LogWarning)
	case domain.EventError:
		l.hadError = true
		l.buffer.add(ev, domain.LogError)
	}
}

func (l *EventLogger) MarkFailure() {
	l.hadError = true
}

func (l *EventLogger) Finalize() (Result, error) {
	if !l.cfg.Always && !l.hadError {
		return Result{}, nil
	}

	path := filepath.Join(resolveLogDir(l.cfg.Dir), sessionLogName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if l.ended.IsZero() {
		l.ended = time.Now()
	}
	l.writeMarkdown(w)
	if err := w.Flush(); err != nil {
		return Result{}, err
	}
	return Result{Path: path, Written: true}, nil
}

func (l *EventLogger) writeMarkdown(w *bufio.Writer) {
	failed := 0
	for _, id := range l.order {
		if s := l.byID[id]; s.done && s.outcome.Status == domain.OutcomeFailure {
			failed++
		}
	}

	fmt.Fprintln(w, "# Diabetes risk predictor session")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "- Started: %s\n", l.started.Format(time.RFC3339))
	fmt.Fprintf(w, "- Ended: %s\n", l.ended.Format(time.RFC3339))
	fmt.Fprintf(w, "- Submissions: %d (%d failed)\n", len(l.order), failed)
	if v := strings.TrimSpace(l.cfg.Version); v != "" {
		fmt.Fprintf(w, "- Version: %s\n", v)
	}
	if m := strings.TrimSpace(l.cfg.Mode); m != "" {
		fmt.Fprintf(w, "- Mode: %s\n", m)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Submissions")
	if len(l.order) == 0 {
		fmt.Fprintln(w, "_No submissions recorded._")
	}
	for i, id := range l.order {
		writeSubmission(w, i+1, l.byID[id])
	}

	if len(l.buffer.entries) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "## Notes")
		writeEntries(w, l.buffer.entries)
	}
}

func writeSubmission(w *bufio.Writer, n int, s *submission) {
	fmt.Fprintf(w, "### %d. `%s`\n", n, s.id)
	fmt.Fprintf(w, "- Sent: %s\n", s.started.Format("2006-01-02 15:04:05"))
	if s.target.Host != "" || s.target.Port != "" {
		fmt.Fprintf(w, "- Target: %s\n", predict.URL(s.target))
	}

	switch {
	case !s.done:
		fmt.Fprintln(w, "- Result: abandoned before a response arrived")
	case s.outcome.Status == domain.OutcomeSuccess:
		fmt.Fprintf(w, "- Result: %s\n", sanitizeMessage(s.outcome.Message))
		fmt.Fprintf(w, "- Probability: %s\n", predict.FormatProbability(s.outcome.Probability))
		fmt.Fprintf(w, "- Severity: %s\n", strings.ToUpper(string(predict.Classify(s.outcome.Message))))
	default:
		fmt.Fprintf(w, "- Result: failed (%s)\n", sanitizeMessage(s.outcome.Reason))
	}
	if s.done {
		fmt.Fprintf(w, "- Duration: %s\n", s.duration.Round(time.Millisecond))
	}

	if len(s.body) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Field | Value |")
		fmt.Fprintln(w, "| --- | --- |")
		for _, m := range domain.Metrics() {
			v, ok := s.body[m.Canonical]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "| %s | %s |\n", m.Canonical, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	fmt.Fprintln(w)
}

type logItem struct {
	ts      time.Time
	level   domain.LogLevel
	source  string
	message string
	fields  string
	count   int
}

func writeEntries(w *bufio.Writer, entries []domain.LogEntry) {
	items := compressEntries(entries)
	if len(items) == 0 {
		fmt.Fprintln(w, "_No logs recorded._")
		return
	}
	fmt.Fprintln(w, "```text")
	for _, item := range items {
		fmt.Fprintln(w, formatItemLine(item))
	}
	fmt.Fprintln(w, "```")
}

// compressEntries folds runs of identical entries into one counted item.
func compressEntries(entries []domain.LogEntry) []logItem {
	items := make([]logItem, 0, len(entries))
	for _, entry := range entries {
		item := logItem{
			ts:      entry.TS,
			level:   entry.Level,
			source:  strings.TrimSpace(entry.Source),
			message: sanitizeMessage(strings.TrimSpace(entry.Message)),
			fields:  formatFields(entry.Fields),
			count:   1,
		}
		if len(items) > 0 {
			last := &items[len(items)-1]
			if last.level == item.level && last.source == item.source && last.message == item.message && last.fields == item.fields {
				last.count++
				continue
			}
		}
		items = append(items, item)
	}
	return items
}

func formatItemLine(item logItem) string {
	level := strings.ToUpper(string(item.level))
	if level == "" {
		level = "INFO"
	}
	line := fmt.Sprintf("%s [%s]", item.ts.Format("2006-01-02 15:04:05"), level)
	if item.source != "" {
		line += " (" + item.source + ")"
	}
	if item.message != "" {
		line += " " + item.message
	}
	if item.count > 1 {
		line += fmt.Sprintf(" (x%d)", item.count)
	}
	if item.fields != "" {
		line += " [" + item.fields + "]"
	}
	return line
}

func formatFields(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+formatValue(sanitizeMessage(fields[k])))
	}
	return strings.Join(out, " ")
}

func formatValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "\"\""
	}
	if strings.ContainsAny(v, " \t") {
		return strconv.Quote(v)
	}
	return v
}

func resolveLogDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err == nil {
		return dir
	}
	return os.TempDir()
}

type logBuffer struct {
	entries []domain.LogEntry
}

func (b *logBuffer) add(ev domain.Event, level domain.LogLevel) {
	payload, ok := ev.Payload.(domain.LogPayload)
	if !ok {
		return
	}
	b.entries = append(b.entries, domain.LogEntry{
		TS:      ev.TS,
		Level:   level,
		Source:  ev.Source,
		Message: payload.Message,
		Fields:  payload.Fields,
	})
}

// sanitizeMessage keeps one log item on one line.
func sanitizeMessage(message string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return ' '
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, message)
}
