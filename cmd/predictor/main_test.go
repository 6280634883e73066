package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joserraldo/diabetes/internal/domain"
	"github.com/Joserraldo/diabetes/internal/form"
	"github.com/Joserraldo/diabetes/internal/service"
)

func TestRunCommands(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Equal(t, 0, run(ctx, []string{"version"}))
	assert.Equal(t, 0, run(ctx, []string{"help"}))
	assert.Equal(t, 2, run(ctx, []string{"frobnicate"}))
	assert.Equal(t, 2, run(ctx, []string{"predict", "--no-such-flag"}))
	assert.Equal(t, 2, run(ctx, []string{"predict", "--diettype=7"}))
	assert.Equal(t, 2, run(ctx, []string{"predict", "--glucose=abc"}))
	assert.Equal(t, 2, run(ctx, []string{"predict", "extra"}))
	assert.Equal(t, 2, run(ctx, []string{"serve", "--rate-limit=-1"}))
}

func TestPredictAgainstService(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(service.NewRouter(service.DefaultModel(), service.Options{}, nil))
	defer srv.Close()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	dir := t.TempDir()
	code := run(context.Background(), []string{
		"predict", "--host", host, "--port", port, "--glucose=180", "--hba1c=9.5",
		"--log", "--log-dir", dir,
	})
	assert.Equal(t, 0, code)

	raw, err := os.ReadFile(filepath.Join(dir, "session.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "| Glucose | 180 |")
	assert.Contains(t, string(raw), "| HbA1c | 9.5 |")
}

func TestPredictServiceDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(nil)
	addr := srv.Listener.Addr().String()
	srv.Close()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	dir := t.TempDir()
	code := run(context.Background(), []string{"predict", "--host", host, "--port", port, "--log-dir", dir})
	assert.Equal(t, 1, code)

	// Failures always leave a session log.
	raw, err := os.ReadFile(filepath.Join(dir, "session.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[ERROR] (session) prediction failed:")
	assert.Contains(t, string(raw), "kind=transport")
}

func TestPredictDemo(t *testing.T) {
	t.Setenv("PREDICTOR_MOCK_SPEED", "1000")
	t.Setenv("PREDICTOR_MOCK_FAIL", "")
	assert.Equal(t, 0, run(context.Background(), []string{"predict", "--demo", "--json", "--log-dir", t.TempDir()}))
}

func TestBuildStore(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := registerMetricFlags(fs)
	require.Len(t, flags, 16)
	require.NoError(t, fs.Parse([]string{"--age=95", "--bmi=31.26", "--familyhistory=1"}))

	store, err := buildStore(domain.Target{Host: "h", Port: "1"}, flags)
	require.NoError(t, err)
	snap := store.Snapshot()
	assert.Equal(t, 80.0, snap[domain.MetricAge])
	assert.InDelta(t, 31.3, snap[domain.MetricBMI], 1e-9)
	assert.Equal(t, 1.0, snap[domain.MetricFamilyHistory])
	assert.Equal(t, 100.0, snap[domain.MetricGlucose])

	require.NoError(t, fs.Parse([]string{"--hypertension=2"}))
	_, err = buildStore(domain.Target{}, flags)
	assert.ErrorIs(t, err, form.ErrOutOfDomain)
}

func TestPrintOutcome(t *testing.T) {
	t.Parallel()

	p := 0.4567
	done := domain.SubmitDonePayload{
		SubmissionID: "abc",
		Outcome:      domain.Success("No tiene riesgo de diabetes", &p),
		Duration:     1500 * time.Millisecond,
	}

	var text bytes.Buffer
	require.NoError(t, printOutcome(&text, done, false))
	assert.Equal(t, "Severity:    LOW\nMessage:     No tiene riesgo de diabetes\nProbability: 45.7%\n", text.String())

	var js bytes.Buffer
	require.NoError(t, printOutcome(&js, done, true))
	var got outcomeJSON
	require.NoError(t, json.Unmarshal(js.Bytes(), &got))
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, "low", got.Severity)
	assert.Equal(t, int64(1500), got.DurationMS)
	require.NotNil(t, got.Probability)
	assert.Equal(t, 0.4567, *got.Probability)

	js.Reset()
	fail := domain.SubmitDonePayload{SubmissionID: "x", Outcome: domain.Failure("invalid response")}
	require.NoError(t, printOutcome(&js, fail, true))
	assert.Contains(t, js.String(), `"reason": "invalid response"`)
	assert.NotContains(t, js.String(), "severity")
}
