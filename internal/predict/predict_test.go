package predict

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joserraldo/diabetes/internal/domain"
)

func targetFor(t *testing.T, rawURL string) domain.Target {
	t.Helper()
	host, port, err := net.SplitHostPort(strings.TrimPrefix(rawURL, "http://"))
	require.NoError(t, err)
	return domain.Target{Host: host, Port: port}
}

var canonicalKeys = []string{
	"Age", "Pregnancies", "BMI", "Glucose", "BloodPressure", "HbA1c",
	"LDL", "HDL", "Triglycerides", "WaistCircumference", "HipCircumference",
	"WHR", "FamilyHistory", "DietType", "Hypertension", "MedicationUse",
}

func TestTranslateMapsEveryKey(t *testing.T) {
	t.Parallel()

	snap := domain.DefaultSnapshot()
	out := Translate(snap)

	require.Len(t, out, 16)
	for _, k := range canonicalKeys {
		_, ok := out[k]
		assert.True(t, ok, "missing canonical key %s", k)
	}
	assert.Equal(t, 40.0, out["Age"])
	assert.Equal(t, 3.0, out["Pregnancies"])
	assert.Equal(t, 25.0, out["BMI"])
	assert.Equal(t, 80.0, out["WaistCircumference"])
	assert.Equal(t, 1.0, out["DietType"])
}

func TestProperty_TranslateIsABijection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	metrics := domain.Metrics()

	properties.Property("translate keeps values and round-trips", prop.ForAll(
		func(values []float64) bool {
			snap := make(domain.Snapshot, len(metrics))
			for i, m := range metrics {
				snap[m.Key] = values[i]
			}
			out := Translate(snap)
			if len(out) != len(metrics) {
				return false
			}
			for _, m := range metrics {
				if out[m.Canonical] != snap[m.Key] {
					return false
				}
			}
			for name, v := range out {
				m, ok := domain.MetricByCanonical(name)
				if !ok || snap[m.Key] != v {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(len(metrics), gen.Float64Range(-500, 500)),
	))

	properties.Property("translate is idempotent", prop.ForAll(
		func(values []float64) bool {
			snap := make(domain.Snapshot, len(metrics))
			for i, m := range metrics {
				snap[m.Key] = values[i]
			}
			a, b := Translate(snap), Translate(snap)
			if len(a) != len(b) {
				return false
			}
			for k, v := range a {
				if b[k] != v {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(len(metrics), gen.Float64Range(-500, 500)),
	))

	properties.TestingRun(t)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg  string
		want domain.Severity
	}{
		{"riesgo alto detectado", domain.SeverityHigh},
		{"high risk of diabetes", domain.SeverityHigh},
		{"riesgo moderado", domain.SeverityModerate},
		{"moderate risk", domain.SeverityModerate},
		{"riesgo alto y riesgo moderado", domain.SeverityHigh},
		{"Tiene riesgo de diabetes", domain.SeverityLow},
		{"No tiene riesgo de diabetes", domain.SeverityLow},
		{"Riesgo Alto", domain.SeverityLow},
		{"", domain.SeverityLow},
	}
	for _, tc := range cases {
		if got := Classify(tc.msg); got != tc.want {
			t.Fatalf("Classify(%q)=%q; want %q", tc.msg, got, tc.want)
		}
	}
}

func TestFormatProbability(t *testing.T) {
	t.Parallel()

	p := 0.83
	assert.Equal(t, "83.0%", FormatProbability(&p))
	z := 0.0
	assert.Equal(t, "0.0%", FormatProbability(&z))
	q := 0.12345
	assert.Equal(t, "12.3%", FormatProbability(&q))
	assert.Equal(t, "N/A", FormatProbability(nil))
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		body    string
		wantErr bool
		msg     string
		prob    string
	}{
		{name: "both fields", body: `{"mensaje":"riesgo alto detectado","probabilidad_diabetes":0.83}`, msg: "riesgo alto detectado", prob: "83.0%"},
		{name: "message only", body: `{"mensaje":"ok"}`, msg: "ok", prob: "N/A"},
		{name: "probability only", body: `{"probabilidad_diabetes":0.1}`, msg: DefaultMessage, prob: "10.0%"},
		{name: "zero probability", body: `{"probabilidad_diabetes":0}`, msg: DefaultMessage, prob: "0.0%"},
		{name: "full service body", body: `{"resultado":1,"mensaje":"Tiene riesgo de diabetes","probabilidad_diabetes":0.7312}`, msg: "Tiene riesgo de diabetes", prob: "73.1%"},
		{name: "empty object", body: `{}`, wantErr: true},
		{name: "full probability", body: `{"probabilidad_diabetes":1}`, msg: DefaultMessage, prob: "100.0%"},
		{name: "null probability is still present", body: `{"probabilidad_diabetes":null}`, msg: DefaultMessage, prob: "N/A"},
		{name: "empty message and null probability", body: `{"mensaje":"","probabilidad_diabetes":null}`, msg: DefaultMessage, prob: "N/A"},
		{name: "string probability is unknown", body: `{"probabilidad_diabetes":"0.5"}`, msg: DefaultMessage, prob: "N/A"},
		{name: "probability above one is unknown", body: `{"mensaje":"","probabilidad_diabetes":1.7}`, msg: DefaultMessage, prob: "N/A"},
		{name: "negative probability is unknown", body: `{"probabilidad_diabetes":-3}`, msg: DefaultMessage, prob: "N/A"},
		{name: "numeric message", body: `{"mensaje":123}`, msg: "123", prob: "N/A"},
		{name: "boolean message", body: `{"mensaje":true}`, msg: "true", prob: "N/A"},
		{name: "object message", body: `{"mensaje":{ "a": 1 }}`, msg: `{"a":1}`, prob: "N/A"},
		{name: "wrong types", body: `{"mensaje":5,"probabilidad_diabetes":"high"}`, msg: "5", prob: "N/A"},
		{name: "empty message only", body: `{"mensaje":""}`, wantErr: true},
		{name: "zero message only", body: `{"mensaje":0}`, wantErr: true},
		{name: "false message only", body: `{"mensaje":false,"resultado":1}`, wantErr: true},
		{name: "array", body: `[1,2]`, wantErr: true},
		{name: "null", body: `null`, wantErr: true},
		{name: "not json", body: `<html>502</html>`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := ParseResponse([]byte(tc.body))
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			out := r.Outcome()
			assert.Equal(t, domain.OutcomeSuccess, out.Status)
			assert.Equal(t, tc.msg, out.Message)
			assert.Equal(t, tc.prob, FormatProbability(out.Probability))
		})
	}
}

func TestSubmitSuccess(t *testing.T) {
	t.Parallel()

	var gotBody map[string]float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"mensaje":"riesgo alto detectado","probabilidad_diabetes":0.83}`))
	}))
	defer srv.Close()

	snap := domain.DefaultSnapshot()
	out, err := NewClient().Submit(context.Background(), snap, targetFor(t, srv.URL))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, out.Status)
	assert.Equal(t, "riesgo alto detectado", out.Message)
	require.NotNil(t, out.Probability)
	assert.InDelta(t, 0.83, *out.Probability, 1e-12)
	assert.Equal(t, domain.SeverityHigh, Classify(out.Message))
	assert.Equal(t, "83.0%", FormatProbability(out.Probability))

	assert.Equal(t, Translate(snap), gotBody)
	assert.Equal(t, domain.DefaultSnapshot(), snap, "snapshot must not be mutated")
}

func TestSubmitEmptyObjectIsInvalid(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	out, err := NewClient().Submit(context.Background(), domain.DefaultSnapshot(), targetFor(t, srv.URL))
	require.Error(t, err)
	assert.Equal(t, domain.Failure("invalid response"), out)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, KindInvalidResponse, perr.Kind)
}

func TestSubmitErrorStatusWithoutFieldsIsInvalid(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"field required"}`))
	}))
	defer srv.Close()

	out, err := NewClient().Submit(context.Background(), domain.DefaultSnapshot(), targetFor(t, srv.URL))
	require.ErrorIs(t, err, ErrInvalidResponse)
	assert.Equal(t, "invalid response", out.Reason)
}

func TestSubmitConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	target := targetFor(t, srv.URL)
	srv.Close()

	out, err := NewClient().Submit(context.Background(), domain.DefaultSnapshot(), target)
	require.Error(t, err)
	assert.Equal(t, domain.OutcomeFailure, out.Status)
	assert.NotEmpty(t, out.Reason)
	assert.Equal(t, err.Error(), out.Reason)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, KindTransport, perr.Kind)
}

func TestSubmitMalformedTarget(t *testing.T) {
	t.Parallel()

	out, err := NewClient().Submit(context.Background(), domain.DefaultSnapshot(), domain.Target{Host: "bad host", Port: "port"})
	require.Error(t, err)
	assert.Equal(t, domain.OutcomeFailure, out.Status)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, KindTransport, perr.Kind)
}

func TestSubmitTimeoutIsOptIn(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	out, err := NewClient(WithTimeout(50*time.Millisecond)).Submit(context.Background(), domain.DefaultSnapshot(), targetFor(t, srv.URL))
	require.Error(t, err)
	assert.Equal(t, domain.OutcomeFailure, out.Status)
	assert.Zero(t, NewClient().httpClient.Timeout)
}

func TestURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "http://52.91.48.195:5001/predict", URL(domain.Target{Host: "52.91.48.195", Port: "5001"}))
}
