package service

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Joserraldo/diabetes/internal/domain"
	"github.com/Joserraldo/diabetes/internal/predict"
)

// flatModel ignores every feature and scores sigmoid(intercept).
func flatModel(intercept float64) *Model {
	m := DefaultModel()
	for i := range m.Features {
		m.Mean[i] = 0
		m.Scale[i] = 1
		m.Coefficients[i] = 0
	}
	m.Intercept = intercept
	return m
}

func defaultBody(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(predict.Translate(domain.DefaultSnapshot()))
	require.NoError(t, err)
	return string(raw)
}

func TestDefaultModelIsValid(t *testing.T) {
	t.Parallel()

	m := DefaultModel()
	require.NoError(t, m.Validate())
	p := m.Probability(predict.Translate(domain.DefaultSnapshot()))
	assert.True(t, p > 0 && p < 1, "p=%v", p)
}

func TestPredictThresholdIsStrict(t *testing.T) {
	t.Parallel()

	out := flatModel(0).Predict(nil)
	assert.Equal(t, 0, out.Result)
	assert.Equal(t, 0.5, out.Probability)
	assert.Equal(t, messageNotAtRisk, out.Message)

	out = flatModel(1).Predict(nil)
	assert.Equal(t, 1, out.Result)
	assert.Equal(t, 0.7311, out.Probability)
	assert.Equal(t, messageAtRisk, out.Message)
}

func TestProbabilityUsesScaledFeatures(t *testing.T) {
	t.Parallel()

	m := flatModel(0)
	m.Mean[3] = 100
	m.Scale[3] = 20
	m.Coefficients[3] = 2

	// Glucose 120 scales to 1.0, so z = 2.
	p := m.Probability(map[string]float64{m.Features[3]: 120})
	assert.InDelta(t, 1/(1+math.Exp(-2)), p, 1e-12)
}

func TestLoadModel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	content := `name: test
features: [Age, Pregnancies, BMI, Glucose, BloodPressure, HbA1c, LDL, HDL, Triglycerides, WaistCircumference, HipCircumference, WHR, FamilyHistory, DietType, Hypertension, MedicationUse]
mean: [0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0]
scale: [1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1]
coefficients: [0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0]
intercept: 1
`
	require.NoError(t, os.WriteFile(good, []byte(content), 0o600))
	m, err := LoadModel(good)
	require.NoError(t, err)
	assert.Equal(t, "test", m.Name)
	assert.Equal(t, 0.5, m.Threshold)

	cases := map[string]string{
		"short.yaml":   "features: [Age]\nmean: [0]\nscale: [1]\ncoefficients: [1]\n",
		"unknown.yaml": strings.Replace(content, "MedicationUse", "Weight", 1),
		"zero.yaml":    strings.Replace(content, "scale: [1,", "scale: [0,", 1),
		"broken.yaml":  "features: [",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		_, err := LoadModel(path)
		assert.Error(t, err, name)
	}

	_, err = LoadModel(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewRouter(DefaultModel(), Options{}, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, statusMessage, body["message"])
}

func TestPredictEndpoint(t *testing.T) {
	t.Parallel()

	h := NewRouter(flatModel(1), Options{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(defaultBody(t)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var out Prediction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, Prediction{Result: 1, Message: messageAtRisk, Probability: 0.7311}, out)
}

func TestPredictEndpointRejectsBadBodies(t *testing.T) {
	t.Parallel()

	var full map[string]float64
	require.NoError(t, json.Unmarshal([]byte(defaultBody(t)), &full))
	delete(full, "HbA1c")
	missing, _ := json.Marshal(full)

	cases := []struct {
		name   string
		body   string
		detail string
	}{
		{"missing field", string(missing), "field required: HbA1c"},
		{"not an object", `[1,2]`, "JSON object"},
		{"string value", strings.Replace(defaultBody(t), `"Age":40`, `"Age":"forty"`, 1), "Age must be a number"},
		{"null value", strings.Replace(defaultBody(t), `"Age":40`, `"Age":null`, 1), "field required: Age"},
	}
	h := NewRouter(DefaultModel(), Options{}, nil)
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(tc.body))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, tc.name)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), tc.name)
		assert.Contains(t, body["detail"], tc.detail, tc.name)
	}
}

func TestPredictEndpointRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	body := strings.Replace(defaultBody(t), "{", `{"padding":"`+strings.Repeat("x", maxRequestBytes)+`",`, 1)
	h := NewRouter(DefaultModel(), Options{}, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	var detail map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Contains(t, detail["detail"], "exceeds")
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	h := NewRouter(DefaultModel(), Options{RateLimit: 1, Burst: 1}, nil)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}

func TestPreflight(t *testing.T) {
	t.Parallel()

	h := NewRouter(DefaultModel(), Options{RateLimit: 1, Burst: 1}, nil)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
		req.Header.Set("Origin", "http://localhost:8081")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
	}
}

func TestCORSOnActualRequest(t *testing.T) {
	t.Parallel()

	h := NewRouter(DefaultModel(), Options{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRecoverPanics(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	h := recoverPanics(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal server error")
	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestRequestLogLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	h := NewRouter(DefaultModel(), Options{}, zap.New(core))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{}`)))

	ok := logs.FilterMessage("request completed").All()
	require.Len(t, ok, 1)
	assert.Equal(t, zapcore.InfoLevel, ok[0].Level)
	assert.Equal(t, int64(http.StatusOK), ok[0].ContextMap()["status"])

	bad := logs.FilterMessage("request completed with client error").All()
	require.Len(t, bad, 1)
	assert.Equal(t, zapcore.WarnLevel, bad[0].Level)
	assert.NotEmpty(t, bad[0].ContextMap()["request_id"])
}

func TestClientAgainstService(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewRouter(flatModel(1), Options{}, nil))
	defer srv.Close()

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	out, err := predict.NewClient().Submit(context.Background(), domain.DefaultSnapshot(), domain.Target{Host: host, Port: port})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, out.Status)
	assert.Equal(t, messageAtRisk, out.Message)
	require.NotNil(t, out.Probability)
	assert.Equal(t, 0.7311, *out.Probability)
	assert.Equal(t, domain.SeverityLow, predict.Classify(out.Message))
	assert.Equal(t, "73.1%", predict.FormatProbability(out.Probability))
}

func TestServerRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := New(DefaultModel(), Options{Addr: "127.0.0.1:0"}, nil)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
}
