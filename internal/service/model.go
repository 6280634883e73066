package service

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Joserraldo/diabetes/internal/domain"
)

// Model is a standard-scaled logistic scorer. Features are read in the order
// given by Features, each scaled as (x-mean)/scale before the dot product.
type Model struct {
	Name         string    `yaml:"name"`
	Features     []string  `yaml:"features"`
	Mean         []float64 `yaml:"mean"`
	Scale        []float64 `yaml:"scale"`
	Coefficients []float64 `yaml:"coefficients"`
	Intercept    float64   `yaml:"intercept"`
	Threshold    float64   `yaml:"threshold"`
}

const (
	messageAtRisk    = "Tiene riesgo de diabetes"
	messageNotAtRisk = "No tiene riesgo de diabetes"
)

// DefaultModel is used when no model file is configured.
func DefaultModel() *Model {
	features := make([]string, 0, 16)
	for _, m := range domain.Metrics() {
		features = append(features, m.Canonical)
	}
	return &Model{
		Name:     "builtin-logistic-v1",
		Features: features,
		// Age, Pregnancies, BMI, Glucose, BloodPressure, HbA1c, LDL, HDL,
		// Triglycerides, Waist, Hip, WHR, FamilyHistory, DietType,
		// Hypertension, MedicationUse.
		Mean:         []float64{45, 3, 28, 110, 80, 5.8, 120, 50, 150, 95, 100, 0.92, 0.3, 1, 0.3, 0.2},
		Scale:        []float64{15, 3, 6, 30, 12, 1, 35, 12, 60, 15, 12, 0.08, 0.46, 0.8, 0.46, 0.4},
		Coefficients: []float64{0.45, 0.15, 0.5, 1.2, 0.2, 1.4, 0.15, -0.35, 0.3, 0.25, -0.05, 0.3, 0.4, -0.3, 0.3, 0.25},
		Intercept:    -1.2,
		Threshold:    0.5,
	}
}

// LoadModel reads a YAML model file and validates it.
func LoadModel(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m Model
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if m.Threshold == 0 {
		m.Threshold = 0.5
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}

func (m *Model) Validate() error {
	n := len(m.Features)
	if n == 0 {
		return errors.New("no features")
	}
	if want := len(domain.Metrics()); n != want {
		return fmt.Errorf("model has %d features, want %d", n, want)
	}
	if len(m.Mean) != n || len(m.Scale) != n || len(m.Coefficients) != n {
		return fmt.Errorf("features=%d mean=%d scale=%d coefficients=%d: lengths differ",
			n, len(m.Mean), len(m.Scale), len(m.Coefficients))
	}
	seen := make(map[string]bool, n)
	for i, f := range m.Features {
		if _, ok := domain.MetricByCanonical(f); !ok {
			return fmt.Errorf("unknown feature %q", f)
		}
		if seen[f] {
			return fmt.Errorf("duplicate feature %q", f)
		}
		seen[f] = true
		if m.Scale[i] == 0 {
			return fmt.Errorf("feature %q has zero scale", f)
		}
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		return fmt.Errorf("threshold %v outside (0,1)", m.Threshold)
	}
	return nil
}

// Probability scores a canonical feature map. A missing feature scores as
// its mean.
func (m *Model) Probability(features map[string]float64) float64 {
	z := m.Intercept
	for i, name := range m.Features {
		v, ok := features[name]
		if !ok {
			continue
		}
		z += m.Coefficients[i] * (v - m.Mean[i]) / m.Scale[i]
	}
	return 1 / (1 + math.Exp(-z))
}

// Prediction is the service's answer to POST /predict.
type Prediction struct {
	Result      int     `json:"resultado"`
	Message     string  `json:"mensaje"`
	Probability float64 `json:"probabilidad_diabetes"`
}

// Predict classifies with a strict greater-than threshold and rounds the
// probability to four decimals.
func (m *Model) Predict(features map[string]float64) Prediction {
	p := m.Probability(features)
	out := Prediction{Message: messageNotAtRisk, Probability: math.Round(p*1e4) / 1e4}
	if p > m.Threshold {
		out.Result = 1
		out.Message = messageAtRisk
	}
	return out
}
