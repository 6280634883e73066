package predict

import "github.com/Joserraldo/diabetes/internal/domain"

// Translate renames every snapshot key to the canonical name the prediction
// service expects. Values are passed through untouched.
func Translate(s domain.Snapshot) map[string]float64 {
	metrics := domain.Metrics()
	out := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		out[m.Canonical] = s[m.Key]
	}
	return out
}
