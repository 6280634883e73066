package predict

import (
	"fmt"
	"strings"

	"github.com/Joserraldo/diabetes/internal/domain"
)

// Severity markers are matched as plain, case-sensitive substrings of the
// service's free-text message. The service has no structured severity field.
var (
	highMarkers     = []string{"high risk", "riesgo alto"}
	moderateMarkers = []string{"moderate risk", "riesgo moderado"}
)

// Classify reads the severity of a success message. High wins over moderate;
// anything else is low.
func Classify(message string) domain.Severity {
	if containsAny(message, highMarkers) {
		return domain.SeverityHigh
	}
	if containsAny(message, moderateMarkers) {
		return domain.SeverityModerate
	}
	return domain.SeverityLow
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// FormatProbability renders a probability as a percentage with one decimal,
// or "N/A" when the service did not send one.
func FormatProbability(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *p*100)
}
