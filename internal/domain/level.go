package domain

// ValueLevel grades a metric value for display colouring.
type ValueLevel string

const (
	LevelNeutral ValueLevel = "neutral"
	LevelLow     ValueLevel = "low"
	LevelOK      ValueLevel = "ok"
	LevelWarn    ValueLevel = "warn"
	LevelHigh    ValueLevel = "high"
)

// GradeValue only knows glucose and BMI thresholds; every other metric is
// neutral.
func GradeValue(key MetricKey, v float64) ValueLevel {
	switch key {
	case MetricGlucose:
		switch {
		case v < 100:
			return LevelOK
		case v < 126:
			return LevelWarn
		default:
			return LevelHigh
		}
	case MetricBMI:
		switch {
		case v < 18.5:
			return LevelLow
		case v < 25:
			return LevelOK
		case v < 30:
			return LevelWarn
		default:
			return LevelHigh
		}
	}
	return LevelNeutral
}
