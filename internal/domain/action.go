package domain

type ActionType string

const (
	ActionSetMetric  ActionType = "set_metric"
	ActionStepMetric ActionType = "step_metric"
	ActionSetHost    ActionType = "set_host"
	ActionSetPort    ActionType = "set_port"
	ActionConnect    ActionType = "connect"
	ActionDisconnect ActionType = "disconnect"
	ActionSubmit     ActionType = "submit"
)

type Action struct {
	Type ActionType

	Metric MetricKey
	Value  float64
	// Number of steps for ActionStepMetric; may be negative.
	Delta int

	Text string
}
