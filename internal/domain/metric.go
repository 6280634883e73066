package domain

import "strconv"

// MetricKey is the internal (display) name of a metric. The prediction
// service knows every metric under a different, canonical name.
type MetricKey string

const (
	MetricAge           MetricKey = "Edad"
	MetricPregnancies   MetricKey = "Embarazos"
	MetricBMI           MetricKey = "IMC"
	MetricGlucose       MetricKey = "Glucosa"
	MetricBloodPressure MetricKey = "PresionArterial"
	MetricHbA1c         MetricKey = "HbA1c"
	MetricLDL           MetricKey = "LDL"
	MetricHDL           MetricKey = "HDL"
	MetricTriglycerides MetricKey = "Trigliceridos"
	MetricWaist         MetricKey = "Cintura"
	MetricHip           MetricKey = "Cadera"
	MetricWHR           MetricKey = "WHR"
	MetricFamilyHistory MetricKey = "HistoriaFamiliar"
	MetricDietType      MetricKey = "TipoDeDieta"
	MetricHypertension  MetricKey = "Hipertension"
	MetricMedicationUse MetricKey = "UsoDeMedicacion"
)

type MetricKind string

const (
	KindContinuous MetricKind = "continuous"
	KindDiscrete   MetricKind = "discrete"
)

type Choice struct {
	Value float64
	Label string
}

type Metric struct {
	Key       MetricKey
	Canonical string
	Label     string
	Unit      string
	Kind      MetricKind

	// Continuous only.
	Min  float64
	Max  float64
	Step float64

	// Discrete only; ordered as presented.
	Choices []Choice

	Default float64
}

// Precision is the number of decimals used to display the metric value.
func (m Metric) Precision() int {
	if m.Kind == KindContinuous && m.Step < 1 {
		return 1
	}
	return 0
}

// InDomain reports whether v is a legal value for the metric.
func (m Metric) InDomain(v float64) bool {
	if m.Kind == KindDiscrete {
		for _, c := range m.Choices {
			if c.Value == v {
				return true
			}
		}
		return false
	}
	return v >= m.Min && v <= m.Max
}

// Format renders a value the way the form shows it: the choice label for
// discrete metrics, otherwise the number at display precision and the unit.
func (m Metric) Format(v float64) string {
	if m.Kind == KindDiscrete {
		if l := m.ChoiceLabel(v); l != "" {
			return l
		}
	}
	s := strconv.FormatFloat(v, 'f', m.Precision(), 64)
	if m.Unit != "" {
		s += " " + m.Unit
	}
	return s
}

func (m Metric) ChoiceLabel(v float64) string {
	for _, c := range m.Choices {
		if c.Value == v {
			return c.Label
		}
	}
	return ""
}

var yesNo = []Choice{{Value: 0, Label: "No"}, {Value: 1, Label: "Yes"}}

var catalog = []Metric{
	{Key: MetricAge, Canonical: "Age", Label: "Age", Unit: "years", Kind: KindContinuous, Min: 0, Max: 80, Step: 1, Default: 40},
	{Key: MetricPregnancies, Canonical: "Pregnancies", Label: "Pregnancies", Kind: KindContinuous, Min: 0, Max: 10, Step: 1, Default: 3},
	{Key: MetricBMI, Canonical: "BMI", Label: "BMI", Unit: "kg/m²", Kind: KindContinuous, Min: 10, Max: 50, Step: 0.1, Default: 25},
	{Key: MetricGlucose, Canonical: "Glucose", Label: "Glucose", Unit: "mg/dL", Kind: KindContinuous, Min: 50, Max: 200, Step: 1, Default: 100},
	{Key: MetricBloodPressure, Canonical: "BloodPressure", Label: "Blood pressure", Unit: "mmHg", Kind: KindContinuous, Min: 40, Max: 180, Step: 1, Default: 80},
	{Key: MetricHbA1c, Canonical: "HbA1c", Label: "HbA1c", Unit: "%", Kind: KindContinuous, Min: 3, Max: 15, Step: 0.1, Default: 5.5},
	{Key: MetricLDL, Canonical: "LDL", Label: "LDL", Unit: "mg/dL", Kind: KindContinuous, Min: 50, Max: 200, Step: 1, Default: 100},
	{Key: MetricHDL, Canonical: "HDL", Label: "HDL", Unit: "mg/dL", Kind: KindContinuous, Min: 20, Max: 100, Step: 1, Default: 50},
	{Key: MetricTriglycerides, Canonical: "Triglycerides", Label: "Triglycerides", Unit: "mg/dL", Kind: KindContinuous, Min: 50, Max: 500, Step: 1, Default: 150},
	{Key: MetricWaist, Canonical: "WaistCircumference", Label: "Waist", Unit: "cm", Kind: KindContinuous, Min: 50, Max: 150, Step: 1, Default: 80},
	{Key: MetricHip, Canonical: "HipCircumference", Label: "Hip", Unit: "cm", Kind: KindContinuous, Min: 50, Max: 150, Step: 1, Default: 90},
	{Key: MetricWHR, Canonical: "WHR", Label: "Waist/hip ratio", Kind: KindContinuous, Min: 0.5, Max: 2, Step: 0.01, Default: 0.9},
	{Key: MetricFamilyHistory, Canonical: "FamilyHistory", Label: "Family history?", Kind: KindDiscrete, Choices: yesNo, Default: 0},
	{Key: MetricDietType, Canonical: "DietType", Label: "Diet", Kind: KindDiscrete, Choices: []Choice{
		{Value: 0, Label: "Unhealthy"},
		{Value: 1, Label: "Moderate"},
		{Value: 2, Label: "Healthy"},
	}, Default: 1},
	{Key: MetricHypertension, Canonical: "Hypertension", Label: "Hypertension?", Kind: KindDiscrete, Choices: yesNo, Default: 0},
	{Key: MetricMedicationUse, Canonical: "MedicationUse", Label: "Uses medication?", Kind: KindDiscrete, Choices: yesNo, Default: 0},
}

var catalogIndex = func() map[MetricKey]int {
	idx := make(map[MetricKey]int, len(catalog))
	for i, m := range catalog {
		idx[m.Key] = i
	}
	return idx
}()

// Metrics returns the full catalog in wire order.
func Metrics() []Metric {
	out := make([]Metric, len(catalog))
	copy(out, catalog)
	for i := range out {
		if len(out[i].Choices) > 0 {
			out[i].Choices = append([]Choice(nil), out[i].Choices...)
		}
	}
	return out
}

func LookupMetric(key MetricKey) (Metric, bool) {
	i, ok := catalogIndex[key]
	if !ok {
		return Metric{}, false
	}
	return catalog[i], true
}

// MetricByCanonical resolves a canonical (service-side) name.
func MetricByCanonical(name string) (Metric, bool) {
	for _, m := range catalog {
		if m.Canonical == name {
			return m, true
		}
	}
	return Metric{}, false
}

type Category struct {
	Title string
	Keys  []MetricKey
}

// Categories groups the range controls for presentation. Diet and the yes/no
// toggles are listed last, in their own groups.
func Categories() []Category {
	return []Category{
		{Title: "Personal information", Keys: []MetricKey{MetricAge}},
		{Title: "Body measurements", Keys: []MetricKey{MetricBMI, MetricWaist, MetricHip, MetricWHR}},
		{Title: "Laboratory values", Keys: []MetricKey{MetricGlucose, MetricHbA1c, MetricLDL, MetricHDL, MetricTriglycerides}},
		{Title: "Cardiovascular health", Keys: []MetricKey{MetricBloodPressure}},
		{Title: "History", Keys: []MetricKey{MetricPregnancies}},
		{Title: "Diet", Keys: []MetricKey{MetricDietType}},
		{Title: "Medical history", Keys: []MetricKey{MetricFamilyHistory, MetricHypertension, MetricMedicationUse}},
	}
}
