package ui

// Mode tells the user whether predictions come from a live service or from
// the in-process demo scorer.
type Mode string

const (
	ModeLive Mode = "live"
	ModeDemo Mode = "demo"
)

func (m Mode) Label() string {
	if m == ModeDemo {
		return "demo (offline scorer)"
	}
	return "live"
}

// Meta is static information shown in the header.
type Meta struct {
	Version string
}
