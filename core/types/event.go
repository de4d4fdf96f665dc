package types

// Event is a structured notification describing a state change within the
// sale service. Attributes are flat string pairs so downstream consumers can
// index them without schema knowledge.
type Event struct {
	Type       string
	Attributes map[string]string
}
