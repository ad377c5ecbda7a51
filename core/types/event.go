package types

// Event represents a typed purchase lifecycle event.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
