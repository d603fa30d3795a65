package types

// Event is the canonical payload describing a single trade, escrow or
// reputation state change. Attributes carry string-encoded fields so the
// payload serializes the same way to every sink.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
