package dataops

// Exchange is one user input and everything the pipeline streamed back.
type Exchange struct {
	Input    string
	Events   []Event
	Rendered []string
}

// History is the display-only conversation log kept by a UI. It is
// append-only and order-preserving between calls to Clear.
// History is not safe for concurrent use.
type History struct {
	entries []Exchange
}

// Append adds an exchange at the end.
func (h *History) Append(e Exchange) {
	h.entries = append(h.entries, e)
}

// Clear removes all exchanges.
func (h *History) Clear() {
	h.entries = nil
}

// Len returns the number of exchanges.
func (h *History) Len() int { return len(h.entries) }

// Entries returns a copy of the exchanges in submission order.
func (h *History) Entries() []Exchange {
	out := make([]Exchange, len(h.entries))
	copy(out, h.entries)
	return out
}
