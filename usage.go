package dataops

// Usage tracks token consumption.
//
//	InputTokens      = non-cached input tokens
//	CacheReadTokens  = tokens served from cache
//
// Total input tokens = InputTokens + CacheReadTokens. Providers clamp
// derived values to zero to guard against inconsistent upstream data.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:     u.InputTokens + o.InputTokens,
		OutputTokens:    u.OutputTokens + o.OutputTokens,
		CacheReadTokens: u.CacheReadTokens + o.CacheReadTokens,
	}
}
