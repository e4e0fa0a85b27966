package tools

import (
	"encoding/json"

	"github.com/fwojciec/dataops"
)

// Truncate drops rows from the tail of r until its JSON encoding fits in
// maxBytes. Dropping any row sets Truncated.
func Truncate(r dataops.QueryResult, maxBytes int) dataops.QueryResult {
	if maxBytes <= 0 || r.Error != "" || len(r.Rows) == 0 {
		return r
	}
	size := func(rows []map[string]any) int {
		b, err := json.Marshal(struct {
			Rows      []map[string]any `json:"rows"`
			Columns   []string         `json:"columns"`
			TotalRows int64            `json:"total_rows"`
			Truncated bool             `json:"truncated"`
		}{rows, r.Columns, r.TotalRows, true})
		if err != nil {
			return maxBytes + 1
		}
		return len(b)
	}
	if size(r.Rows) <= maxBytes {
		return r
	}
	// Binary search for the largest prefix that fits.
	lo, hi := 0, len(r.Rows)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if size(r.Rows[:mid]) <= maxBytes {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	r.Rows = r.Rows[:lo]
	r.Truncated = true
	return r
}
