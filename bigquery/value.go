package bigquery

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
)

// Normalize converts a row value into a JSON-friendly value. Records become
// maps keyed by field name when the schema is known; repeated fields become
// slices.
func Normalize(v bigquery.Value, f *bigquery.FieldSchema) any {
	if v == nil {
		return nil
	}
	if f != nil && f.Repeated {
		items, ok := v.([]bigquery.Value)
		if !ok {
			return Normalize(v, nil)
		}
		elem := *f
		elem.Repeated = false
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = Normalize(item, &elem)
		}
		return out
	}
	switch x := v.(type) {
	case []bigquery.Value:
		if f != nil && f.Type == bigquery.RecordFieldType {
			m := make(map[string]any, len(x))
			for i, item := range x {
				if i < len(f.Schema) {
					m[f.Schema[i].Name] = Normalize(item, f.Schema[i])
				}
			}
			return m
		}
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Normalize(item, nil)
		}
		return out
	case map[string]bigquery.Value:
		m := make(map[string]any, len(x))
		for k, item := range x {
			m[k] = Normalize(item, nil)
		}
		return m
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case *big.Rat:
		return trimRat(x.FloatString(9))
	case bool, int64, float64, string:
		return x
	case fmt.Stringer:
		// civil.Date, civil.Time, civil.DateTime
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func trimRat(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
