package bigquery

import (
	"cloud.google.com/go/bigquery"
	"github.com/fwojciec/dataops"
)

// RowSource exposes the row reader input for tests.
type RowSource = rowSource

// ReadRows exposes readRows for tests.
func ReadRows(it RowSource, schema bigquery.Schema, maxRows int) (dataops.QueryResult, error) {
	var r dataops.QueryResult
	err := readRows(it, func() bigquery.Schema { return schema }, maxRows, &r)
	return r, err
}

// ErrorMessage exposes errorMessage for tests.
var ErrorMessage = errorMessage
