// Package bigquery implements [dataops.Warehouse] on Google BigQuery.
//
// Dry runs never bill or scan data. Executions are capped by
// MaxBytesBilled and MaxRows. Failures the user can act on (bad SQL,
// missing tables, permissions, quota, timeouts) come back as data on the
// report or result; transient backend failures are returned as errors so
// callers can retry.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	"github.com/fwojciec/dataops"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultMaxRows bounds the rows read from one execution.
const DefaultMaxRows = 100

// Interface compliance check.
var _ dataops.Warehouse = (*Client)(nil)

// Config configures a [Client].
type Config struct {
	Project        string // billing project for query jobs
	Location       string // job location, empty = auto
	MaxBytesBilled int64  // 0 = project default
	MaxRows        int    // 0 = DefaultMaxRows
	Logger         *slog.Logger
}

// Client implements [dataops.Warehouse].
type Client struct {
	bq  *bigquery.Client
	cfg Config
	log *slog.Logger
}

// New creates a [Client]. Credentials come from opts or application default
// credentials.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("bigquery: project is required: %w", dataops.ErrConfig)
	}
	bq, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: %w", err)
	}
	if cfg.Location != "" {
		bq.Location = cfg.Location
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{bq: bq, cfg: cfg, log: log}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.bq.Close()
}

// DryRun validates sql and returns the bytes it would process.
func (c *Client) DryRun(ctx context.Context, sql string) (dataops.CostReport, error) {
	q := c.bq.Query(sql)
	q.DryRun = true
	q.UseLegacySQL = false

	report := dataops.CostReport{SQL: sql}
	job, err := q.Run(ctx)
	if err == nil {
		status := job.LastStatus()
		if err = status.Err(); err == nil {
			report.Valid = true
			if status.Statistics != nil {
				report.BytesProcessed = status.Statistics.TotalBytesProcessed
			}
			c.log.Debug("dry run", "bytes", report.BytesProcessed)
			return report, nil
		}
	}
	kind, transient := Classify(ctx, err)
	if transient || errors.Is(err, context.Canceled) {
		return report, fmt.Errorf("bigquery: dry run: %w", err)
	}
	report.Error = errorMessage(err)
	report.ErrorKind = kind
	c.log.Debug("dry run rejected", "kind", kind, "error", report.Error)
	return report, nil
}

// Query executes sql and reads at most MaxRows rows.
func (c *Client) Query(ctx context.Context, sql string) (dataops.QueryResult, error) {
	q := c.bq.Query(sql)
	q.UseLegacySQL = false
	if c.cfg.MaxBytesBilled > 0 {
		q.MaxBytesBilled = c.cfg.MaxBytesBilled
	}

	result := dataops.QueryResult{SQL: sql}
	it, err := q.Read(ctx)
	if err == nil {
		err = readRows(it, func() bigquery.Schema { return it.Schema }, c.cfg.MaxRows, &result)
		result.TotalRows = int64(it.TotalRows)
		if result.TotalRows < int64(len(result.Rows)) {
			result.TotalRows = int64(len(result.Rows))
		}
	}
	if err != nil {
		kind, transient := Classify(ctx, err)
		if transient || errors.Is(err, context.Canceled) {
			return dataops.QueryResult{SQL: sql}, fmt.Errorf("bigquery: query: %w", err)
		}
		result.Rows = nil
		result.Columns = nil
		result.Error = errorMessage(err)
		result.ErrorKind = kind
	}
	c.log.Debug("query", "rows", len(result.Rows), "total_rows", result.TotalRows, "kind", result.ErrorKind)
	return result, nil
}

// rowSource is the subset of *bigquery.RowIterator used to read results.
type rowSource interface {
	Next(dst any) error
}

// readRows fills result from it. The schema is only known after the first
// call to Next, hence the accessor.
func readRows(it rowSource, schema func() bigquery.Schema, maxRows int, result *dataops.QueryResult) error {
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return err
		}
		s := schema()
		if result.Columns == nil {
			result.Columns = columns(s)
		}
		if len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		result.Rows = append(result.Rows, rowMap(s, row))
	}
	if result.Columns == nil {
		result.Columns = columns(schema())
	}
	return nil
}

func columns(s bigquery.Schema) []string {
	cols := make([]string, len(s))
	for i, f := range s {
		cols[i] = f.Name
	}
	return cols
}

func rowMap(s bigquery.Schema, row []bigquery.Value) map[string]any {
	m := make(map[string]any, len(row))
	for i, v := range row {
		if i < len(s) {
			m[s[i].Name] = Normalize(v, s[i])
		} else {
			m[fmt.Sprintf("f%d", i)] = Normalize(v, nil)
		}
	}
	return m
}
