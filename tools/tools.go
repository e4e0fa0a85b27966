// Package tools exposes the warehouse to models as two tools: a dry run
// (explain_query) and a bounded execution (execute_bigquery_sql).
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/metrics"
	"github.com/google/jsonschema-go/jsonschema"
)

// Tool names as seen by the model.
const (
	ExplainQuery = "explain_query"
	ExecuteSQL   = "execute_bigquery_sql"
)

const (
	DefaultTimeout        = 60 * time.Second
	DefaultMaxResultBytes = 50 * 1024
	defaultMaxElapsed     = 30 * time.Second
)

// Input is the argument object of both tools.
type Input struct {
	SQL string `json:"sql" jsonschema:"the BigQuery Standard SQL query, passed unchanged"`
}

// Config configures an [Executor].
type Config struct {
	Warehouse      dataops.Warehouse
	Timeout        time.Duration // per call; 0 = DefaultTimeout
	MaxResultBytes int           // serialized execute result cap; 0 = DefaultMaxResultBytes
	MaxElapsed     time.Duration // total retry budget for transient failures
	RetryInterval  time.Duration // first retry delay; 0 = backoff default
	Logger         *slog.Logger
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Warehouse == nil {
		return fmt.Errorf("tools: warehouse is required: %w", dataops.ErrConfig)
	}
	return nil
}

// Interface compliance check.
var _ dataops.ToolExecutor = (*Executor)(nil)

// Executor implements [dataops.ToolExecutor] for the query tools.
type Executor struct {
	wh         dataops.Warehouse
	timeout    time.Duration
	maxBytes   int
	maxElapsed time.Duration
	interval   time.Duration
	log        *slog.Logger
}

// New creates an [Executor].
func New(cfg Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Executor{
		wh:         cfg.Warehouse,
		timeout:    cfg.Timeout,
		maxBytes:   cfg.MaxResultBytes,
		maxElapsed: cfg.MaxElapsed,
		interval:   cfg.RetryInterval,
		log:        cfg.Logger,
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.maxBytes <= 0 {
		e.maxBytes = DefaultMaxResultBytes
	}
	if e.maxElapsed <= 0 {
		e.maxElapsed = defaultMaxElapsed
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e, nil
}

// Explain returns the schema of the explain_query tool.
func Explain() dataops.Tool {
	return tool(ExplainQuery, "Validates a BigQuery SQL query with a dry run and returns whether it is valid and how many bytes it would process. Never executes the query.")
}

// Execute returns the schema of the execute_bigquery_sql tool.
func Execute() dataops.Tool {
	return tool(ExecuteSQL, "Executes a read-only BigQuery SQL query and returns a bounded set of result rows.")
}

func tool(name, desc string) dataops.Tool {
	schema, err := jsonschema.For[Input](nil)
	if err != nil {
		panic(fmt.Sprintf("tools: schema for %s: %v", name, err))
	}
	params, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: marshal schema for %s: %v", name, err))
	}
	return dataops.Tool{Name: name, Description: desc, Parameters: params}
}

// Execute dispatches a tool call by name.
func (e *Executor) Execute(ctx context.Context, name string, args json.RawMessage) (*dataops.ToolResult, error) {
	var in Input
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return errorResult(name, fmt.Sprintf("invalid arguments: %v", err)), nil
		}
	}
	switch name {
	case ExplainQuery:
		_, res, err := e.DryRun(ctx, in.SQL)
		return res, err
	case ExecuteSQL:
		_, res, err := e.Query(ctx, in.SQL)
		return res, err
	default:
		return nil, fmt.Errorf("tools: %s: %w", name, dataops.ErrToolNotFound)
	}
}

// DryRun validates sql and returns both the typed report and the tool
// result sent to the model.
func (e *Executor) DryRun(ctx context.Context, sql string) (dataops.CostReport, *dataops.ToolResult, error) {
	start := time.Now()
	report, err := e.dryRun(ctx, sql)
	observe(ExplainQuery, start, err == nil && report.Valid)
	if err != nil {
		return report, nil, err
	}
	if report.Valid {
		metrics.DryRunBytes.Observe(float64(report.BytesProcessed))
	}
	data := map[string]any{
		"valid":           report.Valid,
		"bytes_processed": report.BytesProcessed,
	}
	if report.Error != "" {
		data["error"] = report.Error
		data["error_kind"] = string(report.ErrorKind)
	}
	return report, result(data, !report.Valid), nil
}

func (e *Executor) dryRun(ctx context.Context, sql string) (dataops.CostReport, error) {
	if msg := checkReadOnly(sql); msg != "" {
		return dataops.CostReport{SQL: sql, Error: msg, ErrorKind: dataops.ErrorKindSyntax}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	report, err := retry(ctx, e, ExplainQuery, func() (dataops.CostReport, error) {
		return e.wh.DryRun(ctx, sql)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return dataops.CostReport{SQL: sql}, err
		}
		return dataops.CostReport{SQL: sql, Error: err.Error(), ErrorKind: kindFor(err)}, nil
	}
	return report, nil
}

// Query executes sql and returns both the typed result and the tool result
// sent to the model, cut to the byte cap.
func (e *Executor) Query(ctx context.Context, sql string) (dataops.QueryResult, *dataops.ToolResult, error) {
	start := time.Now()
	res, err := e.query(ctx, sql)
	observe(ExecuteSQL, start, err == nil && res.Error == "")
	if err != nil {
		return res, nil, err
	}
	res = Truncate(res, e.maxBytes)
	data := map[string]any{
		"rows":       rowsOrEmpty(res.Rows),
		"columns":    res.Columns,
		"total_rows": res.TotalRows,
		"truncated":  res.Truncated,
	}
	if res.Error != "" {
		data = map[string]any{
			"rows":       []map[string]any{},
			"error":      res.Error,
			"error_kind": string(res.ErrorKind),
		}
	}
	return res, result(data, res.Error != ""), nil
}

func (e *Executor) query(ctx context.Context, sql string) (dataops.QueryResult, error) {
	if msg := checkReadOnly(sql); msg != "" {
		return dataops.QueryResult{SQL: sql, Error: msg, ErrorKind: dataops.ErrorKindSyntax}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	res, err := retry(ctx, e, ExecuteSQL, func() (dataops.QueryResult, error) {
		return e.wh.Query(ctx, sql)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return dataops.QueryResult{SQL: sql}, err
		}
		return dataops.QueryResult{SQL: sql, Error: err.Error(), ErrorKind: kindFor(err)}, nil
	}
	return res, nil
}

// retry runs op with exponential backoff until it succeeds, ctx ends, or the
// retry budget is spent.
func retry[T any](ctx context.Context, e *Executor, name string, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	if e.interval > 0 {
		bo.InitialInterval = e.interval
	}
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		if attempt > 0 {
			e.log.Warn("warehouse call failed, retrying", "tool", name, "attempt", attempt)
		}
		attempt++
		return op()
	}, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(e.maxElapsed))
}

func kindFor(err error) dataops.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return dataops.ErrorKindTimeout
	}
	return dataops.ErrorKindInternal
}

func observe(name string, start time.Time, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	metrics.ToolCallsTotal.WithLabelValues(name, status).Inc()
	metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func result(data map[string]any, isErr bool) *dataops.ToolResult {
	b, err := json.Marshal(data)
	if err != nil {
		b = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	return &dataops.ToolResult{
		Content: []dataops.ContentBlock{dataops.TextBlock{Text: string(b)}},
		Data:    data,
		IsError: isErr,
	}
}

func errorResult(name, msg string) *dataops.ToolResult {
	data := map[string]any{"error": msg}
	if name == ExplainQuery {
		data["valid"] = false
	}
	return result(data, true)
}

func rowsOrEmpty(rows []map[string]any) []map[string]any {
	if rows == nil {
		return []map[string]any{}
	}
	return rows
}

// checkReadOnly returns a non-empty message when sql is not a single
// SELECT or WITH statement.
func checkReadOnly(sql string) string {
	s := strings.TrimSpace(stripComments(sql))
	if s == "" {
		return "empty query"
	}
	head := strings.ToUpper(s)
	if !strings.HasPrefix(head, "SELECT") && !strings.HasPrefix(head, "WITH") && !strings.HasPrefix(head, "(") {
		return "only SELECT or WITH queries are allowed"
	}
	if hasSecondStatement(s) {
		return "only a single statement is allowed"
	}
	return ""
}

// hasSecondStatement reports whether a semicolon outside quotes is followed
// by anything other than whitespace or more semicolons.
func hasSecondStatement(s string) bool {
	var quote rune
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == ';':
			return strings.TrimSpace(strings.ReplaceAll(s[i:], ";", "")) != ""
		}
	}
	return false
}

// stripComments removes leading -- and # line comments and /* */ blocks.
func stripComments(sql string) string {
	s := strings.TrimSpace(sql)
	for {
		switch {
		case strings.HasPrefix(s, "--"), strings.HasPrefix(s, "#"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = strings.TrimSpace(s[i+1:])
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = strings.TrimSpace(s[i+2:])
		default:
			return s
		}
	}
}
