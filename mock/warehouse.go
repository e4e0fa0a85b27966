package mock

import (
	"context"

	"github.com/fwojciec/dataops"
)

// Interface compliance check.
var _ dataops.Warehouse = (*Warehouse)(nil)

// Warehouse is a test double for dataops.Warehouse.
type Warehouse struct {
	DryRunFn func(ctx context.Context, sql string) (dataops.CostReport, error)
	QueryFn  func(ctx context.Context, sql string) (dataops.QueryResult, error)
}

// DryRun delegates to DryRunFn.
func (w *Warehouse) DryRun(ctx context.Context, sql string) (dataops.CostReport, error) {
	return w.DryRunFn(ctx, sql)
}

// Query delegates to QueryFn.
func (w *Warehouse) Query(ctx context.Context, sql string) (dataops.QueryResult, error) {
	return w.QueryFn(ctx, sql)
}
