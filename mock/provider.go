// Package mock provides test doubles for dataops interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/dataops"
)

// Interface compliance check.
var _ dataops.Provider = (*Provider)(nil)

// Provider is a test double for dataops.Provider.
// Set StreamFn before calling Stream.
type Provider struct {
	StreamFn func(ctx context.Context, req dataops.Request) (dataops.Stream, error)
}

// Stream delegates to StreamFn.
func (p *Provider) Stream(ctx context.Context, req dataops.Request) (dataops.Stream, error) {
	return p.StreamFn(ctx, req)
}
