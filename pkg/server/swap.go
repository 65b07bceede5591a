package server

import (
	"context"
	"sync/atomic"

	"resumehq/refinery/pkg/api"
	"resumehq/refinery/pkg/ratelimit"
	"resumehq/refinery/pkg/refine"
)

// SwappableRefinery is an api.Refinery that delegates to a replaceable
// inner instance. Swap is atomic; in-flight requests finish on the
// instance they started with.
type SwappableRefinery struct {
	current atomic.Value // api.Refinery
}

// NewSwappableRefinery creates a swappable wrapper around the given
// orchestrator.
func NewSwappableRefinery(inner api.Refinery) *SwappableRefinery {
	s := &SwappableRefinery{}
	s.current.Store(&refineryBox{inner})
	return s
}

// refineryBox keeps the stored concrete type constant, which
// atomic.Value requires even when the wrapped implementations differ.
type refineryBox struct {
	refinery api.Refinery
}

// Swap replaces the delegate. Used on configuration reload.
func (s *SwappableRefinery) Swap(inner api.Refinery) {
	s.current.Store(&refineryBox{inner})
}

func (s *SwappableRefinery) get() api.Refinery {
	return s.current.Load().(*refineryBox).refinery
}

// RefineOne implements api.Refinery.
func (s *SwappableRefinery) RefineOne(ctx context.Context, identifier string, req *refine.Request) (*refine.ItemResult, *ratelimit.Result, error) {
	return s.get().RefineOne(ctx, identifier, req)
}

// RefineBatch implements api.Refinery.
func (s *SwappableRefinery) RefineBatch(ctx context.Context, identifier string, reqs []*refine.Request) ([]*refine.ItemResult, *ratelimit.Result, error) {
	return s.get().RefineBatch(ctx, identifier, reqs)
}

// Status implements api.Refinery.
func (s *SwappableRefinery) Status(ctx context.Context, identifier string) (*ratelimit.Result, error) {
	return s.get().Status(ctx, identifier)
}
