package usage

import (
	"context"
	"errors"
	"time"

	"resumehq/refinery/pkg/ratelimit"
	"resumehq/refinery/pkg/refine"
)

// Refinery is the orchestrator surface the recorder wraps. Implemented
// by *refine.Refiner.
type Refinery interface {
	RefineOne(ctx context.Context, identifier string, req *refine.Request) (*refine.ItemResult, *ratelimit.Result, error)
	RefineBatch(ctx context.Context, identifier string, reqs []*refine.Request) ([]*refine.ItemResult, *ratelimit.Result, error)
	Status(ctx context.Context, identifier string) (*ratelimit.Result, error)
}

// RecordingRefinery decorates a Refinery with ledger recording. Every
// refinement operation (including denials) produces one entry; Status
// reads are not recorded. Recording is asynchronous and never affects
// the refinement outcome.
type RecordingRefinery struct {
	inner  Refinery
	ledger *Ledger
	now    func() time.Time
}

// NewRecordingRefinery wraps a Refinery with usage recording.
func NewRecordingRefinery(inner Refinery, ledger *Ledger) *RecordingRefinery {
	return &RecordingRefinery{inner: inner, ledger: ledger, now: time.Now}
}

// RefineOne implements Refinery.
func (r *RecordingRefinery) RefineOne(ctx context.Context, identifier string, req *refine.Request) (*refine.ItemResult, *ratelimit.Result, error) {
	start := r.now()
	item, snapshot, err := r.inner.RefineOne(ctx, identifier, req)

	if recordable(err) {
		entry := Entry{
			Identifier: identifier,
			Operation:  "single",
			BatchSize:  1,
			Allowed:    err == nil,
			Latency:    r.now().Sub(start),
		}
		if item != nil && item.FromCache {
			entry.CacheHits = 1
		}
		r.ledger.RecordRefinement(entry)
	}

	return item, snapshot, err
}

// RefineBatch implements Refinery.
func (r *RecordingRefinery) RefineBatch(ctx context.Context, identifier string, reqs []*refine.Request) ([]*refine.ItemResult, *ratelimit.Result, error) {
	start := r.now()
	results, snapshot, err := r.inner.RefineBatch(ctx, identifier, reqs)

	if recordable(err) {
		entry := Entry{
			Identifier: identifier,
			Operation:  "batch",
			BatchSize:  len(reqs),
			Allowed:    err == nil,
			Latency:    r.now().Sub(start),
		}
		for _, res := range results {
			if res != nil && res.FromCache {
				entry.CacheHits++
			}
		}
		r.ledger.RecordRefinement(entry)
	}

	return results, snapshot, err
}

// Status implements Refinery. Read-only; not recorded.
func (r *RecordingRefinery) Status(ctx context.Context, identifier string) (*ratelimit.Result, error) {
	return r.inner.Status(ctx, identifier)
}

// recordable reports whether the outcome represents a refinement
// decision worth a ledger row. Validation failures never reached the
// quota or the provider and are skipped; denials are recorded.
func recordable(err error) bool {
	if err == nil {
		return true
	}
	var qerr *refine.QuotaError
	return errors.As(err, &qerr)
}
