package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/recallmesh/core"
	"github.com/hupe1980/recallmesh/search"
)

// FakeSearcher is a configurable search collaborator.
type FakeSearcher struct {
	Results []search.Result
	Err     error
	Delay   time.Duration

	calls atomic.Int32
}

// Compile-time assertion
var _ search.Searcher = (*FakeSearcher)(nil)

// Search returns the configured results after Delay, honouring ctx.
func (f *FakeSearcher) Search(ctx context.Context, _ string, maxResults int) ([]search.Result, error) {
	f.calls.Add(1)

	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: search timed out: %v", core.ErrExternalService, ctx.Err())
		case <-time.After(f.Delay):
		}
	}

	if f.Err != nil {
		return nil, f.Err
	}

	results := f.Results
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	return results, nil
}

// Calls returns the number of Search invocations.
func (f *FakeSearcher) Calls() int { return int(f.calls.Load()) }
