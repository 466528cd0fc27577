// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file defines how Stage 2 windows are dispatched to the selector.
// The two execution strategies trade throughput against judge rate limits:
// SequentialExecutor is the safe default under strict quotas, PoolExecutor
// drains the window queue with a fixed-size worker pool. The final output is
// identical either way because the reconciler sorts by global index.
package keyframe

import (
	"context"
	"fmt"
	"sync"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// WindowFunc processes one window into its selections. It must be safe for
// concurrent use across distinct windows.
type WindowFunc func(ctx context.Context, window model.Window) []model.Selection

// WindowExecutor runs a WindowFunc over every window and returns the
// concatenated selections. Cancellation is cooperative: execution stops
// before dispatching further windows once ctx is done, and ctx.Err() is
// returned. In-flight judge calls observe the same ctx.
type WindowExecutor interface {
	Execute(ctx context.Context, windows []model.Window, process WindowFunc) ([]model.Selection, error)
}

// SequentialExecutor processes windows one at a time in batch order.
type SequentialExecutor struct{}

func (SequentialExecutor) Execute(ctx context.Context, windows []model.Window, process WindowFunc) ([]model.Selection, error) {
	out := make([]model.Selection, 0, len(windows))
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, process(ctx, w)...)
	}
	return out, nil
}

// PoolExecutor fans windows out to a fixed number of workers. Each worker
// pulls window positions off a jobs channel and writes into its own result
// slot, so no lock guards the result set. Results are flattened in batch
// order, keeping the first-occurrence tie-break of the reconciler
// deterministic regardless of completion order.
type PoolExecutor struct {
	workers int
}

func NewPoolExecutor(workers int) (*PoolExecutor, error) {
	if workers < 1 {
		return nil, &ValidationError{
			Param:  "worker_count",
			Reason: fmt.Sprintf("%d is not positive", workers),
		}
	}
	return &PoolExecutor{workers: workers}, nil
}

func (p *PoolExecutor) Execute(ctx context.Context, windows []model.Window, process WindowFunc) ([]model.Selection, error) {
	jobs := make(chan int)
	results := make([][]model.Selection, len(windows))

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = process(ctx, windows[i])
			}
		}()
	}

dispatch:
	for i := range windows {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Selection, 0, len(windows))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
