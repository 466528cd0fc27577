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

// This file holds the semantic selector, the Stage 2 adapter between a
// window of frames and the external judge capability.
package keyframe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// SemanticSelector converts one window at a time into a judge call and maps
// the judge's local picks back to global manifest indices. It never fails:
// a judge error or an unusable result degrades to the window's center frame
// so no temporal region is silently lost.
type SemanticSelector struct {
	judge  WindowJudge
	logger *slog.Logger

	judgeFailureCounter metric.Int64Counter
	indexDropCounter    metric.Int64Counter
	fallbackCounter     metric.Int64Counter
}

// NewSemanticSelector is the constructor for the SemanticSelector.
func NewSemanticSelector(judge WindowJudge, logger *slog.Logger) *SemanticSelector {
	out := &SemanticSelector{judge: judge, logger: logger}
	meter := otel.Meter("keyframe.selector")
	out.judgeFailureCounter, _ = meter.Int64Counter("keyframe.selector.judge.failure")
	out.indexDropCounter, _ = meter.Int64Counter("keyframe.selector.index.dropped")
	out.fallbackCounter, _ = meter.Int64Counter("keyframe.selector.fallback")
	return out
}

// ProcessWindow invokes the judge with the window's frame locators and wraps
// each valid returned index into a Selection. A local index outside
// [0, len(frames)) is discarded, as is a mapped global index at or beyond
// totalFrames (windows near the end never overshoot given the scheduler's
// offset math, but the bound is checked regardless). If the judge fails,
// returns no judgment, or zero valid indices remain after filtering, the
// window contributes a single Selection at its center local index
// len(frames)/2.
func (s *SemanticSelector) ProcessWindow(ctx context.Context, window model.Window, step, totalFrames int) []model.Selection {
	locators := make([]string, len(window.Frames))
	for i, f := range window.Frames {
		locators[i] = f.Locator
	}

	var locals []int
	judgment, err := s.judge.JudgeWindow(ctx, locators)
	switch {
	case err != nil:
		jerr := &JudgmentError{BatchID: window.BatchID, Err: err}
		s.logger.Warn("window judge failed, falling back to center frame",
			"batch_id", window.BatchID, "error", jerr)
		s.judgeFailureCounter.Add(ctx, 1)
	case judgment == nil:
		s.logger.Warn("window judge returned no judgment, falling back to center frame",
			"batch_id", window.BatchID)
		s.judgeFailureCounter.Add(ctx, 1)
	default:
		for _, li := range judgment.SelectedIndices {
			if li < 0 || li >= len(window.Frames) {
				berr := &BoundsError{BatchID: window.BatchID, Index: li, Limit: len(window.Frames)}
				s.logger.Warn("discarding out-of-range judge index", "error", berr)
				s.indexDropCounter.Add(ctx, 1)
				continue
			}
			locals = append(locals, li)
		}
	}
	if len(locals) == 0 {
		s.fallbackCounter.Add(ctx, 1)
		locals = []int{len(window.Frames) / 2}
	}

	selections := make([]model.Selection, 0, len(locals))
	for _, li := range locals {
		global := window.BatchID*step + li
		if global >= totalFrames {
			berr := &BoundsError{BatchID: window.BatchID, Index: global, Limit: totalFrames}
			s.logger.Warn("discarding overshooting global index", "error", berr)
			s.indexDropCounter.Add(ctx, 1)
			continue
		}
		selections = append(selections, model.Selection{
			BatchID:     window.BatchID,
			LocalIndex:  li,
			GlobalIndex: global,
		})
	}
	return selections
}
