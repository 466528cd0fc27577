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

// Package keyframe implements the two-stage keyframe selection pipeline.
// This file holds the Stage 1 core: pure functions that turn a sequence of
// per-frame embedding vectors into a temporal segmentation plus a sparse
// sampling of representative frame indices. Nothing here performs I/O; all
// failures are input-validation errors raised before any work happens.
package keyframe

import (
	"fmt"
	"math"
	"sort"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// AdjacentSimilarities computes the cosine similarity of each consecutive
// embedding pair. The result has length len(embeddings)-1; element i is the
// similarity of embeddings[i] and embeddings[i+1]. Embeddings are assumed
// unit-normalized (the similarity reducer normalizes defensively), so the
// similarity reduces to a dot product. The input is never mutated.
//
// A single embedding yields an empty slice. An empty input or vectors of
// mismatched dimension is a ValidationError.
func AdjacentSimilarities(embeddings [][]float32) ([]float64, error) {
	if len(embeddings) == 0 {
		return nil, &ValidationError{Param: "embeddings", Reason: "empty sequence"}
	}
	dim := len(embeddings[0])
	for i, e := range embeddings {
		if len(e) != dim {
			return nil, &ValidationError{
				Param:  "embeddings",
				Reason: fmt.Sprintf("vector %d has dimension %d, want %d", i, len(e), dim),
			}
		}
	}
	if dim == 0 {
		return nil, &ValidationError{Param: "embeddings", Reason: "zero-dimensional vectors"}
	}

	out := make([]float64, len(embeddings)-1)
	for i := 0; i < len(embeddings)-1; i++ {
		var dot float64
		a, b := embeddings[i], embeddings[i+1]
		for d := 0; d < dim; d++ {
			dot += float64(a[d]) * float64(b[d])
		}
		out[i] = dot
	}
	return out, nil
}

// GroupByThreshold segments the frame sequence into maximal runs of visually
// stable frames. A run is closed at frame i (inclusive) whenever
// similarities[i] < threshold, and a new run opens at frame i+1. The scan is
// a single greedy left-to-right pass, so for N frames (N-1 similarities) the
// returned runs partition [0, N) exactly: contiguous, ordered, no gaps.
//
// An empty similarity slice (N <= 1) yields exactly one run spanning the
// whole, possibly single-frame, sequence. A threshold outside [-1, 1] is a
// ValidationError, never silently clamped.
func GroupByThreshold(similarities []float64, threshold float64) ([]model.SimilarityRun, error) {
	if threshold < -1 || threshold > 1 || math.IsNaN(threshold) {
		return nil, &ValidationError{
			Param:  "threshold",
			Reason: fmt.Sprintf("%v outside [-1, 1]", threshold),
		}
	}

	runs := make([]model.SimilarityRun, 0, 4)
	start := 0
	for i, sim := range similarities {
		if sim < threshold {
			runs = append(runs, model.SimilarityRun{Start: start, End: i})
			start = i + 1
		}
	}
	runs = append(runs, model.SimilarityRun{Start: start, End: len(similarities)})
	return runs, nil
}

// SampleRepresentatives selects sparse representative frame indices from each
// run. A run no longer than stride contributes its midpoint (rounded toward
// the run start); a longer run contributes every stride-th index from its
// start, up to and including its end. The merged result is deduplicated and
// sorted ascending, so resampling the same runs is idempotent.
//
// A stride below 1 is a ValidationError.
func SampleRepresentatives(runs []model.SimilarityRun, totalFrames int, stride int) ([]int, error) {
	if stride < 1 {
		return nil, &ValidationError{
			Param:  "stride",
			Reason: fmt.Sprintf("%d is not positive", stride),
		}
	}

	seen := make(map[int]struct{})
	out := make([]int, 0, len(runs))
	for _, run := range runs {
		if run.Start < 0 || run.End >= totalFrames || run.Start > run.End {
			return nil, &ValidationError{
				Param:  "runs",
				Reason: fmt.Sprintf("run [%d, %d] outside frame range [0, %d)", run.Start, run.End, totalFrames),
			}
		}
		if run.Len() <= stride {
			mid := run.Start + (run.Len()-1)/2
			if _, ok := seen[mid]; !ok {
				seen[mid] = struct{}{}
				out = append(out, mid)
			}
			continue
		}
		for idx := run.Start; idx <= run.End; idx += stride {
			if _, ok := seen[idx]; !ok {
				seen[idx] = struct{}{}
				out = append(out, idx)
			}
		}
	}
	sort.Ints(out)
	return out, nil
}
