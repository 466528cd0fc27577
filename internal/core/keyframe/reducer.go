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

// This file defines the Stage 1 frame reducers. A reducer maps the full
// extracted frame sequence to the sorted subset of indices worth carrying
// into Stage 2. SimilarityReducer is the production implementation; the
// passthrough and fixed-interval variants exist for debugging runs and for
// environments without an embedding backend.
package keyframe

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// FrameReducer selects which frame indices survive Stage 1. Implementations
// return a sorted, duplicate-free set of indices into frames. An error
// aborts the pipeline run.
type FrameReducer interface {
	Reduce(ctx context.Context, frames []model.FrameRef) ([]int, error)
}

// SimilarityReducer collapses visually redundant frames by grouping
// consecutive frames whose embeddings stay above a cosine-similarity
// threshold, then sampling sparse representatives from each run.
type SimilarityReducer struct {
	embedder  Embedder
	threshold float64
	stride    int
	logger    *slog.Logger
}

// NewSimilarityReducer validates the grouping parameters eagerly so a bad
// configuration fails at startup instead of mid-run.
func NewSimilarityReducer(embedder Embedder, threshold float64, stride int, logger *slog.Logger) (*SimilarityReducer, error) {
	if threshold < -1 || threshold > 1 || math.IsNaN(threshold) {
		return nil, &ValidationError{
			Param:  "similarity_threshold",
			Reason: fmt.Sprintf("%v outside [-1, 1]", threshold),
		}
	}
	if stride < 1 {
		return nil, &ValidationError{
			Param:  "sample_stride",
			Reason: fmt.Sprintf("%d is not positive", stride),
		}
	}
	return &SimilarityReducer{
		embedder:  embedder,
		threshold: threshold,
		stride:    stride,
		logger:    logger,
	}, nil
}

// Reduce extracts one embedding per frame, segments the sequence into runs
// of stable similarity, and returns the sampled representative indices.
// Any embedding failure, including a count mismatch, is wrapped in an
// EmbeddingExtractionError; there is no partial-success mode.
func (r *SimilarityReducer) Reduce(ctx context.Context, frames []model.FrameRef) ([]int, error) {
	if len(frames) == 0 {
		return nil, &ValidationError{Param: "frames", Reason: "empty sequence"}
	}
	if len(frames) == 1 {
		return []int{0}, nil
	}

	locators := make([]string, len(frames))
	for i, f := range frames {
		locators[i] = f.Locator
	}

	embeddings, err := r.embedder.ExtractEmbeddings(ctx, locators)
	if err != nil {
		return nil, &EmbeddingExtractionError{Err: err}
	}
	if len(embeddings) != len(frames) {
		return nil, &EmbeddingExtractionError{
			Err: fmt.Errorf("got %d embeddings for %d frames", len(embeddings), len(frames)),
		}
	}
	normalized := normalizeEmbeddings(embeddings)

	similarities, err := AdjacentSimilarities(normalized)
	if err != nil {
		return nil, err
	}
	runs, err := GroupByThreshold(similarities, r.threshold)
	if err != nil {
		return nil, err
	}
	keep, err := SampleRepresentatives(runs, len(frames), r.stride)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("similarity reduction complete",
		"frames", len(frames),
		"runs", len(runs),
		"kept", len(keep))
	return keep, nil
}

// normalizeEmbeddings L2-normalizes each vector into a fresh slice, leaving
// the input untouched. Zero vectors are copied as is; their dot product with
// any neighbor is 0, which closes the run at that boundary for any positive
// threshold.
func normalizeEmbeddings(embeddings [][]float32) [][]float32 {
	out := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		v := make([]float32, len(e))
		var sum float64
		for _, x := range e {
			sum += float64(x) * float64(x)
		}
		norm := math.Sqrt(sum)
		if norm == 0 {
			copy(v, e)
		} else {
			for d, x := range e {
				v[d] = float32(float64(x) / norm)
			}
		}
		out[i] = v
	}
	return out
}

// PassthroughReducer keeps every frame. Useful for measuring the Stage 2
// judge in isolation.
type PassthroughReducer struct{}

func (PassthroughReducer) Reduce(_ context.Context, frames []model.FrameRef) ([]int, error) {
	if len(frames) == 0 {
		return nil, &ValidationError{Param: "frames", Reason: "empty sequence"}
	}
	keep := make([]int, len(frames))
	for i := range frames {
		keep[i] = i
	}
	return keep, nil
}

// FixedIntervalReducer keeps every interval-th frame starting from the
// first. It needs no embedding backend, which makes it the reducer of
// choice for smoke tests against real videos.
type FixedIntervalReducer struct {
	interval int
}

func NewFixedIntervalReducer(interval int) (*FixedIntervalReducer, error) {
	if interval < 1 {
		return nil, &ValidationError{
			Param:  "interval",
			Reason: fmt.Sprintf("%d is not positive", interval),
		}
	}
	return &FixedIntervalReducer{interval: interval}, nil
}

func (r *FixedIntervalReducer) Reduce(_ context.Context, frames []model.FrameRef) ([]int, error) {
	if len(frames) == 0 {
		return nil, &ValidationError{Param: "frames", Reason: "empty sequence"}
	}
	keep := make([]int, 0, len(frames)/r.interval+1)
	for i := 0; i < len(frames); i += r.interval {
		keep = append(keep, i)
	}
	return keep, nil
}
