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

// Package keyframe_test contains unit tests for the Stage 1 core: adjacent
// similarity computation, threshold grouping, and representative sampling.
package keyframe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/keyframe"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

func TestAdjacentSimilarities(t *testing.T) {
	// Unit vectors along the axes give exact dot products: identical pairs
	// score 1, orthogonal pairs score 0.
	embeddings := [][]float32{
		{1, 0},
		{1, 0},
		{0, 1},
	}
	sims, err := keyframe.AdjacentSimilarities(embeddings)
	require.NoError(t, err)
	require.Len(t, sims, 2)
	assert.InDelta(t, 1.0, sims[0], 1e-9)
	assert.InDelta(t, 0.0, sims[1], 1e-9)
}

func TestAdjacentSimilaritiesSingleFrame(t *testing.T) {
	sims, err := keyframe.AdjacentSimilarities([][]float32{{1, 0}})
	require.NoError(t, err)
	assert.Empty(t, sims)
}

func TestAdjacentSimilaritiesValidation(t *testing.T) {
	_, err := keyframe.AdjacentSimilarities(nil)
	assert.True(t, keyframe.IsValidationError(err))

	_, err = keyframe.AdjacentSimilarities([][]float32{{1, 0}, {1}})
	assert.True(t, keyframe.IsValidationError(err))

	_, err = keyframe.AdjacentSimilarities([][]float32{{}, {}})
	assert.True(t, keyframe.IsValidationError(err))
}

// TestGroupByThresholdScenario replays the reference segmentation: ten
// frames with one similarity dip at index 3 split into exactly two runs.
func TestGroupByThresholdScenario(t *testing.T) {
	sims := []float64{0.99, 0.99, 0.99, 0.5, 0.99, 0.99, 0.99, 0.99, 0.99}
	runs, err := keyframe.GroupByThreshold(sims, 0.9)
	require.NoError(t, err)
	assert.Equal(t, []model.SimilarityRun{{Start: 0, End: 3}, {Start: 4, End: 9}}, runs)

	// With a stride larger than either run, each contributes its midpoint.
	reps, err := keyframe.SampleRepresentatives(runs, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 6}, reps)
}

// TestGroupByThresholdPartition checks the structural invariant: for any
// similarity sequence the returned runs cover [0, N) exactly once, in order,
// with no gaps.
func TestGroupByThresholdPartition(t *testing.T) {
	cases := [][]float64{
		{},
		{0.1},
		{0.99, 0.99, 0.99},
		{0.1, 0.1, 0.1},
		{0.95, 0.2, 0.95, 0.2, 0.95},
	}
	for _, sims := range cases {
		runs, err := keyframe.GroupByThreshold(sims, 0.9)
		require.NoError(t, err)
		require.NotEmpty(t, runs)
		assert.Equal(t, 0, runs[0].Start)
		assert.Equal(t, len(sims), runs[len(runs)-1].End)
		for i := 1; i < len(runs); i++ {
			assert.Equal(t, runs[i-1].End+1, runs[i].Start)
		}
	}
}

func TestGroupByThresholdEmptySimilarities(t *testing.T) {
	// A single-frame sequence has no similarities but still forms one run.
	runs, err := keyframe.GroupByThreshold(nil, 0.9)
	require.NoError(t, err)
	assert.Equal(t, []model.SimilarityRun{{Start: 0, End: 0}}, runs)
}

func TestGroupByThresholdValidation(t *testing.T) {
	_, err := keyframe.GroupByThreshold([]float64{0.5}, 1.5)
	assert.True(t, keyframe.IsValidationError(err))
	_, err = keyframe.GroupByThreshold([]float64{0.5}, -1.5)
	assert.True(t, keyframe.IsValidationError(err))
}

func TestSampleRepresentativesStride(t *testing.T) {
	// A run longer than the stride is walked from its start in stride steps.
	runs := []model.SimilarityRun{{Start: 0, End: 9}}
	reps, err := keyframe.SampleRepresentatives(runs, 10, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4, 8}, reps)
}

func TestSampleRepresentativesIdempotent(t *testing.T) {
	runs := []model.SimilarityRun{{Start: 0, End: 5}, {Start: 6, End: 20}}
	first, err := keyframe.SampleRepresentatives(runs, 21, 4)
	require.NoError(t, err)
	second, err := keyframe.SampleRepresentatives(runs, 21, 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.IsIncreasing(t, first)
}

func TestSampleRepresentativesValidation(t *testing.T) {
	_, err := keyframe.SampleRepresentatives([]model.SimilarityRun{{Start: 0, End: 1}}, 2, 0)
	assert.True(t, keyframe.IsValidationError(err))

	// A run that reaches past the frame count is rejected, not clipped.
	_, err = keyframe.SampleRepresentatives([]model.SimilarityRun{{Start: 0, End: 5}}, 3, 2)
	assert.True(t, keyframe.IsValidationError(err))
}
