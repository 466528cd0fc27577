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

// This file tests the Stage 1 frame reducers.
package keyframe_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/keyframe"
)

func TestSimilarityReducerScenario(t *testing.T) {
	// Frames 0-3 share one embedding axis, frames 4-9 the orthogonal one.
	// The single similarity dip at the split yields runs (0,3) and (4,9);
	// a stride larger than both keeps the midpoints 1 and 6.
	reducer, err := keyframe.NewSimilarityReducer(axisEmbedder(4), 0.9, 10, discardLogger())
	require.NoError(t, err)

	keep, err := reducer.Reduce(context.Background(), makeFrames(10))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 6}, keep)
}

func TestSimilarityReducerNormalizesDefensively(t *testing.T) {
	// Same geometry but scaled vectors; normalization restores exact
	// similarities so the outcome is unchanged.
	embedder := &fakeEmbedder{fn: func(_ context.Context, locators []string) ([][]float32, error) {
		out := make([][]float32, len(locators))
		for i := range locators {
			if i < 4 {
				out[i] = []float32{12.5, 0}
			} else {
				out[i] = []float32{0, 0.003}
			}
		}
		return out, nil
	}}
	reducer, err := keyframe.NewSimilarityReducer(embedder, 0.9, 10, discardLogger())
	require.NoError(t, err)

	keep, err := reducer.Reduce(context.Background(), makeFrames(10))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 6}, keep)
}

func TestSimilarityReducerSingleFrame(t *testing.T) {
	reducer, err := keyframe.NewSimilarityReducer(axisEmbedder(1), 0.9, 5, discardLogger())
	require.NoError(t, err)

	keep, err := reducer.Reduce(context.Background(), makeFrames(1))
	require.NoError(t, err)
	assert.Equal(t, []int{0}, keep)
}

func TestSimilarityReducerWrapsEmbedderFailure(t *testing.T) {
	cause := errors.New("backend unavailable")
	embedder := &fakeEmbedder{fn: func(_ context.Context, _ []string) ([][]float32, error) {
		return nil, cause
	}}
	reducer, err := keyframe.NewSimilarityReducer(embedder, 0.9, 5, discardLogger())
	require.NoError(t, err)

	_, err = reducer.Reduce(context.Background(), makeFrames(5))
	var extractionErr *keyframe.EmbeddingExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.ErrorIs(t, err, cause)
}

func TestSimilarityReducerRejectsCountMismatch(t *testing.T) {
	embedder := &fakeEmbedder{fn: func(_ context.Context, _ []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}}
	reducer, err := keyframe.NewSimilarityReducer(embedder, 0.9, 5, discardLogger())
	require.NoError(t, err)

	_, err = reducer.Reduce(context.Background(), makeFrames(5))
	var extractionErr *keyframe.EmbeddingExtractionError
	assert.ErrorAs(t, err, &extractionErr)
}

func TestNewSimilarityReducerValidation(t *testing.T) {
	_, err := keyframe.NewSimilarityReducer(axisEmbedder(0), 2.0, 5, discardLogger())
	assert.True(t, keyframe.IsValidationError(err))

	_, err = keyframe.NewSimilarityReducer(axisEmbedder(0), 0.9, 0, discardLogger())
	assert.True(t, keyframe.IsValidationError(err))
}

func TestPassthroughReducer(t *testing.T) {
	keep, err := keyframe.PassthroughReducer{}.Reduce(context.Background(), makeFrames(4))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, keep)

	_, err = keyframe.PassthroughReducer{}.Reduce(context.Background(), nil)
	assert.True(t, keyframe.IsValidationError(err))
}

func TestFixedIntervalReducer(t *testing.T) {
	reducer, err := keyframe.NewFixedIntervalReducer(3)
	require.NoError(t, err)

	keep, err := reducer.Reduce(context.Background(), makeFrames(10))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 6, 9}, keep)

	_, err = keyframe.NewFixedIntervalReducer(0)
	assert.True(t, keyframe.IsValidationError(err))
}

var _ keyframe.FrameReducer = (*keyframe.SimilarityReducer)(nil)
var _ keyframe.FrameReducer = keyframe.PassthroughReducer{}
var _ keyframe.FrameReducer = (*keyframe.FixedIntervalReducer)(nil)
