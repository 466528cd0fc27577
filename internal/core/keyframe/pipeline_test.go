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

// This file tests the pipeline orchestrator end to end against in-memory
// capability fakes, covering the lifecycle state machine and the error
// propagation policy.
package keyframe_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/keyframe"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// newTestPipeline wires a pipeline over the given fakes with window size 5,
// overlap 2, and sequential execution.
func newTestPipeline(t *testing.T, embedder keyframe.Embedder, judge keyframe.WindowJudge) *keyframe.Pipeline {
	t.Helper()
	reducer, err := keyframe.NewSimilarityReducer(embedder, 0.9, 3, discardLogger())
	require.NoError(t, err)
	selector := keyframe.NewSemanticSelector(judge, discardLogger())
	pipeline, err := keyframe.NewPipeline(reducer, selector, keyframe.SequentialExecutor{}, 5, 2, discardLogger())
	require.NoError(t, err)
	return pipeline
}

func firstFrameJudge() *fakeJudge {
	return &fakeJudge{fn: func(_ context.Context, _ []string) (*model.WindowJudgment, error) {
		return &model.WindowJudgment{SelectedIndices: []int{0}}, nil
	}}
}

func TestPipelineProcess(t *testing.T) {
	// 20 frames split into two stable segments of 10. Stride 3 samples
	// indices 0,3,6,9 from each run, so 8 frames survive Stage 1.
	pipeline := newTestPipeline(t, axisEmbedder(10), firstFrameJudge())

	frames := makeFrames(20)
	manifest, final, err := pipeline.Process(context.Background(), "video-1", frames, "job-1")
	require.NoError(t, err)
	assert.Equal(t, keyframe.StateComplete, pipeline.State())

	assert.Equal(t, "job-1", manifest.JobID)
	assert.Equal(t, "video-1", manifest.VideoID)
	assert.Equal(t, 20, manifest.TotalFrames)
	assert.Equal(t, []int{0, 3, 6, 9, 10, 13, 16, 19}, manifest.KeepIndices)
	require.Len(t, manifest.Frames, 8)
	for i, idx := range manifest.KeepIndices {
		assert.Equal(t, frames[idx], manifest.Frames[i])
	}

	// 8 surviving frames with step 3 form windows at offsets 0 and 3; the
	// judge picks each window's first frame, so globals 0 and 3 remain.
	assert.Equal(t, 8, final.Stage1FrameCount)
	assert.Equal(t, 2, final.SelectedFrameCount)
	require.Len(t, final.SelectedFrames, 2)
	assert.Equal(t, manifest.Frames[0].Locator, final.SelectedFrames[0].Locator)
	assert.Equal(t, manifest.Frames[3].Locator, final.SelectedFrames[1].Locator)
}

func TestPipelineAssignsJobID(t *testing.T) {
	pipeline := newTestPipeline(t, axisEmbedder(10), firstFrameJudge())
	manifest, final, err := pipeline.Process(context.Background(), "video-1", makeFrames(20), "")
	require.NoError(t, err)
	assert.NotEmpty(t, manifest.JobID)
	assert.Equal(t, manifest.JobID, final.JobID)
}

func TestPipelineIsSingleUse(t *testing.T) {
	pipeline := newTestPipeline(t, axisEmbedder(10), firstFrameJudge())
	_, _, err := pipeline.Process(context.Background(), "video-1", makeFrames(20), "job-1")
	require.NoError(t, err)

	_, _, err = pipeline.Process(context.Background(), "video-1", makeFrames(20), "job-1")
	assert.Error(t, err)
}

func TestPipelineFailsOnEmptyFrames(t *testing.T) {
	pipeline := newTestPipeline(t, axisEmbedder(10), firstFrameJudge())
	_, _, err := pipeline.Process(context.Background(), "video-1", nil, "job-1")
	assert.True(t, keyframe.IsValidationError(err))
	assert.Equal(t, keyframe.StateFailed, pipeline.State())
}

func TestPipelineFailsOnEmbeddingError(t *testing.T) {
	embedder := &fakeEmbedder{fn: func(_ context.Context, _ []string) ([][]float32, error) {
		return nil, errors.New("backend unavailable")
	}}
	pipeline := newTestPipeline(t, embedder, firstFrameJudge())

	_, _, err := pipeline.Process(context.Background(), "video-1", makeFrames(20), "job-1")
	var extractionErr *keyframe.EmbeddingExtractionError
	assert.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, keyframe.StateFailed, pipeline.State())
}

func TestPipelineAbsorbsJudgeFailures(t *testing.T) {
	// Every judge call fails; the run still completes with each window
	// represented by its fallback center frame.
	judge := &fakeJudge{fn: func(_ context.Context, _ []string) (*model.WindowJudgment, error) {
		return nil, errors.New("model timeout")
	}}
	pipeline := newTestPipeline(t, axisEmbedder(10), judge)

	_, final, err := pipeline.Process(context.Background(), "video-1", makeFrames(20), "job-1")
	require.NoError(t, err)
	assert.Equal(t, keyframe.StateComplete, pipeline.State())
	// Windows at offsets 0 (5 frames, center 2) and 3 (5 frames, center
	// local 2 -> global 5).
	assert.Equal(t, 2, final.SelectedFrameCount)
}

func TestPipelineFailsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pipeline := newTestPipeline(t, axisEmbedder(10), firstFrameJudge())

	_, _, err := pipeline.Process(ctx, "video-1", makeFrames(20), "job-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, keyframe.StateFailed, pipeline.State())
}

func TestPipelineShortManifestYieldsNoWindows(t *testing.T) {
	// Two frames survive Stage 1, below the minimum window size, so Stage 2
	// has nothing to judge and the final manifest is empty but valid.
	pipeline := newTestPipeline(t, axisEmbedder(1), firstFrameJudge())
	manifest, final, err := pipeline.Process(context.Background(), "video-1", makeFrames(2), "job-1")
	require.NoError(t, err)
	assert.Equal(t, keyframe.StateComplete, pipeline.State())
	assert.Len(t, manifest.Frames, 2)
	assert.Equal(t, 0, final.SelectedFrameCount)
	assert.Empty(t, final.SelectedFrames)
}

func TestNewPipelineValidatesWindowParams(t *testing.T) {
	reducer, err := keyframe.NewFixedIntervalReducer(1)
	require.NoError(t, err)
	selector := keyframe.NewSemanticSelector(firstFrameJudge(), discardLogger())

	_, err = keyframe.NewPipeline(reducer, selector, keyframe.SequentialExecutor{}, 5, 5, discardLogger())
	assert.True(t, keyframe.IsValidationError(err))
}
