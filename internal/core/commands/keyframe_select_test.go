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

package commands_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgical-recap/keyframe-pipeline/internal/cloud"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/commands"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// splitEmbedder returns one of two orthogonal unit vectors depending on the
// frame's position, simulating a single hard visual cut at the split point.
type splitEmbedder struct {
	split int
}

func (e splitEmbedder) ExtractEmbeddings(_ context.Context, locators []string) ([][]float32, error) {
	out := make([][]float32, len(locators))
	for i := range locators {
		if i < e.split {
			out[i] = []float32{1, 0}
		} else {
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
}

// fixedJudge always selects the same local indices.
type fixedJudge struct {
	indices []int
}

func (j fixedJudge) JudgeWindow(_ context.Context, _ []string) (*model.WindowJudgment, error) {
	return &model.WindowJudgment{SelectedIndices: j.indices}, nil
}

func testFrames(n int) []model.FrameRef {
	frames := make([]model.FrameRef, n)
	for i := range frames {
		frames[i] = model.FrameRef{
			Index:     i,
			Timestamp: float64(i) * 0.5,
			Locator:   fmt.Sprintf("gs://frames/video/frame_%05d.jpg", i),
		}
	}
	return frames
}

func TestKeyframeSelectRunsPipeline(t *testing.T) {
	params := cloud.PipelineParams{
		SimilarityThreshold: 0.9,
		SampleStride:        3,
		WindowSize:          4,
		Overlap:             1,
		Executor:            "sequential",
		Reducer:             "similarity",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cmd := commands.NewKeyframeSelect("select-test", splitEmbedder{split: 6}, fixedJudge{indices: []int{0, 2}}, params, logger)

	chainCtx := newChainContext()
	chainCtx.Add(cor.CtxIn, testFrames(12))
	chainCtx.Add(commands.GetVideoIDParamName(), "video-1")

	cmd.Execute(chainCtx)
	require.False(t, chainCtx.HasErrors())

	// One similarity dip at frame 6 yields two runs of six frames; a
	// stride of 3 samples frames 0, 3, 6, 9.
	manifest := chainCtx.Get(commands.GetManifestParamName()).(*model.Manifest)
	assert.Equal(t, "video-1", manifest.VideoID)
	assert.Equal(t, 12, manifest.TotalFrames)
	assert.Equal(t, []int{0, 3, 6, 9}, manifest.KeepIndices)

	// Four kept frames form a single window; the judge's locals 0 and 2
	// map to kept frames 0 and 6.
	final := chainCtx.Get(commands.GetFinalManifestParamName()).(*model.FinalManifest)
	assert.Equal(t, manifest.JobID, final.JobID)
	assert.Equal(t, 2, final.SelectedFrameCount)
	require.Len(t, final.SelectedFrames, 2)
	assert.Equal(t, manifest.Frames[0].Locator, final.SelectedFrames[0].Locator)
	assert.Equal(t, manifest.Frames[2].Locator, final.SelectedFrames[1].Locator)

	assert.Equal(t, final, chainCtx.Get(cor.CtxOut))
}

func TestKeyframeSelectRejectsUnknownReducer(t *testing.T) {
	params := cloud.PipelineParams{WindowSize: 4, Overlap: 1, Reducer: "quantum"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cmd := commands.NewKeyframeSelect("select-test", splitEmbedder{}, fixedJudge{}, params, logger)

	chainCtx := newChainContext()
	chainCtx.Add(cor.CtxIn, testFrames(4))
	chainCtx.Add(commands.GetVideoIDParamName(), "video-1")

	cmd.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
	assert.Nil(t, chainCtx.Get(commands.GetFinalManifestParamName()))
}

func TestKeyframeSelectRejectsBadWindowParams(t *testing.T) {
	params := cloud.PipelineParams{
		WindowSize: 4,
		Overlap:    4, // overlap must stay below the window size
		Reducer:    "passthrough",
		Executor:   "sequential",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cmd := commands.NewKeyframeSelect("select-test", splitEmbedder{}, fixedJudge{}, params, logger)

	chainCtx := newChainContext()
	chainCtx.Add(cor.CtxIn, testFrames(8))
	chainCtx.Add(commands.GetVideoIDParamName(), "video-1")

	cmd.Execute(chainCtx)

	assert.True(t, chainCtx.HasErrors())
}
