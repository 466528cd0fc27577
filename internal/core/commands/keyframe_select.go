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

package commands

import (
	"fmt"
	"log/slog"

	"github.com/surgical-recap/keyframe-pipeline/internal/cloud"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/keyframe"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// GetManifestParamName returns the chain context key holding the Stage 1
// manifest produced by the selection pipeline.
func GetManifestParamName() string {
	return "__MANIFEST__"
}

// GetFinalManifestParamName returns the chain context key holding the final
// manifest produced by the selection pipeline.
func GetFinalManifestParamName() string {
	return "__FINAL_MANIFEST__"
}

// KeyframeSelect runs the two-stage selection pipeline over the uploaded
// frame set. The pipeline itself is single-use, so a fresh instance is
// assembled from the configured reducer and executor on every execution.
type KeyframeSelect struct {
	cor.BaseCommand
	embedder keyframe.Embedder
	judge    keyframe.WindowJudge
	params   cloud.PipelineParams
	logger   *slog.Logger
}

func NewKeyframeSelect(
	name string,
	embedder keyframe.Embedder,
	judge keyframe.WindowJudge,
	params cloud.PipelineParams,
	logger *slog.Logger) *KeyframeSelect {
	return &KeyframeSelect{
		BaseCommand: *cor.NewBaseCommand(name),
		embedder:    embedder,
		judge:       judge,
		params:      params,
		logger:      logger,
	}
}

func (c *KeyframeSelect) newReducer() (keyframe.FrameReducer, error) {
	switch c.params.Reducer {
	case "", "similarity":
		return keyframe.NewSimilarityReducer(
			c.embedder, c.params.SimilarityThreshold, c.params.SampleStride, c.logger)
	case "fixed_interval":
		return keyframe.NewFixedIntervalReducer(c.params.FixedInterval)
	case "passthrough":
		return keyframe.PassthroughReducer{}, nil
	default:
		return nil, fmt.Errorf("unknown reducer %q", c.params.Reducer)
	}
}

func (c *KeyframeSelect) newExecutor() (keyframe.WindowExecutor, error) {
	switch c.params.Executor {
	case "", "sequential":
		return keyframe.SequentialExecutor{}, nil
	case "pool":
		return keyframe.NewPoolExecutor(c.params.WorkerCount)
	default:
		return nil, fmt.Errorf("unknown executor %q", c.params.Executor)
	}
}

func (c *KeyframeSelect) Execute(context cor.Context) {
	frames := context.Get(c.GetInputParam()).([]model.FrameRef)
	videoID := context.Get(GetVideoIDParamName()).(string)

	reducer, err := c.newReducer()
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	executor, err := c.newExecutor()
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	pipeline, err := keyframe.NewPipeline(
		reducer,
		keyframe.NewSemanticSelector(c.judge, c.logger),
		executor,
		c.params.WindowSize,
		c.params.Overlap,
		c.logger)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}

	manifest, final, err := pipeline.Process(context.GetContext(), videoID, frames, "")
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("keyframe selection failed for %s: %w", videoID, err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(GetManifestParamName(), manifest)
	context.Add(GetFinalManifestParamName(), final)
	context.Add(cor.CtxOut, final)
}
