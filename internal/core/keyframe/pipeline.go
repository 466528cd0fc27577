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

// This file holds the pipeline orchestrator that ties the two stages
// together: reduce frames by embedding similarity, window the survivors,
// judge each window, reconcile the picks.
package keyframe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// State tracks a pipeline run through its lifecycle. Failed is terminal and
// reachable only through Stage 1 errors, parameter validation, or
// cancellation; Stage 2 judge failures are absorbed per window and never
// fail the run.
type State int

const (
	StateNotStarted State = iota
	StateStage1Running
	StateStage1Complete
	StateStage2Running
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateStage1Running:
		return "STAGE1_RUNNING"
	case StateStage1Complete:
		return "STAGE1_COMPLETE"
	case StateStage2Running:
		return "STAGE2_RUNNING"
	case StateComplete:
		return "COMPLETE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Pipeline runs one keyframe selection job from extracted frames to the
// final manifest. A Pipeline is single-use: Process may be called exactly
// once, and concurrent calls on the same instance are rejected. Each run
// owns its manifest and selection buffers exclusively; no state is shared
// across runs.
type Pipeline struct {
	reducer  FrameReducer
	selector *SemanticSelector
	executor WindowExecutor

	windowSize int
	overlap    int
	logger     *slog.Logger

	mu    sync.Mutex
	state State
}

// NewPipeline is the constructor for the Pipeline. Window parameters are
// validated here so a misconfigured deployment fails before accepting work.
func NewPipeline(
	reducer FrameReducer,
	selector *SemanticSelector,
	executor WindowExecutor,
	windowSize int,
	overlap int,
	logger *slog.Logger) (*Pipeline, error) {
	if err := ValidateWindowParams(windowSize, overlap); err != nil {
		return nil, err
	}
	return &Pipeline{
		reducer:    reducer,
		selector:   selector,
		executor:   executor,
		windowSize: windowSize,
		overlap:    overlap,
		logger:     logger,
		state:      StateNotStarted,
	}, nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pipeline) fail(err error) error {
	p.setState(StateFailed)
	return err
}

// Process is the single public entry point of a run. It reduces frames in
// Stage 1, judges the survivors window by window in Stage 2, and returns
// both the intermediate and the final manifest. If jobID is empty a fresh
// UUID is assigned. Once Stage 1 succeeds the run always completes; a
// returned error therefore stems from validation, embedding extraction, or
// cancellation.
func (p *Pipeline) Process(ctx context.Context, videoID string, frames []model.FrameRef, jobID string) (*model.Manifest, *model.FinalManifest, error) {
	p.mu.Lock()
	if p.state != StateNotStarted {
		state := p.state
		p.mu.Unlock()
		return nil, nil, fmt.Errorf("pipeline already started (state %s)", state)
	}
	p.state = StateStage1Running
	p.mu.Unlock()

	if jobID == "" {
		jobID = uuid.NewString()
	}
	log := p.logger.With("job_id", jobID, "video_id", videoID)

	if len(frames) == 0 {
		return nil, nil, p.fail(&ValidationError{Param: "frames", Reason: "empty sequence"})
	}

	keep, err := p.reducer.Reduce(ctx, frames)
	if err != nil {
		log.Error("stage 1 reduction failed", "error", err)
		return nil, nil, p.fail(err)
	}
	kept := make([]model.FrameRef, 0, len(keep))
	for _, idx := range keep {
		if idx < 0 || idx >= len(frames) {
			return nil, nil, p.fail(&ValidationError{
				Param:  "keep_indices",
				Reason: fmt.Sprintf("index %d outside frame range [0, %d)", idx, len(frames)),
			})
		}
		kept = append(kept, frames[idx])
	}
	manifest := &model.Manifest{
		JobID:       jobID,
		VideoID:     videoID,
		TotalFrames: len(frames),
		KeepIndices: keep,
		Frames:      kept,
	}
	p.setState(StateStage1Complete)
	log.Info("stage 1 complete", "total_frames", len(frames), "kept_frames", len(kept))

	if err := ctx.Err(); err != nil {
		return nil, nil, p.fail(err)
	}
	p.setState(StateStage2Running)

	windows, err := GenerateWindows(manifest.Frames, p.windowSize, p.overlap)
	if err != nil {
		return nil, nil, p.fail(err)
	}
	step := p.windowSize - p.overlap
	selections, err := p.executor.Execute(ctx, windows, func(ctx context.Context, w model.Window) []model.Selection {
		return p.selector.ProcessWindow(ctx, w, step, len(manifest.Frames))
	})
	if err != nil {
		return nil, nil, p.fail(err)
	}

	reconciled := Reconcile(selections)
	final, err := BuildFinalManifest(manifest, reconciled)
	if err != nil {
		return nil, nil, p.fail(err)
	}
	p.setState(StateComplete)
	log.Info("stage 2 complete",
		"windows", len(windows),
		"selected_frames", final.SelectedFrameCount)
	return manifest, final, nil
}
