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
// This file holds the Stage 2 window scheduler, which turns the Stage 1
// manifest frames into overlapping batches for semantic judging.
package keyframe

import (
	"fmt"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// MinWindowFrames is the smallest batch the semantic judge accepts. A
// trailing partial window shorter than this is silently dropped; it reflects
// an incomplete final batch, not an error.
const MinWindowFrames = 3

// ValidateWindowParams checks the scheduler preconditions. It is exported so
// the pipeline constructor can reject a bad configuration at startup rather
// than on the first Stage 2 run.
func ValidateWindowParams(windowSize, overlap int) error {
	if windowSize < MinWindowFrames {
		return &ValidationError{
			Param:  "window_size",
			Reason: fmt.Sprintf("%d is below the minimum of %d", windowSize, MinWindowFrames),
		}
	}
	if overlap < 0 || overlap >= windowSize {
		return &ValidationError{
			Param:  "overlap",
			Reason: fmt.Sprintf("%d outside [0, window_size)", overlap),
		}
	}
	return nil
}

// GenerateWindows slices frames into overlapping fixed-size windows.
// Starting at offset 0 and advancing by step = windowSize - overlap, each
// window covers frames[offset : offset+windowSize], clipped to the sequence
// length, and is emitted only if it holds at least MinWindowFrames frames.
// BatchID is the 0-based emission index; because only the trailing window
// can fall short, batchID*step always equals the window's offset, which is
// what lets the selector map local indices back to global ones.
//
// Every frame appears in at least one window except possibly the final
// MinWindowFrames-1 frames, and consecutive windows share exactly overlap
// frames. Preconditions (windowSize >= 3, 0 <= overlap < windowSize) are
// enforced as ValidationErrors; the step underflow that a too-large overlap
// would cause is rejected, never clamped.
func GenerateWindows(frames []model.FrameRef, windowSize, overlap int) ([]model.Window, error) {
	if err := ValidateWindowParams(windowSize, overlap); err != nil {
		return nil, err
	}

	step := windowSize - overlap
	windows := make([]model.Window, 0, (len(frames)+step-1)/max(step, 1))
	batchID := 0
	for offset := 0; offset < len(frames); offset += step {
		end := offset + windowSize
		if end > len(frames) {
			end = len(frames)
		}
		if end-offset < MinWindowFrames {
			break
		}
		windows = append(windows, model.Window{BatchID: batchID, Frames: frames[offset:end]})
		batchID++
	}
	return windows, nil
}
