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

// This file tests the Stage 2 window scheduler.
package keyframe_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/keyframe"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// makeFrames builds n sequential frame refs with synthetic locators.
func makeFrames(n int) []model.FrameRef {
	frames := make([]model.FrameRef, n)
	for i := range frames {
		frames[i] = model.FrameRef{
			Index:     i,
			Timestamp: float64(i) * 0.5,
			Locator:   fmt.Sprintf("frames/frame_%04d.jpg", i),
		}
	}
	return frames
}

// TestGenerateWindowsScenario replays the reference case: window size 5 with
// overlap 2 (step 3) over 7 frames yields a full window at offset 0 and a
// 4-frame window at offset 3.
func TestGenerateWindowsScenario(t *testing.T) {
	windows, err := keyframe.GenerateWindows(makeFrames(7), 5, 2)
	require.NoError(t, err)
	require.Len(t, windows, 2)

	assert.Equal(t, 0, windows[0].BatchID)
	assert.Len(t, windows[0].Frames, 5)
	assert.Equal(t, 1, windows[1].BatchID)
	assert.Len(t, windows[1].Frames, 4)
	// Local index 0 of batch 1 maps back to global index batch_id*step = 3.
	assert.Equal(t, 3, windows[1].Frames[0].Index)
}

func TestGenerateWindowsDropsShortTail(t *testing.T) {
	// 8 frames, step 3: offsets 0 and 3 emit, the 2-frame tail at offset 6
	// is dropped without error.
	windows, err := keyframe.GenerateWindows(makeFrames(8), 5, 2)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Len(t, windows[1].Frames, 5)
	assert.Equal(t, 7, windows[1].Frames[len(windows[1].Frames)-1].Index)
}

func TestGenerateWindowsTooFewFrames(t *testing.T) {
	windows, err := keyframe.GenerateWindows(makeFrames(2), 5, 2)
	require.NoError(t, err)
	assert.Empty(t, windows)
}

// TestGenerateWindowsHeadsReconstruct checks the coverage property: the
// step-sized heads of consecutive windows concatenate back into the original
// frame order.
func TestGenerateWindowsHeadsReconstruct(t *testing.T) {
	frames := makeFrames(23)
	windowSize, overlap := 6, 2
	step := windowSize - overlap
	windows, err := keyframe.GenerateWindows(frames, windowSize, overlap)
	require.NoError(t, err)

	var reconstructed []model.FrameRef
	for _, w := range windows {
		head := w.Frames
		if len(head) > step {
			head = head[:step]
		}
		reconstructed = append(reconstructed, head...)
	}
	for i, f := range reconstructed {
		assert.Equal(t, frames[i].Index, f.Index)
	}
}

func TestGenerateWindowsBatchOffsetInvariant(t *testing.T) {
	frames := makeFrames(40)
	windows, err := keyframe.GenerateWindows(frames, 5, 2)
	require.NoError(t, err)
	for _, w := range windows {
		assert.Equal(t, w.BatchID*3, w.Frames[0].Index)
	}
}

func TestGenerateWindowsValidation(t *testing.T) {
	_, err := keyframe.GenerateWindows(makeFrames(10), 2, 0)
	assert.True(t, keyframe.IsValidationError(err))

	_, err = keyframe.GenerateWindows(makeFrames(10), 5, 5)
	assert.True(t, keyframe.IsValidationError(err))

	_, err = keyframe.GenerateWindows(makeFrames(10), 5, -1)
	assert.True(t, keyframe.IsValidationError(err))
}
