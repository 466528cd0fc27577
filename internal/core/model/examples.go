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

// Package model defines the data structures for the application. This file
// provides factory functions for hardcoded example instances of the model
// responses. Embedding a concrete example of the expected JSON in the prompt
// (few-shot prompting) keeps the generative model's output consistent and
// parsable.
package model

// GetExampleWindowJudgment returns a sample judgment used as the few-shot
// example in the keyframe selector prompt. The indices are local to the
// window (0..N-1).
func GetExampleWindowJudgment() *WindowJudgment {
	return &WindowJudgment{
		SelectedIndices: []int{0, 3},
		Reason:          "Frame 0 shows the start of clipping, frame 3 shows the clip placement completed",
	}
}

// GetExampleFrameAnnotation returns a sample per-keyframe analysis used as
// the few-shot example in the frame annotation prompt.
func GetExampleFrameAnnotation() *FrameAnnotation {
	return &FrameAnnotation{
		Step:        "Clipping",
		Instruments: []string{"Clipper", "Grasper"},
		Risk:        "Medium",
		Description: "Clip applied to the cystic duct under direct visualization",
	}
}
