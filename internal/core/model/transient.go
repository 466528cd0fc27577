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

// Package model defines the core data structures for the application.
// This file contains the in-memory types that flow through the two-stage
// keyframe selection pipeline. Apart from the two manifests, which are
// serialized to JSON as job artifacts, these objects live only for the
// duration of a single pipeline run.
package model

// FrameRef identifies one extracted video frame. Locator is an opaque
// reference to the pixel data (a local path or GCS URI); the pipeline never
// interprets it beyond handing it to the embedding and judgment collaborators.
type FrameRef struct {
	Index     int     `json:"frame_number"` // Position in the original frame sequence.
	Timestamp float64 `json:"timestamp"`    // Seconds from the start of the video.
	Locator   string  `json:"file_path"`    // Opaque reference to the frame image.
}

// Manifest is the Stage 1 output: the visually de-duplicated frame set.
// KeepIndices is strictly increasing with values in [0, TotalFrames), and
// Frames[i].Index == KeepIndices[i] for all i. Stage 2 reads it but never
// mutates it.
type Manifest struct {
	JobID       string     `json:"job_id"`
	VideoID     string     `json:"video_id"`
	TotalFrames int        `json:"total_frames"`
	KeepIndices []int      `json:"keep_indices"`
	Frames      []FrameRef `json:"frames"`
}

// SimilarityRun is a maximal contiguous span of frames whose adjacent
// similarity never dropped below threshold. Start and End are inclusive
// indices into the original frame sequence. Runs produced by the grouper
// partition [0, totalFrames) exactly.
type SimilarityRun struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of frames covered by the run.
func (r SimilarityRun) Len() int { return r.End - r.Start + 1 }

// Window is one sliding-window batch submitted to the semantic judge.
// Frames is a contiguous slice of Manifest.Frames with length in
// [3, window_size]. Windows are ephemeral and never persisted.
type Window struct {
	BatchID int
	Frames  []FrameRef
}

// Selection is a single keyframe pick from one window. GlobalIndex addresses
// Manifest.Frames; overlapping windows may produce multiple Selections with
// the same GlobalIndex, which the reconciler collapses.
type Selection struct {
	BatchID     int
	LocalIndex  int
	GlobalIndex int
}

// SelectedFrame is the externally visible form of a reconciled selection.
type SelectedFrame struct {
	Locator   string  `json:"file_path"`
	Timestamp float64 `json:"timestamp"`
}

// FinalManifest is the Stage 2 output and the pipeline's terminal artifact.
// SelectedFrames is ordered by the underlying global index with no duplicate
// locators.
type FinalManifest struct {
	JobID              string          `json:"job_id"`
	VideoID            string          `json:"video_id"`
	Stage1FrameCount   int             `json:"stage1_frame_count"`
	SelectedFrameCount int             `json:"selected_frame_count"`
	SelectedFrames     []SelectedFrame `json:"selected_frames"`
}

// WindowJudgment is the JSON document the window judge model is prompted to
// return for each batch of frames.
type WindowJudgment struct {
	SelectedIndices []int  `json:"selected_indices"`
	Reason          string `json:"reason,omitempty"`
}

// FrameAnnotation holds the per-keyframe analysis produced after selection:
// the surgical step in progress, visible instruments, and a risk assessment.
type FrameAnnotation struct {
	Locator     string   `json:"file_path"`
	Timestamp   float64  `json:"timestamp"`
	Step        string   `json:"step"`
	Instruments []string `json:"instruments"`
	Risk        string   `json:"risk"`
	Description string   `json:"description"`
}
