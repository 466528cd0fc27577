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
// This file holds the selection reconciler, which merges the picks gathered
// from all (possibly overlapping) windows into the final ordered output.
package keyframe

import (
	"fmt"
	"sort"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// Reconcile collapses selections from overlapping windows into one pick per
// global index and sorts the result ascending. Deduplication keeps the first
// occurrence in input order; when windows are processed in batch order this
// means the earlier batch wins the tie. The sort makes the output
// independent of window completion order, which is what allows Stage 2 to
// run windows concurrently without affecting the result.
//
// This realizes OR-semantics across windows: a frame is kept if any window
// flagged it. Overlap buys redundancy and coverage, never a requirement for
// multi-window agreement. Reconcile is idempotent.
func Reconcile(selections []model.Selection) []model.Selection {
	seen := make(map[int]struct{}, len(selections))
	out := make([]model.Selection, 0, len(selections))
	for _, sel := range selections {
		if _, ok := seen[sel.GlobalIndex]; ok {
			continue
		}
		seen[sel.GlobalIndex] = struct{}{}
		out = append(out, sel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GlobalIndex < out[j].GlobalIndex })
	return out
}

// BuildFinalManifest resolves each reconciled selection against the Stage 1
// manifest and assembles the pipeline's terminal artifact. The selections
// must already be reconciled; a global index outside the manifest is a
// ValidationError since the selector's bound checks should make it
// impossible.
func BuildFinalManifest(manifest *model.Manifest, reconciled []model.Selection) (*model.FinalManifest, error) {
	selected := make([]model.SelectedFrame, 0, len(reconciled))
	for _, sel := range reconciled {
		if sel.GlobalIndex < 0 || sel.GlobalIndex >= len(manifest.Frames) {
			return nil, &ValidationError{
				Param:  "selections",
				Reason: fmt.Sprintf("global index %d outside manifest of %d frames", sel.GlobalIndex, len(manifest.Frames)),
			}
		}
		frame := manifest.Frames[sel.GlobalIndex]
		selected = append(selected, model.SelectedFrame{
			Locator:   frame.Locator,
			Timestamp: frame.Timestamp,
		})
	}
	return &model.FinalManifest{
		JobID:              manifest.JobID,
		VideoID:            manifest.VideoID,
		Stage1FrameCount:   len(manifest.Frames),
		SelectedFrameCount: len(selected),
		SelectedFrames:     selected,
	}, nil
}
