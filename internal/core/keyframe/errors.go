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

// Package keyframe implements the two-stage keyframe selection pipeline:
// a similarity pass that collapses visually redundant frames, followed by a
// sliding-window semantic pass that asks an external judge which of the
// surviving frames matter. This file defines the error taxonomy.
//
// The split is deliberate: validation and embedding errors abort a run,
// while judgment errors are absorbed per window and bounds errors are
// absorbed per index, so a pipeline that clears Stage 1 always completes.
package keyframe

import (
	"errors"
	"fmt"
)

// ValidationError reports a bad parameter before any processing starts.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// EmbeddingExtractionError wraps a failure from the embedding collaborator.
// Stage 1 has no partial-success mode: a corrupted or partial embedding set
// cannot be safely grouped, so this error is fatal to the whole run.
type EmbeddingExtractionError struct {
	Err error
}

func (e *EmbeddingExtractionError) Error() string {
	return fmt.Sprintf("embedding extraction: %v", e.Err)
}

func (e *EmbeddingExtractionError) Unwrap() error { return e.Err }

// JudgmentError wraps a per-window failure from the semantic judge. It is
// never returned to the pipeline caller; the selector logs it, counts it,
// and substitutes the window's center frame.
type JudgmentError struct {
	BatchID int
	Err     error
}

func (e *JudgmentError) Error() string {
	return fmt.Sprintf("window judge failed for batch %d: %v", e.BatchID, e.Err)
}

func (e *JudgmentError) Unwrap() error { return e.Err }

// BoundsError reports a judge-returned index outside its valid range. It is
// recovered locally by discarding the offending index and is surfaced only
// through logs and counters.
type BoundsError struct {
	BatchID int
	Index   int
	Limit   int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("batch %d returned index %d outside [0, %d)", e.BatchID, e.Index, e.Limit)
}
