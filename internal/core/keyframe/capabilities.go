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

// This file declares the two narrow capability interfaces the pipeline
// consumes. The concrete implementations live in the cloud package (Vertex
// multimodal embeddings and a Gemini judge); tests substitute in-memory
// fakes.
package keyframe

import (
	"context"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// Embedder produces one embedding vector per frame locator, same length and
// order as the input. Vectors should be L2-normalized; the similarity
// reducer re-normalizes defensively either way. A failure here is fatal to
// the pipeline run.
type Embedder interface {
	ExtractEmbeddings(ctx context.Context, locators []string) ([][]float32, error)
}

// WindowJudge asks an external multimodal model which frames of an ordered
// batch are semantically significant. Returned indices are local to the
// batch, in [0, len(locators)). The judge may fail on timeouts, malformed
// model output, or transport errors; callers absorb such failures per
// window.
type WindowJudge interface {
	JudgeWindow(ctx context.Context, locators []string) (*model.WindowJudgment, error)
}
