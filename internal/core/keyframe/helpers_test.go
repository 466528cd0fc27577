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

// This file holds in-memory fakes for the two capability interfaces, shared
// by the selector, executor, reducer, and pipeline tests.
package keyframe_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// fakeJudge delegates to a configurable function so each test can script
// success, failure, and malformed-output behavior per call.
type fakeJudge struct {
	fn func(ctx context.Context, locators []string) (*model.WindowJudgment, error)
}

func (f *fakeJudge) JudgeWindow(ctx context.Context, locators []string) (*model.WindowJudgment, error) {
	return f.fn(ctx, locators)
}

// fakeEmbedder delegates to a configurable function.
type fakeEmbedder struct {
	fn func(ctx context.Context, locators []string) ([][]float32, error)
}

func (f *fakeEmbedder) ExtractEmbeddings(ctx context.Context, locators []string) ([][]float32, error) {
	return f.fn(ctx, locators)
}

// axisEmbedder returns a unit vector per frame chosen by the frame's
// position: positions below the split point share one axis, the rest share
// the orthogonal one. Adjacent similarities are exactly 1 within a segment
// and 0 across the split.
func axisEmbedder(split int) *fakeEmbedder {
	return &fakeEmbedder{fn: func(_ context.Context, locators []string) ([][]float32, error) {
		out := make([][]float32, len(locators))
		for i := range locators {
			if i < split {
				out[i] = []float32{1, 0}
			} else {
				out[i] = []float32{0, 1}
			}
		}
		return out, nil
	}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
