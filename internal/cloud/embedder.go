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

package cloud

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// embedBatchSize caps how many frames go into a single embedding request.
const embedBatchSize = 16

// VertexImageEmbedder produces one embedding vector per frame image via the
// Vertex AI multimodal embedding model. It satisfies the pipeline's Embedder
// capability. Requests are batched and paced by a per-minute rate limiter
// matching the model's quota.
type VertexImageEmbedder struct {
	handle    *genai.Models
	modelName string
	dimension int32
	limiter   *rate.Limiter
}

// NewVertexImageEmbedder builds an embedder from the model configuration.
func NewVertexImageEmbedder(handle *genai.Models, cfg VertexAiEmbeddingModel) *VertexImageEmbedder {
	rpm := cfg.MaxRequestsPerMinute
	if rpm < 1 {
		rpm = 60
	}
	return &VertexImageEmbedder{
		handle:    handle,
		modelName: cfg.Model,
		dimension: cfg.OutputDimensionality,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
	}
}

// ExtractEmbeddings embeds every frame locator, preserving input order. Any
// request failure or a response with a missing embedding fails the whole
// call; the pipeline treats that as fatal to the run.
func (e *VertexImageEmbedder) ExtractEmbeddings(ctx context.Context, locators []string) ([][]float32, error) {
	config := &genai.EmbedContentConfig{}
	if e.dimension > 0 {
		config.OutputDimensionality = genai.Ptr[int32](e.dimension)
	}

	out := make([][]float32, 0, len(locators))
	for start := 0; start < len(locators); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(locators) {
			end = len(locators)
		}
		contents := make([]*genai.Content, 0, end-start)
		for _, locator := range locators[start:end] {
			contents = append(contents, &genai.Content{
				Parts: []*genai.Part{{
					FileData: &genai.FileData{FileURI: locator, MIMEType: imageMIMEType(locator)},
				}},
			})
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := e.handle.EmbedContent(ctx, e.modelName, contents, config)
		if err != nil {
			return nil, fmt.Errorf("embedding batch at frame %d: %w", start, err)
		}
		if len(resp.Embeddings) != len(contents) {
			return nil, fmt.Errorf("embedding batch at frame %d: got %d embeddings for %d frames", start, len(resp.Embeddings), len(contents))
		}
		for i, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("empty embedding for frame %d", start+i)
			}
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

// imageMIMEType infers the frame image MIME type from its extension. The
// frame extractor writes JPEG, so that is the default.
func imageMIMEType(locator string) string {
	switch strings.ToLower(filepath.Ext(locator)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
