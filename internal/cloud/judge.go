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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// GeminiWindowJudge implements the pipeline's WindowJudge capability with a
// rate-limited Gemini model. Each call renders the window-judge prompt,
// attaches the window's frame images, and parses the model's JSON verdict.
// Errors here are absorbed per window by the selector, never by this type.
type GeminiWindowJudge struct {
	agent          *QuotaAwareGenerativeAIModel
	promptTemplate *template.Template

	inputTokenCounter  metric.Int64Counter
	outputTokenCounter metric.Int64Counter
	retryCounter       metric.Int64Counter
}

// windowJudgePromptData is the template input for the window-judge prompt.
type windowJudgePromptData struct {
	FrameCount int
	Example    string
}

// NewGeminiWindowJudge is the constructor for the GeminiWindowJudge.
func NewGeminiWindowJudge(agent *QuotaAwareGenerativeAIModel, prompt *template.Template) *GeminiWindowJudge {
	out := &GeminiWindowJudge{agent: agent, promptTemplate: prompt}
	meter := otel.Meter("keyframe.judge")
	out.inputTokenCounter, _ = meter.Int64Counter("keyframe.judge.gemini.token.input")
	out.outputTokenCounter, _ = meter.Int64Counter("keyframe.judge.gemini.token.output")
	out.retryCounter, _ = meter.Int64Counter("keyframe.judge.gemini.retry")
	return out
}

// JudgeWindow submits the window's frames to the model and returns its
// judgment. The prompt embeds a few-shot example of the expected JSON to
// keep the output parsable; a response that still fails to parse is
// returned as an error for the selector to absorb.
func (j *GeminiWindowJudge) JudgeWindow(ctx context.Context, locators []string) (*model.WindowJudgment, error) {
	example, err := json.Marshal(model.GetExampleWindowJudgment())
	if err != nil {
		return nil, err
	}
	promptText := new(bytes.Buffer)
	err = j.promptTemplate.Execute(promptText, windowJudgePromptData{
		FrameCount: len(locators),
		Example:    string(example),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering window judge prompt: %w", err)
	}

	parts := make([]*genai.Part, 0, len(locators)+1)
	parts = append(parts, &genai.Part{Text: promptText.String()})
	for _, locator := range locators {
		fileData := NewFileData(locator, imageMIMEType(locator))
		parts = append(parts, &genai.Part{FileData: &fileData})
	}
	content := []*genai.Content{{Parts: parts, Role: genai.RoleUser}}

	raw, err := GenerateMultiModalResponse(ctx, j.inputTokenCounter, j.outputTokenCounter, j.retryCounter, 0, j.agent, content)
	if err != nil {
		return nil, err
	}

	judgment := &model.WindowJudgment{}
	if err := json.Unmarshal([]byte(raw), judgment); err != nil {
		return nil, fmt.Errorf("parsing window judgment: %w", err)
	}
	return judgment, nil
}
