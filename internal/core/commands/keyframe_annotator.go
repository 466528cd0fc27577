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

package commands

import (
	"bytes"
	goctx "context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"text/template"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/surgical-recap/keyframe-pipeline/internal/cloud"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// GetAnnotationsParamName returns the chain context key holding the
// per-keyframe annotations.
func GetAnnotationsParamName() string {
	return "__ANNOTATIONS__"
}

// KeyframeAnnotator generates a per-keyframe analysis (surgical step,
// instruments, risk) for every selected frame in the final manifest. Frames
// are annotated concurrently through a worker pool; a frame whose annotation
// fails is logged and skipped rather than failing the chain, so the job
// record is still written with whatever annotations succeeded.
type KeyframeAnnotator struct {
	cor.BaseCommand
	generativeAIModel *cloud.QuotaAwareGenerativeAIModel
	promptTemplate    *template.Template
	numberOfWorkers   int
	logger            *slog.Logger

	geminiInputTokenCounter  metric.Int64Counter
	geminiOutputTokenCounter metric.Int64Counter
	geminiRetryCounter       metric.Int64Counter
}

func NewKeyframeAnnotator(
	name string,
	model *cloud.QuotaAwareGenerativeAIModel,
	prompt *template.Template,
	numberOfWorkers int,
	logger *slog.Logger) *KeyframeAnnotator {
	out := &KeyframeAnnotator{
		BaseCommand:       *cor.NewBaseCommand(name),
		generativeAIModel: model,
		promptTemplate:    prompt,
		numberOfWorkers:   numberOfWorkers,
		logger:            logger,
	}
	out.geminiInputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.input", out.GetName()))
	out.geminiOutputTokenCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.token.output", out.GetName()))
	out.geminiRetryCounter, _ = out.GetMeter().Int64Counter(fmt.Sprintf("%s.gemini.retry", out.GetName()))
	return out
}

func (c *KeyframeAnnotator) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(c.GetInputParam()) != nil
}

func (c *KeyframeAnnotator) Execute(context cor.Context) {
	final := context.Get(c.GetInputParam()).(*model.FinalManifest)

	example, _ := json.Marshal(model.GetExampleFrameAnnotation())

	var wg sync.WaitGroup
	jobs := make(chan *annotationJob, len(final.SelectedFrames))
	// One result slot per frame keeps output in manifest order without a
	// mutex; failed slots stay nil.
	results := make([]*model.FrameAnnotation, len(final.SelectedFrames))

	for w := 0; w < c.numberOfWorkers; w++ {
		wg.Add(1)
		go c.annotationWorker(jobs, results, &wg)
	}

	for i, frame := range final.SelectedFrames {
		jobs <- c.createJob(context.GetContext(), i, frame, string(example))
	}
	close(jobs)
	wg.Wait()

	annotations := make([]model.FrameAnnotation, 0, len(results))
	for _, r := range results {
		if r != nil {
			annotations = append(annotations, *r)
		}
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(GetAnnotationsParamName(), annotations)
	context.Add(cor.CtxOut, annotations)
}

// annotationJob carries everything one worker needs to annotate one frame.
type annotationJob struct {
	sequence int
	frame    model.SelectedFrame
	ctx      goctx.Context
	span     trace.Span
	contents []*genai.Content
	err      error
}

func (j *annotationJob) close(status codes.Code, description string) {
	j.span.SetStatus(status, description)
	j.span.End()
}

// annotationPromptData is the template input for the annotation prompt.
type annotationPromptData struct {
	Timestamp float64
	Example   string
}

func (c *KeyframeAnnotator) createJob(ctx goctx.Context, sequence int, frame model.SelectedFrame, example string) *annotationJob {
	jobCtx, span := c.Tracer.Start(ctx, fmt.Sprintf("%s_genai_annotate_%d", c.GetName(), sequence))
	span.SetAttributes(
		attribute.Int("sequence", sequence),
		attribute.Float64("timestamp", frame.Timestamp),
	)

	var doc bytes.Buffer
	err := c.promptTemplate.Execute(&doc, annotationPromptData{
		Timestamp: frame.Timestamp,
		Example:   example,
	})
	if err != nil {
		return &annotationJob{sequence: sequence, span: span, err: err}
	}

	fileData := cloud.NewFileData(frame.Locator, "image/jpeg")
	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{Text: doc.String()},
			{FileData: &fileData},
		},
		Role: genai.RoleUser,
	}}

	return &annotationJob{
		sequence: sequence,
		frame:    frame,
		ctx:      jobCtx,
		span:     span,
		contents: contents,
	}
}

func (c *KeyframeAnnotator) annotationWorker(jobs <-chan *annotationJob, results []*model.FrameAnnotation, wg *sync.WaitGroup) {
	defer wg.Done()
	for j := range jobs {
		if j.err != nil {
			c.logger.Warn("skipping keyframe annotation", "sequence", j.sequence, "error", j.err)
			j.close(codes.Error, "prompt rendering failed")
			continue
		}

		out, err := cloud.GenerateMultiModalResponse(j.ctx, c.geminiInputTokenCounter, c.geminiOutputTokenCounter, c.geminiRetryCounter, 0, c.generativeAIModel, j.contents)
		if err != nil {
			c.logger.Warn("keyframe annotation failed", "sequence", j.sequence, "locator", j.frame.Locator, "error", err)
			j.close(codes.Error, "annotation failed")
			continue
		}

		annotation := &model.FrameAnnotation{}
		if err := json.Unmarshal([]byte(out), annotation); err != nil {
			c.logger.Warn("unparsable keyframe annotation", "sequence", j.sequence, "locator", j.frame.Locator, "error", err)
			j.close(codes.Error, "annotation parse failed")
			continue
		}
		annotation.Locator = j.frame.Locator
		annotation.Timestamp = j.frame.Timestamp

		results[j.sequence] = annotation
		j.close(codes.Ok, "frame annotated")
	}
}
