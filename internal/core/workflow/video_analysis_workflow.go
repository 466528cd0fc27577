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

// Package workflow composes the atomic commands into the end-to-end
// pipelines triggered by Pub/Sub. This file implements the video analysis
// workflow: from an upload notification to persisted, annotated keyframes.
package workflow

import (
	"log/slog"
	"text/template"

	"github.com/surgical-recap/keyframe-pipeline/internal/cloud"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/commands"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
)

// VideoAnalysisWorkflow is the chain behind the video-uploaded subscription.
// It downloads the uploaded procedure recording, extracts frames with
// ffmpeg, mirrors them to the frame bucket, runs the two-stage keyframe
// selection, writes the job manifests to GCS, annotates the selected
// keyframes, persists everything to BigQuery, and opens an analysis session.
//
// The chain stops on the first failing command except for annotation, which
// absorbs per-frame failures internally. An unacked trigger message is
// redelivered by Pub/Sub, so a transient failure retries the whole workflow.
type VideoAnalysisWorkflow struct {
	cor.BaseCommand
	config         *cloud.Config
	serviceClients *cloud.ServiceClients
	sessionStore   commands.SessionRegistrar
	logger         *slog.Logger

	embedderName string
	agentName    string
	ffmpegPath   string

	chain cor.Chain
}

func (w *VideoAnalysisWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *VideoAnalysisWorkflow) initializeChain() {
	prompts := w.config.PromptsFor(w.config.Application.DefaultProcedure)
	judgeTemplate, err := template.New("window-judge").Parse(prompts.WindowJudgePrompt)
	if err != nil {
		panic(err)
	}
	annotationTemplate, err := template.New("annotation").Parse(prompts.AnnotationPrompt)
	if err != nil {
		panic(err)
	}

	embedder := w.serviceClients.ImageEmbedders[w.embedderName]
	agent := w.serviceClients.AgentModels[w.agentName]
	if procedure, ok := w.config.Procedures[w.config.Application.DefaultProcedure]; ok {
		agent = agent.WithSystemInstructions(procedure.SystemInstructions)
	}
	judge := cloud.NewGeminiWindowJudge(agent, judgeTemplate)

	out := cor.NewBaseChain(w.GetName())

	out.AddCommand(commands.NewVideoTriggerToGCSObject("video-trigger-to-gcs-object"))
	out.AddCommand(commands.NewGCSToTempFile("gcs-to-temp-file", w.serviceClients.StorageClient, "recap-video-"))
	out.AddCommand(commands.NewFFMpegFrameExtractor("extract-frames", w.ffmpegPath, w.config.Pipeline.FrameRate))
	out.AddCommand(commands.NewFrameUpload("upload-frames", w.serviceClients.StorageClient, w.config.Storage.FrameBucket))
	out.AddCommand(commands.NewKeyframeSelect("select-keyframes", embedder, judge, w.config.Pipeline, w.logger))
	out.AddCommand(commands.NewManifestToGCS("write-manifests", w.serviceClients.StorageClient, w.config.Storage.ManifestBucket))
	out.AddCommand(commands.NewKeyframeAnnotator("annotate-keyframes", agent, annotationTemplate, w.config.Application.ThreadPoolSize, w.logger))
	out.AddCommand(commands.NewKeyframePersistToBigQuery("write-to-bigquery", w.serviceClients.BigQueryClient, w.config.BigQueryDataSource))
	out.AddCommand(commands.NewSessionRegister("register-session", w.sessionStore))

	w.chain = out
}

// NewVideoAnalysisWorkflow is the constructor for the workflow. The embedder
// and agent names select entries from the configured model maps; ffmpegPath
// is the binary to invoke for frame extraction. Prompt templates and system
// instructions honor the configured default procedure's overrides.
func NewVideoAnalysisWorkflow(
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	sessionStore commands.SessionRegistrar,
	embedderName string,
	agentName string,
	ffmpegPath string,
	logger *slog.Logger) *VideoAnalysisWorkflow {
	w := &VideoAnalysisWorkflow{
		BaseCommand:    *cor.NewBaseCommand("video-analysis-workflow"),
		config:         config,
		serviceClients: serviceClients,
		sessionStore:   sessionStore,
		logger:         logger,
		embedderName:   embedderName,
		agentName:      agentName,
		ffmpegPath:     ffmpegPath,
	}
	w.initializeChain()
	return w
}
