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

package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/surgical-recap/keyframe-pipeline/internal/cloud"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/services"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/workflow"
)

var logger = otelslog.NewLogger("keyframe-pipeline/tests/workflow")

func testWorkflowConfig() *cloud.Config {
	config := cloud.NewConfig()
	config.PromptTemplates.WindowJudgePrompt = "Select the significant frames out of {{.FrameCount}}. Example: {{.Example}}"
	config.PromptTemplates.AnnotationPrompt = "Describe the keyframe at {{.Timestamp}}s. Example: {{.Example}}"
	config.Pipeline = cloud.PipelineParams{
		SimilarityThreshold: 0.9,
		SampleStride:        3,
		WindowSize:          5,
		Overlap:             2,
		Executor:            "sequential",
		Reducer:             "similarity",
		FrameRate:           2,
	}
	return config
}

func TestNewVideoAnalysisWorkflow(t *testing.T) {
	w := workflow.NewVideoAnalysisWorkflow(
		testWorkflowConfig(),
		&cloud.ServiceClients{},
		services.NewSessionStore(),
		"multimodal",
		"recap-flash",
		"ffmpeg",
		logger)

	require.NotNil(t, w)
	assert.Equal(t, "video-analysis-workflow", w.GetName())
}

func TestVideoAnalysisWorkflowRejectsBadTrigger(t *testing.T) {
	w := workflow.NewVideoAnalysisWorkflow(
		testWorkflowConfig(),
		&cloud.ServiceClients{},
		services.NewSessionStore(),
		"multimodal",
		"recap-flash",
		"ffmpeg",
		logger)

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, "not a GCS notification")

	w.Execute(chainCtx)

	// The trigger parser fails first; the chain stops before any cloud
	// call is attempted.
	require.True(t, chainCtx.HasErrors())
	assert.Nil(t, chainCtx.Get(cloud.GetGCSObjectName()))
}

func TestVideoAnalysisWorkflowUsesProcedurePromptOverride(t *testing.T) {
	// The override is what the template parser sees: a broken procedure
	// prompt fails construction even though the base template is valid.
	config := testWorkflowConfig()
	config.Application.DefaultProcedure = "lap-chole"
	config.Procedures["lap-chole"] = cloud.Procedure{
		Name:        "Laparoscopic Cholecystectomy",
		WindowJudge: "{{.Broken",
	}

	assert.Panics(t, func() {
		workflow.NewVideoAnalysisWorkflow(
			config,
			&cloud.ServiceClients{},
			services.NewSessionStore(),
			"multimodal",
			"recap-flash",
			"ffmpeg",
			logger)
	})
}

func TestVideoAnalysisWorkflowInvalidPromptPanics(t *testing.T) {
	config := testWorkflowConfig()
	config.PromptTemplates.WindowJudgePrompt = "{{.Broken"

	assert.Panics(t, func() {
		workflow.NewVideoAnalysisWorkflow(
			config,
			&cloud.ServiceClients{},
			services.NewSessionStore(),
			"multimodal",
			"recap-flash",
			"ffmpeg",
			logger)
	})
}
