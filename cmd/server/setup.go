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

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"text/template"

	"github.com/surgical-recap/keyframe-pipeline/internal/api"
	"github.com/surgical-recap/keyframe-pipeline/internal/cloud"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/commands"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/services"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/workflow"
)

// Names of the configured models and subscriptions the server wires up.
const (
	EmbedderName     = "multimodal"
	AgentName        = "recap-flash"
	VideoTopicKey    = "VideoTopic"
	FFMpegBinaryPath = "ffmpeg"
)

// StateManager holds the shared components for the application.
type StateManager struct {
	config       *cloud.Config
	cloud        *cloud.ServiceClients
	jobService   *services.JobService
	sessionStore *services.SessionStore
	handlers     *api.Handlers
}

var state = &StateManager{}

func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		state.config = config
	}
	return state.config
}

// InitState initializes the cloud clients, services, the synchronous
// analysis chain, and the Pub/Sub triggered workflow.
func InitState(ctx context.Context, logger *slog.Logger) {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}
	state.cloud = cloudClients

	state.sessionStore = services.NewSessionStore()
	state.jobService = &services.JobService{
		BigqueryClient: cloudClients.BigQueryClient,
		StorageClient:  cloudClients.StorageClient,
		IAMClient:      cloudClients.IAMClient,
		SignerEmail:    config.Application.SignerServiceAccountEmail,
		DatasetName:    config.BigQueryDataSource.DatasetName,
		KeyframeTable:  config.BigQueryDataSource.KeyframeTable,
		JobTable:       config.BigQueryDataSource.JobTable,
	}

	state.handlers = &api.Handlers{
		Config:   config,
		Clients:  cloudClients,
		Jobs:     state.jobService,
		Sessions: state.sessionStore,
		Analysis: NewAnalysisChain(config, cloudClients, state.sessionStore, logger),
		Logger:   logger,
	}

	SetupListeners(ctx, config, cloudClients, logger)
}

// NewAnalysisChain builds the keyframe selection chain used by the
// synchronous reprocessing endpoint. It starts from frames already uploaded
// to the frame bucket, so the trigger, download, and extraction commands of
// the full workflow are not part of it.
func NewAnalysisChain(
	config *cloud.Config,
	cloudClients *cloud.ServiceClients,
	sessionStore *services.SessionStore,
	logger *slog.Logger) cor.Chain {
	prompts := config.PromptsFor(config.Application.DefaultProcedure)
	judgeTemplate, err := template.New("window-judge").Parse(prompts.WindowJudgePrompt)
	if err != nil {
		log.Fatalf("invalid window judge prompt: %v\n", err)
	}
	annotationTemplate, err := template.New("annotation").Parse(prompts.AnnotationPrompt)
	if err != nil {
		log.Fatalf("invalid annotation prompt: %v\n", err)
	}

	embedder := cloudClients.ImageEmbedders[EmbedderName]
	agent := cloudClients.AgentModels[AgentName]
	if procedure, ok := config.Procedures[config.Application.DefaultProcedure]; ok {
		agent = agent.WithSystemInstructions(procedure.SystemInstructions)
	}
	judge := cloud.NewGeminiWindowJudge(agent, judgeTemplate)

	out := cor.NewBaseChain("sync-keyframe-analysis")
	out.AddCommand(commands.NewKeyframeSelect("select-keyframes", embedder, judge, config.Pipeline, logger))
	out.AddCommand(commands.NewManifestToGCS("write-manifests", cloudClients.StorageClient, config.Storage.ManifestBucket))
	out.AddCommand(commands.NewKeyframeAnnotator("annotate-keyframes", agent, annotationTemplate, config.Application.ThreadPoolSize, logger))
	out.AddCommand(commands.NewKeyframePersistToBigQuery("write-to-bigquery", cloudClients.BigQueryClient, config.BigQueryDataSource))
	out.AddCommand(commands.NewSessionRegister("register-session", sessionStore))
	return out
}

// SetupListeners attaches the full video analysis workflow to the upload
// notification subscription and starts listening.
func SetupListeners(ctx context.Context, config *cloud.Config, cloudClients *cloud.ServiceClients, logger *slog.Logger) {
	videoAnalysis := workflow.NewVideoAnalysisWorkflow(
		config, cloudClients, state.sessionStore, EmbedderName, AgentName, FFMpegBinaryPath, logger)
	cloudClients.PubSubListeners[VideoTopicKey].SetCommand(videoAnalysis)
	cloudClients.PubSubListeners[VideoTopicKey].Listen(ctx)
}
