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

// Package cloud holds the configuration structures, loaded from TOML files,
// and the Google Cloud service adapters built from them: storage, Pub/Sub,
// BigQuery, and the Vertex AI embedding and judge models.
package cloud

import "google.golang.org/genai"

// DefaultSafetySettings disables content blocking for all harm categories.
// The inputs are frames from recorded surgical procedures; graphic medical
// imagery is the expected content, not something to filter.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// BigQueryDataSource names the dataset and tables keyframe results are
// persisted to.
type BigQueryDataSource struct {
	DatasetName   string `toml:"dataset"`
	KeyframeTable string `toml:"keyframe_table"` // Per-keyframe records with annotations.
	JobTable      string `toml:"job_table"`      // One summary row per pipeline job.
}

// PromptTemplates holds the Go text templates for the two generative calls
// the pipeline makes.
type PromptTemplates struct {
	WindowJudgePrompt string `toml:"window_judge"` // Selects significant frames from a window.
	AnnotationPrompt  string `toml:"annotation"`   // Describes a single selected keyframe.
}

// VertexAiEmbeddingModel configures the multimodal embedding model used by
// Stage 1.
type VertexAiEmbeddingModel struct {
	Model                string `toml:"model"`
	OutputDimensionality int32  `toml:"output_dimensionality"`
	MaxRequestsPerMinute int    `toml:"max_requests_per_minute"`
}

// VertexAiLLMModel configures a Vertex AI generative model.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`
	SystemInstructions string  `toml:"system_instructions"`
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"`
	OutputFormat       string  `toml:"output_format"`
	RateLimit          int     `toml:"rate_limit"` // Requests per second.
}

// TopicSubscription configures one Pub/Sub subscription the server listens
// on.
type TopicSubscription struct {
	Name             string `toml:"name"`
	DeadLetterTopic  string `toml:"dead_letter_topic"`
	TimeoutInSeconds int    `toml:"timeout_in_seconds"`
}

// Storage names the GCS buckets the pipeline reads from and writes to.
type Storage struct {
	VideoInputBucket  string `toml:"video_input_bucket"`  // Uploaded procedure recordings.
	FrameBucket       string `toml:"frame_bucket"`        // Extracted frame images.
	ManifestBucket    string `toml:"manifest_bucket"`     // manifest.json / final_manifest.json artifacts.
	GCSFuseMountPoint string `toml:"gcs_fuse_mount_point"`
}

// PipelineParams holds the tunables of the two-stage selection.
type PipelineParams struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"` // Cosine threshold that closes a run.
	SampleStride        int     `toml:"sample_stride"`        // Representative sampling stride within a run.
	WindowSize          int     `toml:"window_size"`          // Frames per Stage 2 window.
	Overlap             int     `toml:"overlap"`              // Shared frames between consecutive windows.
	Executor            string  `toml:"executor"`             // "sequential" or "pool".
	WorkerCount         int     `toml:"worker_count"`         // Pool size when executor is "pool".
	Reducer             string  `toml:"reducer"`              // "similarity", "fixed_interval", or "passthrough".
	FixedInterval       int     `toml:"fixed_interval"`       // Interval for the fixed_interval reducer.
	FrameRate           float64 `toml:"frame_rate"`           // Frames per second extracted from the video.
}

// Procedure describes a surgical procedure type and optional prompt
// overrides tuned for it.
type Procedure struct {
	Name               string `toml:"name"`
	Definition         string `toml:"definition"`
	SystemInstructions string `toml:"system_instructions"`
	WindowJudge        string `toml:"window_judge"`
	Annotation         string `toml:"annotation"`
}

// Config is the root of the application configuration, populated by
// LoadConfig from the base and runtime-specific TOML files.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		ThreadPoolSize            int    `toml:"thread_pool_size"` // Workers for frame annotation.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"`
		DefaultProcedure          string `toml:"default_procedure"` // Key into Procedures for prompt tuning.
	} `toml:"application"`
	Storage            Storage                           `toml:"storage"`
	Pipeline           PipelineParams                    `toml:"pipeline"`
	BigQueryDataSource BigQueryDataSource                `toml:"big_query_data_source"`
	PromptTemplates    PromptTemplates                   `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription      `toml:"topic_subscriptions"`
	EmbeddingModels    map[string]VertexAiEmbeddingModel `toml:"embedding_models"`
	AgentModels        map[string]VertexAiLLMModel       `toml:"agent_models"`
	Procedures         map[string]Procedure              `toml:"procedures"`
}

// PromptsFor returns the prompt templates with any non-empty overrides from
// the named procedure applied on top of the base templates. An empty or
// unknown procedure name returns the base templates unchanged.
func (c *Config) PromptsFor(procedure string) PromptTemplates {
	prompts := c.PromptTemplates
	p, ok := c.Procedures[procedure]
	if !ok {
		return prompts
	}
	if p.WindowJudge != "" {
		prompts.WindowJudgePrompt = p.WindowJudge
	}
	if p.Annotation != "" {
		prompts.AnnotationPrompt = p.Annotation
	}
	return prompts
}

// NewConfig returns a Config with its maps initialized so the TOML decoder
// can populate them.
func NewConfig() *Config {
	return &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		EmbeddingModels:    make(map[string]VertexAiEmbeddingModel),
		AgentModels:        make(map[string]VertexAiLLMModel),
		Procedures:         make(map[string]Procedure),
	}
}
