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

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients bundles every Google Cloud client the application uses:
// one shared instance per service, created at startup and injected into
// workflows, services, and API handlers.
type ServiceClients struct {
	StorageClient   *storage.Client
	PubsubClient    *pubsub.Client
	GenAIClient     *genai.Client
	BigQueryClient  *bigquery.Client
	IAMClient       *credentials.IamCredentialsClient // Signs GCS URLs for the frame viewer.
	PubSubListeners map[string]*PubSubListener
	ImageEmbedders  map[string]*VertexImageEmbedder
	AgentModels     map[string]*QuotaAwareGenerativeAIModel
}

// Close releases the client connections. The genai client holds no
// closeable resources.
func (c *ServiceClients) Close() {
	_ = c.StorageClient.Close()
	_ = c.PubsubClient.Close()
	_ = c.BigQueryClient.Close()
	_ = c.IAMClient.Close()
}

// NewCloudServiceClients initializes all service clients from the loaded
// configuration. Listeners are created without commands; the workflows
// attach them during server setup.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	pc, err := pubsub.NewClient(ctx, config.Application.GoogleProjectId)
	if err != nil {
		return nil, err
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, err
	}

	bc, err := bigquery.NewClient(ctx, config.Application.GoogleProjectId)
	if err != nil {
		return nil, err
	}

	iamClient, err := credentials.NewIamCredentialsClient(ctx)
	if err != nil {
		return nil, err
	}

	subscriptions := make(map[string]*PubSubListener)
	for subKey := range config.TopicSubscriptions {
		values := config.TopicSubscriptions[subKey]
		actual, err := NewPubSubListener(pc, values.Name, nil)
		if err != nil {
			return nil, err
		}
		subscriptions[subKey] = actual
	}

	imageEmbedders := make(map[string]*VertexImageEmbedder)
	for embKey := range config.EmbeddingModels {
		imageEmbedders[embKey] = NewVertexImageEmbedder(gc.Models, config.EmbeddingModels[embKey])
	}

	agentModels := make(map[string]*QuotaAwareGenerativeAIModel)
	for amKey := range config.AgentModels {
		values := config.AgentModels[amKey]
		generateConfig := &genai.GenerateContentConfig{
			Temperature:       genai.Ptr[float32](values.Temperature),
			TopP:              genai.Ptr[float32](values.TopP),
			TopK:              genai.Ptr[float32](values.TopK),
			MaxOutputTokens:   values.MaxTokens,
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}},
			SafetySettings:    DefaultSafetySettings,
			ResponseMIMEType:  values.OutputFormat,
			Tools:             []*genai.Tool{},
		}
		agentModels[amKey] = NewQuotaAwareModel(generateConfig, values.Model, gc.Models, values.RateLimit)
	}

	cloud = &ServiceClients{
		StorageClient:   sc,
		PubsubClient:    pc,
		GenAIClient:     gc,
		BigQueryClient:  bc,
		IAMClient:       iamClient,
		PubSubListeners: subscriptions,
		ImageEmbedders:  imageEmbedders,
		AgentModels:     agentModels,
	}
	return cloud, err
}
