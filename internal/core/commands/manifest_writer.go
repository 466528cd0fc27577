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
	"encoding/json"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// ManifestToGCS writes both pipeline artifacts as JSON job records:
// jobs/<job_id>/manifest.json for the Stage 1 manifest and
// jobs/<job_id>/final_manifest.json for the final selection. The final
// manifest is passed through as output for downstream persistence.
type ManifestToGCS struct {
	cor.BaseCommand
	client *storage.Client
	bucket string
}

func NewManifestToGCS(name string, client *storage.Client, bucket string) *ManifestToGCS {
	return &ManifestToGCS{BaseCommand: *cor.NewBaseCommand(name), client: client, bucket: bucket}
}

func (c *ManifestToGCS) Execute(context cor.Context) {
	manifest := context.Get(GetManifestParamName()).(*model.Manifest)
	final := context.Get(GetFinalManifestParamName()).(*model.FinalManifest)

	if err := c.writeJSON(context, fmt.Sprintf("jobs/%s/manifest.json", manifest.JobID), manifest); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	if err := c.writeJSON(context, fmt.Sprintf("jobs/%s/final_manifest.json", final.JobID), final); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(cor.CtxOut, final)
}

func (c *ManifestToGCS) writeJSON(context cor.Context, objectName string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", objectName, err)
	}
	writer := c.client.Bucket(c.bucket).Object(objectName).NewWriter(context.GetContext())
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write %s: %w", objectName, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", objectName, err)
	}
	return nil
}
