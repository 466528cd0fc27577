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
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/surgical-recap/keyframe-pipeline/internal/cloud"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// KeyframePersistToBigQuery flattens the final manifest and its annotations
// into one KeyframeRecord row per selected frame, plus a JobSummary row, and
// streams them into BigQuery. Annotations are matched by frame locator; a
// frame that was not annotated is persisted with empty analysis fields.
type KeyframePersistToBigQuery struct {
	cor.BaseCommand
	client     *bigquery.Client
	dataSource cloud.BigQueryDataSource
}

func NewKeyframePersistToBigQuery(name string, client *bigquery.Client, dataSource cloud.BigQueryDataSource) *KeyframePersistToBigQuery {
	return &KeyframePersistToBigQuery{
		BaseCommand: *cor.NewBaseCommand(name),
		client:      client,
		dataSource:  dataSource,
	}
}

func (c *KeyframePersistToBigQuery) IsExecutable(context cor.Context) bool {
	return context != nil &&
		context.Get(GetManifestParamName()) != nil &&
		context.Get(GetFinalManifestParamName()) != nil
}

func (c *KeyframePersistToBigQuery) Execute(context cor.Context) {
	manifest := context.Get(GetManifestParamName()).(*model.Manifest)
	final := context.Get(GetFinalManifestParamName()).(*model.FinalManifest)

	annotations := make(map[string]model.FrameAnnotation)
	if raw := context.Get(GetAnnotationsParamName()); raw != nil {
		for _, a := range raw.([]model.FrameAnnotation) {
			annotations[a.Locator] = a
		}
	}

	// The final manifest only carries locator and timestamp; global index
	// and original frame number come from the Stage 1 manifest.
	globalByLocator := make(map[string]int, len(manifest.Frames))
	refByLocator := make(map[string]model.FrameRef, len(manifest.Frames))
	for globalIndex, frame := range manifest.Frames {
		globalByLocator[frame.Locator] = globalIndex
		refByLocator[frame.Locator] = frame
	}

	createdAt := time.Now()
	rows := make([]*model.KeyframeRecord, 0, len(final.SelectedFrames))
	for _, selected := range final.SelectedFrames {
		record := &model.KeyframeRecord{
			JobID:       final.JobID,
			VideoID:     final.VideoID,
			GlobalIndex: globalByLocator[selected.Locator],
			FrameNumber: refByLocator[selected.Locator].Index,
			Timestamp:   selected.Timestamp,
			Locator:     selected.Locator,
			CreatedAt:   createdAt,
		}
		if annotation, ok := annotations[selected.Locator]; ok {
			record.Step = annotation.Step
			record.Instruments = annotation.Instruments
			record.Risk = annotation.Risk
			record.Description = annotation.Description
		}
		rows = append(rows, record)
	}

	dataset := c.client.Dataset(c.dataSource.DatasetName)
	if len(rows) > 0 {
		inserter := dataset.Table(c.dataSource.KeyframeTable).Inserter()
		if err := inserter.Put(context.GetContext(), rows); err != nil {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), fmt.Errorf("failed to persist keyframes for job %s: %w", final.JobID, err))
			return
		}
	}

	summary := &model.JobSummary{
		JobID:         final.JobID,
		VideoID:       final.VideoID,
		KeyframeCount: final.SelectedFrameCount,
		CreatedAt:     createdAt,
	}
	if err := dataset.Table(c.dataSource.JobTable).Inserter().Put(context.GetContext(), summary); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to persist job summary %s: %w", final.JobID, err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(cor.CtxOut, final.JobID)
}
