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

// Package model defines the core data structures for the application.
// This file contains the types persisted to BigQuery once a pipeline run
// completes. One KeyframeRecord row is written per reconciled selection so
// that jobs can be queried and replayed long after the in-memory manifests
// are gone.
package model

import "time"

// KeyframeRecord is the persisted form of a single selected keyframe,
// flattened from the FinalManifest plus its annotation for BigQuery storage.
type KeyframeRecord struct {
	JobID       string    `json:"job_id" bigquery:"job_id"`
	VideoID     string    `json:"video_id" bigquery:"video_id"`
	GlobalIndex int       `json:"global_index" bigquery:"global_index"` // Index into the Stage 1 manifest frames.
	FrameNumber int       `json:"frame_number" bigquery:"frame_number"` // Index into the original frame sequence.
	Timestamp   float64   `json:"timestamp" bigquery:"timestamp"`
	Locator     string    `json:"file_path" bigquery:"file_path"`
	Step        string    `json:"step" bigquery:"step"`
	Instruments []string  `json:"instruments" bigquery:"instruments"`
	Risk        string    `json:"risk" bigquery:"risk"`
	Description string    `json:"description" bigquery:"description"`
	CreatedAt   time.Time `json:"created_at" bigquery:"created_at"`
}

// JobSummary is the lightweight query result used by the jobs API to list
// completed pipeline runs without loading every keyframe row.
type JobSummary struct {
	JobID         string    `json:"job_id" bigquery:"job_id"`
	VideoID       string    `json:"video_id" bigquery:"video_id"`
	KeyframeCount int       `json:"keyframe_count" bigquery:"keyframe_count"`
	CreatedAt     time.Time `json:"created_at" bigquery:"created_at"`
}
