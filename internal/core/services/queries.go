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

// Package services contains the data access layer for completed pipeline
// jobs and the in-memory analysis session store. This file centralizes the
// BigQuery SQL used by the job service; placeholders are filled with
// fmt.Sprintf for table names and query parameters for values.
package services

const (
	// QryListJobs returns the most recent job summaries, newest first.
	QryListJobs = "SELECT job_id, video_id, keyframe_count, created_at FROM `%s` ORDER BY created_at DESC LIMIT @limit"

	// QryFindJobById looks up a single job summary row.
	QryFindJobById = "SELECT job_id, video_id, keyframe_count, created_at FROM `%s` WHERE job_id = @job_id"

	// QryFindKeyframesByJob returns every persisted keyframe for a job in
	// manifest order.
	QryFindKeyframesByJob = "SELECT * FROM `%s` WHERE job_id = @job_id ORDER BY global_index ASC"
)
