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

// This file defines the JobService, the read side of the persisted pipeline
// results: job summaries and keyframe rows from BigQuery, plus signed GCS
// URLs so the dashboard can display private frame images.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// JobService reads completed pipeline jobs from BigQuery and signs frame
// URLs through the IAM Credentials API so no service account key is needed
// on disk.
type JobService struct {
	BigqueryClient *bigquery.Client
	StorageClient  *storage.Client
	IAMClient      *credentials.IamCredentialsClient
	SignerEmail    string
	DatasetName    string
	KeyframeTable  string
	JobTable       string
}

func (s *JobService) jobTableFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.JobTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

func (s *JobService) keyframeTableFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.KeyframeTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

// ListJobs returns up to limit job summaries, newest first.
func (s *JobService) ListJobs(ctx context.Context, limit int) ([]*model.JobSummary, error) {
	out := make([]*model.JobSummary, 0)

	q := s.BigqueryClient.Query(fmt.Sprintf(QryListJobs, s.jobTableFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: limit}}
	itr, err := q.Read(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to list jobs: %w", err)
	}
	for {
		r := &model.JobSummary{}
		err := itr.Next(r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to iterate jobs: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// GetJob looks up a single job summary by ID.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*model.JobSummary, error) {
	q := s.BigqueryClient.Query(fmt.Sprintf(QryFindJobById, s.jobTableFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "job_id", Value: jobID}}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	job := &model.JobSummary{}
	if err := itr.Next(job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetKeyframes returns the persisted keyframe rows for a job in manifest
// order.
func (s *JobService) GetKeyframes(ctx context.Context, jobID string) ([]*model.KeyframeRecord, error) {
	out := make([]*model.KeyframeRecord, 0)

	q := s.BigqueryClient.Query(fmt.Sprintf(QryFindKeyframesByJob, s.keyframeTableFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "job_id", Value: jobID}}
	itr, err := q.Read(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to read keyframes: %w", err)
	}
	for {
		r := &model.KeyframeRecord{}
		err := itr.Next(r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to iterate keyframes: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// GenerateSignedURL creates a time-limited GET URL for a gs:// locator. The
// signature comes from the IAM Credentials SignBlob API under the configured
// signer service account.
func (s *JobService) GenerateSignedURL(ctx context.Context, gcsURI string, expires time.Duration) (string, error) {
	const prefix = "gs://"
	if !strings.HasPrefix(gcsURI, prefix) {
		return "", fmt.Errorf("invalid GCS URI format: %s", gcsURI)
	}
	parts := strings.SplitN(strings.TrimPrefix(gcsURI, prefix), "/", 2)
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid GCS URI: unable to determine bucket and object from %s", gcsURI)
	}
	bucketName, objectName := parts[0], parts[1]

	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(expires),
		GoogleAccessID: s.SignerEmail,
		SignBytes: func(b []byte) ([]byte, error) {
			resp, err := s.IAMClient.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			})
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		},
	}

	u, err := s.StorageClient.Bucket(bucketName).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", bucketName, objectName, err)
	}
	return u, nil
}
