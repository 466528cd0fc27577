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
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// FrameUpload copies the locally extracted frames into the frame bucket and
// rewrites each FrameRef locator to the resulting gs:// URI. The embedding
// and judge models read frames by GCS URI, so this must run before the
// pipeline; local copies stay registered as temp files for cleanup.
type FrameUpload struct {
	cor.BaseCommand
	client *storage.Client
	bucket string
}

func NewFrameUpload(name string, client *storage.Client, bucket string) *FrameUpload {
	return &FrameUpload{BaseCommand: *cor.NewBaseCommand(name), client: client, bucket: bucket}
}

func (c *FrameUpload) Execute(context cor.Context) {
	frames := context.Get(c.GetInputParam()).([]model.FrameRef)
	videoID := context.Get(GetVideoIDParamName()).(string)

	writerBucket := c.client.Bucket(c.bucket)
	uploaded := make([]model.FrameRef, 0, len(frames))
	for _, frame := range frames {
		objectName := fmt.Sprintf("%s/frames/%s", videoID, filepath.Base(frame.Locator))
		if err := c.uploadOne(context, writerBucket, frame.Locator, objectName); err != nil {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), err)
			return
		}
		frame.Locator = fmt.Sprintf("gs://%s/%s", c.bucket, objectName)
		uploaded = append(uploaded, frame)
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(cor.CtxOut, uploaded)
}

func (c *FrameUpload) uploadOne(context cor.Context, bucket *storage.BucketHandle, localPath, objectName string) error {
	dat, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open frame %s: %w", localPath, err)
	}
	defer func() { _ = dat.Close() }()

	writer := bucket.Object(objectName).NewWriter(context.GetContext())
	writer.ContentType = "image/jpeg"
	if _, err := io.Copy(writer, dat); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to upload frame %s: %w", objectName, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize frame %s: %w", objectName, err)
	}
	return nil
}
