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

package api

import (
	"fmt"
	"io"
	"net/http"
	"sort"

	"cloud.google.com/go/storage"
	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"
	"google.golang.org/api/iterator"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/commands"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

func (h *Handlers) registerUploadRoutes(r *gin.RouterGroup) {
	uploads := r.Group("/uploads")
	{
		uploads.POST("", h.uploadVideos)
	}

	videos := r.Group("/videos")
	{
		videos.POST("/:id/keyframes", h.runKeyframeSelection)
	}
}

// uploadVideos accepts multipart video files and writes them to the input
// bucket. The magic bytes are sniffed before upload; anything that is not a
// video is rejected rather than left to fail deep inside the pipeline.
func (h *Handlers) uploadVideos(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.String(http.StatusBadRequest, "get form err: %s", err.Error())
		return
	}
	files := form.File["files"]
	bucket := h.Clients.StorageClient.Bucket(h.Config.Storage.VideoInputBucket)

	for _, file := range files {
		src, err := file.Open()
		if err != nil {
			c.String(http.StatusBadRequest, "open file err: %s", err.Error())
			return
		}

		head := make([]byte, 261)
		n, _ := io.ReadFull(src, head)
		kind, _ := filetype.Match(head[:n])
		if !filetype.IsVideo(head[:n]) {
			_ = src.Close()
			c.String(http.StatusUnsupportedMediaType, "%s is not a video file", file.Filename)
			return
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			_ = src.Close()
			c.Status(http.StatusInternalServerError)
			return
		}

		wc := bucket.Object(file.Filename).NewWriter(c.Request.Context())
		wc.ContentType = kind.MIME.Value
		if _, err := io.Copy(wc, src); err != nil {
			_ = src.Close()
			c.String(http.StatusInternalServerError, "write file to bucket err: %s", err.Error())
			return
		}
		_ = src.Close()
		if err := wc.Close(); err != nil {
			h.Logger.Error("failed to close bucket writer", "file", file.Filename, "error", err)
			c.Status(http.StatusInternalServerError)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"uploaded": len(files)})
}

// runKeyframeSelection runs the analysis chain synchronously over frames
// already present in the frame bucket under <video_id>/frames/. The async
// Pub/Sub workflow covers fresh uploads; this endpoint reprocesses a video
// with the current pipeline parameters.
func (h *Handlers) runKeyframeSelection(c *gin.Context) {
	videoID := c.Param("id")

	frames, err := h.listFrames(c, videoID)
	if err != nil {
		h.Logger.Error("failed to list frames", "video_id", videoID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if len(frames) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no frames found for video %s", videoID)})
		return
	}

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(c.Request.Context())
	chainCtx.Add(cor.CtxIn, frames)
	chainCtx.Add(commands.GetVideoIDParamName(), videoID)
	defer chainCtx.Close()

	h.Analysis.Execute(chainCtx)

	if chainCtx.HasErrors() {
		for name, err := range chainCtx.GetErrors() {
			h.Logger.Error("keyframe selection failed", "video_id", videoID, "command", name, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "keyframe selection failed"})
		return
	}

	final := chainCtx.Get(commands.GetFinalManifestParamName()).(*model.FinalManifest)
	c.JSON(http.StatusOK, gin.H{
		"job_id":     final.JobID,
		"session_id": chainCtx.Get(commands.GetSessionIDParamName()),
		"final":      final,
	})
}

// listFrames builds the ordered frame sequence from the frame bucket. The
// zero-padded object names make lexicographic order temporal order, matching
// the extractor's output.
func (h *Handlers) listFrames(c *gin.Context, videoID string) ([]model.FrameRef, error) {
	bucket := h.Config.Storage.FrameBucket
	itr := h.Clients.StorageClient.Bucket(bucket).Objects(c.Request.Context(), &storage.Query{
		Prefix: fmt.Sprintf("%s/frames/", videoID),
	})

	names := make([]string, 0)
	for {
		attrs, err := itr.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
	sort.Strings(names)

	frames := make([]model.FrameRef, 0, len(names))
	for i, name := range names {
		frames = append(frames, model.FrameRef{
			Index:     i,
			Timestamp: float64(i) / h.Config.Pipeline.FrameRate,
			Locator:   fmt.Sprintf("gs://%s/%s", bucket, name),
		})
	}
	return frames, nil
}
