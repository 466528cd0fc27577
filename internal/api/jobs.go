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
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Signed frame URLs are short-lived; the dashboard refreshes them on demand.
const signedURLTTL = 15 * time.Minute

func (h *Handlers) registerJobRoutes(r *gin.RouterGroup) {
	jobs := r.Group("/jobs")
	{
		jobs.GET("", func(c *gin.Context) {
			limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
			if err != nil || limit < 1 {
				limit = 50
			}
			out, err := h.Jobs.ListJobs(c.Request.Context(), limit)
			if err != nil {
				h.Logger.Error("failed to list jobs", "error", err)
				c.Status(http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusOK, out)
		})

		jobs.GET("/:id", func(c *gin.Context) {
			out, err := h.Jobs.GetJob(c.Request.Context(), c.Param("id"))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
				return
			}
			c.JSON(http.StatusOK, out)
		})

		jobs.GET("/:id/keyframes", func(c *gin.Context) {
			out, err := h.Jobs.GetKeyframes(c.Request.Context(), c.Param("id"))
			if err != nil {
				h.Logger.Error("failed to read keyframes", "job_id", c.Param("id"), "error", err)
				c.Status(http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusOK, out)
		})

		jobs.GET("/:id/manifest", func(c *gin.Context) {
			h.serveManifest(c, fmt.Sprintf("jobs/%s/manifest.json", c.Param("id")))
		})

		jobs.GET("/:id/final", func(c *gin.Context) {
			h.serveManifest(c, fmt.Sprintf("jobs/%s/final_manifest.json", c.Param("id")))
		})

		jobs.GET("/:id/frames/:n/url", func(c *gin.Context) {
			globalIndex, err := strconv.Atoi(c.Param("n"))
			if err != nil {
				c.Status(http.StatusBadRequest)
				return
			}
			keyframes, err := h.Jobs.GetKeyframes(c.Request.Context(), c.Param("id"))
			if err != nil {
				c.Status(http.StatusInternalServerError)
				return
			}
			for _, kf := range keyframes {
				if kf.GlobalIndex == globalIndex {
					url, err := h.Jobs.GenerateSignedURL(c.Request.Context(), kf.Locator, signedURLTTL)
					if err != nil {
						h.Logger.Error("failed to sign frame URL", "job_id", c.Param("id"), "error", err)
						c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate frame URL"})
						return
					}
					c.JSON(http.StatusOK, gin.H{"url": url})
					return
				}
			}
			c.JSON(http.StatusNotFound, gin.H{"error": "frame not found"})
		})
	}
}

// serveManifest streams a job artifact straight from the manifest bucket.
func (h *Handlers) serveManifest(c *gin.Context, objectName string) {
	reader, err := h.Clients.StorageClient.Bucket(h.Config.Storage.ManifestBucket).Object(objectName).NewReader(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "manifest not found"})
		return
	}
	defer func() { _ = reader.Close() }()
	c.DataFromReader(http.StatusOK, reader.Attrs.Size, "application/json", reader, nil)
}
