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

// Package api defines the REST surface of the server: dashboard health,
// video uploads, job results, and analysis sessions. Handlers are thin; the
// data access lives in the services package and the pipeline work in the
// command chains.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/surgical-recap/keyframe-pipeline/internal/cloud"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/services"
)

// Handlers bundles the dependencies the route handlers need. Analysis is
// the synchronous keyframe chain behind POST /videos/:id/keyframes; the
// same commands also run asynchronously behind the Pub/Sub trigger.
type Handlers struct {
	Config   *cloud.Config
	Clients  *cloud.ServiceClients
	Jobs     *services.JobService
	Sessions *services.SessionStore
	Analysis cor.Chain
	Logger   *slog.Logger
}

// Register attaches every route to the given group (mounted at /api/v1).
func (h *Handlers) Register(r *gin.RouterGroup) {
	r.GET("/dashboard", h.dashboard)

	h.registerUploadRoutes(r)
	h.registerJobRoutes(r)
	h.registerSessionRoutes(r)
}

// dashboard reports service health and a few liveness figures for the UI.
func (h *Handlers) dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"application":   h.Config.Application.Name,
		"session_count": len(h.Sessions.List()),
	})
}

func (h *Handlers) registerSessionRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/sessions")
	{
		sessions.GET("", func(c *gin.Context) {
			c.JSON(http.StatusOK, h.Sessions.List())
		})

		sessions.GET("/:id", func(c *gin.Context) {
			session, ok := h.Sessions.Get(c.Param("id"))
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusOK, session)
		})

		sessions.DELETE("/:id", func(c *gin.Context) {
			if !h.Sessions.Delete(c.Param("id")) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.Status(http.StatusNoContent)
		})
	}
}
