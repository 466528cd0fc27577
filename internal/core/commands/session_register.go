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
	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// GetSessionIDParamName returns the chain context key holding the analysis
// session created for a completed job.
func GetSessionIDParamName() string {
	return "__SESSION_ID__"
}

// SessionRegistrar is the slice of the session store this command needs.
type SessionRegistrar interface {
	Register(jobID string, videoID string, annotations []model.FrameAnnotation) string
}

// SessionRegister opens an analysis session for a completed pipeline job so
// the results are immediately browsable through the session API.
type SessionRegister struct {
	cor.BaseCommand
	store SessionRegistrar
}

func NewSessionRegister(name string, store SessionRegistrar) *SessionRegister {
	return &SessionRegister{BaseCommand: *cor.NewBaseCommand(name), store: store}
}

func (c *SessionRegister) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(GetFinalManifestParamName()) != nil
}

func (c *SessionRegister) Execute(context cor.Context) {
	final := context.Get(GetFinalManifestParamName()).(*model.FinalManifest)

	var annotations []model.FrameAnnotation
	if raw := context.Get(GetAnnotationsParamName()); raw != nil {
		annotations = raw.([]model.FrameAnnotation)
	}

	sessionID := c.store.Register(final.JobID, final.VideoID, annotations)

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(GetSessionIDParamName(), sessionID)
	context.Add(cor.CtxOut, sessionID)
}
