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

package commands_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/commands"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

type recordingRegistrar struct {
	jobID       string
	videoID     string
	annotations []model.FrameAnnotation
}

func (r *recordingRegistrar) Register(jobID string, videoID string, annotations []model.FrameAnnotation) string {
	r.jobID = jobID
	r.videoID = videoID
	r.annotations = annotations
	return "session-42"
}

func TestSessionRegister(t *testing.T) {
	registrar := &recordingRegistrar{}
	cmd := commands.NewSessionRegister("register-test", registrar)

	chainCtx := newChainContext()
	chainCtx.Add(commands.GetFinalManifestParamName(), &model.FinalManifest{
		JobID:   "job-7",
		VideoID: "video-7",
	})
	chainCtx.Add(commands.GetAnnotationsParamName(), []model.FrameAnnotation{
		{Locator: "gs://frames/video-7/frames/frame_00003.jpg", Step: "Clipping"},
	})

	require.True(t, cmd.IsExecutable(chainCtx))
	cmd.Execute(chainCtx)
	require.False(t, chainCtx.HasErrors())

	assert.Equal(t, "job-7", registrar.jobID)
	assert.Equal(t, "video-7", registrar.videoID)
	assert.Len(t, registrar.annotations, 1)
	assert.Equal(t, "session-42", chainCtx.Get(commands.GetSessionIDParamName()))
	assert.Equal(t, "session-42", chainCtx.Get(cor.CtxOut))
}

func TestSessionRegisterWithoutAnnotations(t *testing.T) {
	registrar := &recordingRegistrar{}
	cmd := commands.NewSessionRegister("register-test", registrar)

	chainCtx := newChainContext()
	chainCtx.Add(commands.GetFinalManifestParamName(), &model.FinalManifest{JobID: "job-8", VideoID: "video-8"})

	cmd.Execute(chainCtx)

	require.False(t, chainCtx.HasErrors())
	assert.Empty(t, registrar.annotations)
	assert.Equal(t, "job-8", registrar.jobID)
}

func TestSessionRegisterRequiresFinalManifest(t *testing.T) {
	cmd := commands.NewSessionRegister("register-test", &recordingRegistrar{})
	assert.False(t, cmd.IsExecutable(newChainContext()))
}
