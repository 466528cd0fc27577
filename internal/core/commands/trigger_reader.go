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

// Package commands provides the concrete workflow commands chained together
// by the keyframe selection workflows. Each command is an atomic step:
// parse the trigger, fetch the video, extract frames, run the pipeline,
// persist the results.
package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/surgical-recap/keyframe-pipeline/internal/cloud"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
)

// GetVideoIDParamName returns the chain context key holding the video
// identifier derived from the uploaded object's name.
func GetVideoIDParamName() string {
	return "__VIDEO_ID__"
}

// VideoTriggerToGCSObject parses the GCS upload notification that starts a
// workflow and distills it into the object handle and video ID downstream
// commands work with.
type VideoTriggerToGCSObject struct {
	cor.BaseCommand
}

func NewVideoTriggerToGCSObject(name string) *VideoTriggerToGCSObject {
	return &VideoTriggerToGCSObject{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *VideoTriggerToGCSObject) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam()).(string)

	var out cloud.GCSPubSubNotification
	err := json.Unmarshal([]byte(in), &out)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to unmarshal GCS notification: %w", err))
		return
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)

	msg := &cloud.GCSObject{Bucket: out.Bucket, Name: out.Name, MIMEType: out.ContentType}
	videoID := strings.TrimSuffix(filepath.Base(out.Name), filepath.Ext(out.Name))

	context.Add(cloud.GetGCSObjectName(), msg)
	context.Add(GetVideoIDParamName(), videoID)
	context.Add(c.GetOutputParam(), msg)
}
