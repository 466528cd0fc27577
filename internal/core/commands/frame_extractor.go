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
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/cor"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

const (
	FrameDirPrefix   = "recap-frames-"
	frameFilePattern = "frame_%05d.jpg"
)

// FFMpegFrameExtractor samples the downloaded video into JPEG frames at a
// fixed rate using ffmpeg. The output is the ordered frame sequence the
// pipeline operates on; timestamps are derived from the frame index and
// the sampling rate. Frame files are registered as temp files so the chain
// context removes them once the workflow finishes.
type FFMpegFrameExtractor struct {
	cor.BaseCommand
	commandPath string
	frameRate   float64
}

func NewFFMpegFrameExtractor(name string, commandPath string, frameRate float64) *FFMpegFrameExtractor {
	return &FFMpegFrameExtractor{
		BaseCommand: *cor.NewBaseCommand(name),
		commandPath: commandPath,
		frameRate:   frameRate,
	}
}

func (c *FFMpegFrameExtractor) Execute(context cor.Context) {
	videoPath := context.Get(c.GetInputParam()).(string)

	frameDir, err := os.MkdirTemp("", FrameDirPrefix)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("could not create frame directory: %w", err))
		return
	}

	// -q:v 2 keeps JPEG quality high enough for the embedding and judge
	// models; fps drives the fixed sampling rate.
	args := []string{
		"-y", "-hide_banner",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%g", c.frameRate),
		"-q:v", "2",
		filepath.Join(frameDir, frameFilePattern),
	}
	cmd := exec.CommandContext(context.GetContext(), c.commandPath, args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("error running ffmpeg: %w", err))
		return
	}

	entries, err := os.ReadDir(frameDir)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("could not read frame directory: %w", err))
		return
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	// ffmpeg's zero-padded numbering makes lexicographic order temporal
	// order.
	sort.Strings(names)

	frames := make([]model.FrameRef, 0, len(names))
	for i, name := range names {
		path := filepath.Join(frameDir, name)
		context.AddTempFile(path)
		frames = append(frames, model.FrameRef{
			Index:     i,
			Timestamp: float64(i) / c.frameRate,
			Locator:   path,
		})
	}
	if len(frames) == 0 {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("ffmpeg produced no frames for %s", videoPath))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(cor.CtxOut, frames)
}
