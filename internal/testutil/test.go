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

// Package test provides shared helpers for the test suite: test
// configuration loading and mock trigger payloads.
package test

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/surgical-recap/keyframe-pipeline/internal/cloud"
)

// StateManager caches the loaded test configuration so it is read from disk
// only once per test run.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is non-nil. Reduces boilerplate in
// integration tests.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("Error reading config file: %v", err)
	}
}

// GetTestVideoUploadMessageText returns the JSON payload of a GCS
// notification for a finalized video upload, as Pub/Sub delivers it to the
// video analysis workflow.
func GetTestVideoUploadMessageText() string {
	return `{
  "kind": "storage#object",
  "id": "recap_video_input/lap-chole-017.mp4/1728615848664286",
  "selfLink": "https://www.googleapis.com/storage/v1/b/recap_video_input/o/lap-chole-017.mp4",
  "name": "lap-chole-017.mp4",
  "bucket": "recap_video_input",
  "generation": "1728615848664286",
  "metageneration": "1",
  "contentType": "video/mp4",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "updated": "2024-10-11T03:04:08.672Z",
  "storageClass": "STANDARD",
  "timeStorageClassUpdated": "2024-10-11T03:04:08.672Z",
  "size": "259348037",
  "md5Hash": "67c1rAU+1RYZzK5zp8iBkA==",
  "mediaLink": "https://storage.googleapis.com/download/storage/v1/b/recap_video_input/o/lap-chole-017.mp4?generation=1728615848664286&alt=media",
  "crc32c": "IYeSTw==",
  "etag": "CN658+yrhYkDEAE="
}`
}

// SetupOS points the configuration loader at the repository's test TOML
// files. The configs directory is resolved from this source file, so tests
// load the same configuration regardless of which package they run in.
func SetupOS() (err error) {
	_, thisFile, _, _ := runtime.Caller(0)
	configDir := filepath.Join(filepath.Dir(thisFile), "..", "..", "configs")
	err = os.Setenv(cloud.EnvConfigFilePrefix, configDir)
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is the singleton accessor for the test configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		state.config = config
	}
	return state.config
}
