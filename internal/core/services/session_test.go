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

package services_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
	"github.com/surgical-recap/keyframe-pipeline/internal/core/services"
)

func TestSessionStoreRegisterAndGet(t *testing.T) {
	store := services.NewSessionStore()

	annotations := []model.FrameAnnotation{
		{Locator: "gs://frames/v1/frame_00001.jpg", Step: "Dissection", Risk: "Low"},
	}
	id := store.Register("job-1", "video-1", annotations)
	require.NotEmpty(t, id)

	session, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, "job-1", session.JobID)
	assert.Equal(t, "video-1", session.VideoID)
	assert.Len(t, session.Keyframes, 1)

	// Returned sessions are copies: mutating one must not leak into the
	// store.
	session.Keyframes[0].Risk = "High"
	again, _ := store.Get(id)
	assert.Equal(t, "Low", again.Keyframes[0].Risk)
}

func TestSessionStoreGetMissing(t *testing.T) {
	store := services.NewSessionStore()
	_, ok := store.Get("nope")
	assert.False(t, ok)
}

func TestSessionStoreDelete(t *testing.T) {
	store := services.NewSessionStore()
	id := store.Register("job-1", "video-1", nil)

	assert.True(t, store.Delete(id))
	assert.False(t, store.Delete(id))

	_, ok := store.Get(id)
	assert.False(t, ok)
}

func TestSessionStoreListNewestFirst(t *testing.T) {
	store := services.NewSessionStore()
	for i := 0; i < 3; i++ {
		store.Register(fmt.Sprintf("job-%d", i), "video-1", nil)
	}

	sessions := store.List()
	require.Len(t, sessions, 3)
	for i := 1; i < len(sessions); i++ {
		assert.False(t, sessions[i].CreatedAt.After(sessions[i-1].CreatedAt))
	}
}

func TestSessionStoreConcurrentAccess(t *testing.T) {
	store := services.NewSessionStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := store.Register(fmt.Sprintf("job-%d", n), "video-1", nil)
			_, _ = store.Get(id)
			store.List()
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.List(), 16)
}
