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

// This file defines the in-memory analysis session store. A session is
// opened for every completed pipeline job so the dashboard can browse the
// annotated keyframes without re-querying BigQuery. The store is
// constructor-injected; each server instance owns exactly one.
package services

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/surgical-recap/keyframe-pipeline/internal/core/model"
)

// Session holds the browsable result of one completed pipeline job.
type Session struct {
	ID        string                  `json:"session_id"`
	JobID     string                  `json:"job_id"`
	VideoID   string                  `json:"video_id"`
	CreatedAt time.Time               `json:"created_at"`
	Keyframes []model.FrameAnnotation `json:"keyframes"`
}

// SessionStore is a mutex-guarded map of live analysis sessions. All methods
// are safe for concurrent use; returned sessions are copies, so callers
// cannot mutate stored state.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore is the constructor for the SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Register opens a session for a completed job and returns its ID.
func (s *SessionStore) Register(jobID string, videoID string, annotations []model.FrameAnnotation) string {
	session := &Session{
		ID:        uuid.NewString(),
		JobID:     jobID,
		VideoID:   videoID,
		CreatedAt: time.Now(),
		Keyframes: append([]model.FrameAnnotation(nil), annotations...),
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session.ID
}

// Get returns a copy of the session, or false if it does not exist.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	out := *session
	out.Keyframes = append([]model.FrameAnnotation(nil), session.Keyframes...)
	return out, true
}

// List returns all sessions, newest first.
func (s *SessionStore) List() []Session {
	s.mu.RLock()
	out := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		copied := *session
		copied.Keyframes = append([]model.FrameAnnotation(nil), session.Keyframes...)
		out = append(out, copied)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Delete removes a session and reports whether it existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}
