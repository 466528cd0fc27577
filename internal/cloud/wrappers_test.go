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

package cloud_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/surgical-recap/keyframe-pipeline/internal/cloud"
)

func TestWithSystemInstructionsOverridesGenerationConfig(t *testing.T) {
	base := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: "general"}}},
	}, "gemini-2.0-flash", nil, 1)

	tuned := base.WithSystemInstructions("procedure specific")
	require.NotSame(t, base, tuned)
	assert.Equal(t, "procedure specific", tuned.GenerativeContentConfig.SystemInstruction.Parts[0].Text)

	// The base model keeps its own instructions, and both variants share
	// the limiter.
	assert.Equal(t, "general", base.GenerativeContentConfig.SystemInstruction.Parts[0].Text)
	assert.Same(t, base.RateLimit, tuned.RateLimit)
}

func TestWithSystemInstructionsEmptyReturnsReceiver(t *testing.T) {
	base := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini-2.0-flash", nil, 1)
	assert.Same(t, base, base.WithSystemInstructions(""))
}
