// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBannerRules(t *testing.T) {
	tests := []struct {
		rule    string
		matches []string
		misses  []string
	}{
		{"loading", []string{"Loading model...", "Loading model... done"}, []string{" Loading model...", "Loading models"}},
		{"build", []string{"build : b6123-abc", "build: 1", "build      : x"}, []string{"building a house", "rebuild :"}},
		{"model", []string{"model : qwen3.gguf", "model:"}, []string{"models are fun", " model : x"}},
		{"modalities", []string{"modalities : text"}, []string{"modality : text"}},
		{"commands", []string{"available commands:"}, []string{"no available commands:"}},
		{"exit", []string{"  /exit or Ctrl+C     stop or exit", "/exit"}, []string{"/exits", "go /exit"}},
		{"regen", []string{"  /regen             regenerate the last response"}, []string{"/regenerate"}},
		{"clear", []string{"  /clear             clear the chat history"}, []string{"/clearly"}},
		{"read", []string{"  /read               add a text file"}, []string{"/reader"}},
		{"exiting", []string{"Exiting..."}, []string{"Exiting now"}},
		{"stats", []string{"[ Prompt: 85.2 t/s | Generation: 21.4 t/s ]"}, []string{"Prompt: [x]"}},
		{"logo", []string{"▄▄ ▄▄", "                                    ▀▀    ▀▀", "██ ██"}, []string{"text ▀▀", "plain"}},
	}

	byName := map[string]BannerRule{}
	for _, r := range BannerRules {
		byName[r.Name] = r
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			rule, ok := byName[tt.rule]
			if !assert.True(t, ok, "rule %q not registered", tt.rule) {
				return
			}
			for _, line := range tt.matches {
				assert.True(t, rule.Matches(line), "expected %q to match", line)
				assert.True(t, IsBanner(line))
			}
			for _, line := range tt.misses {
				assert.False(t, rule.Matches(line), "expected %q not to match", line)
			}
		})
	}
}

func TestBannerRules_MayMatch(t *testing.T) {
	tests := []struct {
		rule    string
		partial string
		want    bool
	}{
		{"loading", "Load", true},
		{"loading", "Loaf", false},
		{"build", "bui", true},
		{"build", "build  ", true},
		{"build", "builder", false},
		{"exit", "  /ex", true},
		{"exit", "  /ey", false},
		{"exiting", "Exit", true},
		{"stats", "[ Pro", true},
		{"stats", "[x", false},
	}

	byName := map[string]BannerRule{}
	for _, r := range BannerRules {
		byName[r.Name] = r
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, byName[tt.rule].MayMatch(tt.partial), "%s/%q", tt.rule, tt.partial)
	}
}

func TestMatchBanner(t *testing.T) {
	assert.Equal(t, "build", MatchBanner("build : b1"))
	assert.Equal(t, "", MatchBanner("The answer is 42."))
	assert.False(t, IsBanner(""))
}
