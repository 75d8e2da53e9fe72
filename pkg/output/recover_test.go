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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleBanner = `Loading model...

▄▄ ▄▄
██ ██
██ ██  ▀▀█▄ ███▄███▄  ▀▀█▄    ▄████ ████▄ ████▄
                                    ▀▀    ▀▀

build      : b6710-74b8fc17
model      : qwen2.5-0.5b-instruct-q4_k_m.gguf
modalities : text

available commands:
  /exit or Ctrl+C     stop or exit
  /regen             regenerate the last response
  /clear             clear the chat history
  /read               add a text file

`

func TestRecover(t *testing.T) {
	longPrompt := "Summarize the following paragraph about the history of the printing press in two sentences."

	tests := []struct {
		name   string
		stdout string
		prompt string
		want   string
	}{
		{
			name:   "exact prompt echo",
			stdout: sampleBanner + "> What is 2+2?\n\n2+2 equals 4.\n\n[ Prompt: 120.1 t/s | Generation: 33.3 t/s ]\n\nExiting...\n",
			prompt: "What is 2+2?",
			want:   "2+2 equals 4.",
		},
		{
			name:   "last occurrence wins",
			stdout: "hi\nhi there\nhi\nanswer",
			prompt: "hi",
			want:   "answer",
		},
		{
			name:   "mangled long prompt falls back to suffix",
			stdout: "> ...ry of the printing press in two sentences.\nGutenberg changed everything.",
			prompt: longPrompt,
			want:   "Gutenberg changed everything.",
		},
		{
			name:   "heuristic cleanup without echo",
			stdout: sampleBanner + "> something else (truncated)\n\nParis is the capital of France.\nExiting...",
			prompt: "Capital of France?",
			want:   "Paris is the capital of France.",
		},
		{
			name:   "banner heuristics drop build and size lines",
			stdout: "build 1234 (commit abc)\nmodel size: 400MB\nreal output",
			prompt: "unmatched",
			want:   "real output",
		},
		{
			name:   "only chrome yields empty",
			stdout: sampleBanner + "> Hello\n\nExiting...",
			prompt: "Hello",
			want:   "",
		},
		{
			name:   "only chrome without echo yields empty",
			stdout: sampleBanner + "> Hello\n\n[ Prompt: 1.0 t/s | Generation: 2.0 t/s ]\nExiting...",
			prompt: "Goodbye",
			want:   "",
		},
		{
			name:   "empty prompt uses heuristics",
			stdout: "Loading model...\nplain answer",
			prompt: "",
			want:   "plain answer",
		},
		{
			name:   "empty output",
			stdout: "   \n",
			prompt: "x",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Recover(tt.stdout, tt.prompt))
		})
	}
}

func TestRecover_ExactEchoKeepsTextAfterIt(t *testing.T) {
	prompt := "Tell me a joke"
	tail := " about cats.\nWhy did the cat sit on the computer?"
	out := Recover("> "+prompt+tail, prompt)
	assert.Equal(t, strings.TrimSpace(tail), out)
}

func TestPromptSuffix(t *testing.T) {
	_, ok := promptSuffix(strings.Repeat("a", 30))
	assert.False(t, ok)

	s, ok := promptSuffix(strings.Repeat("x", 5) + strings.Repeat("é", 30))
	assert.True(t, ok)
	assert.Equal(t, strings.Repeat("é", 30), s)
}
