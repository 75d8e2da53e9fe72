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
	"github.com/stretchr/testify/require"
)

const streamPrompt = "Hello"

var streamSample = sampleBanner +
	"> Hello\n" +
	"\n" +
	"Hi there! ▀ marks the spot.\n" +
	"\n" +
	"How can I help?\n" +
	"\n" +
	"[ Prompt: 120.1 t/s | Generation: 33.3 t/s ]\n" +
	"\n" +
	"Exiting...\n"

const streamWant = "Hi there! ▀ marks the spot.\n\nHow can I help?\n\n\n"

func feedAll(f StreamFilter, chunks ...string) string {
	var out strings.Builder
	for _, c := range chunks {
		out.WriteString(f.Feed(c))
	}
	out.WriteString(f.Flush())
	return out.String()
}

func TestConservativeFilter_Whole(t *testing.T) {
	f := NewConservativeFilter(streamPrompt)
	assert.Equal(t, streamWant, feedAll(f, streamSample))
	assert.True(t, f.PromptSeen())
	assert.True(t, f.ContentFound())
}

func TestConservativeFilter_SplitInvariant(t *testing.T) {
	whole := feedAll(NewConservativeFilter(streamPrompt), streamSample)

	t.Run("every two-way split", func(t *testing.T) {
		for i := 0; i <= len(streamSample); i++ {
			got := feedAll(NewConservativeFilter(streamPrompt), streamSample[:i], streamSample[i:])
			require.Equal(t, whole, got, "split at byte %d", i)
		}
	})

	t.Run("byte at a time", func(t *testing.T) {
		f := NewConservativeFilter(streamPrompt)
		var chunks []string
		for i := 0; i < len(streamSample); i++ {
			chunks = append(chunks, streamSample[i:i+1])
		}
		assert.Equal(t, whole, feedAll(f, chunks...))
	})

	t.Run("fixed width chunks", func(t *testing.T) {
		for _, width := range []int{2, 3, 7, 16, 64} {
			var chunks []string
			for i := 0; i < len(streamSample); i += width {
				chunks = append(chunks, streamSample[i:min(i+width, len(streamSample))])
			}
			assert.Equal(t, whole, feedAll(NewConservativeFilter(streamPrompt), chunks...), "width %d", width)
		}
	})
}

func TestConservativeFilter_EmitsPartialTokens(t *testing.T) {
	f := NewConservativeFilter("Count")
	assert.Equal(t, "", f.Feed("Loading model...\n> Count\n"))
	assert.Equal(t, "One", f.Feed("One"))
	assert.Equal(t, ", two", f.Feed(", two"))
	assert.Equal(t, "\n", f.Feed("\n"))
	assert.Equal(t, "", f.Feed("Exi"), "possible trailer is held")
	assert.Equal(t, "Exit signs", f.Feed("t signs"))
	assert.Equal(t, "", f.Flush())
}

func TestConservativeFilter_HoldsPromptPrefix(t *testing.T) {
	f := NewConservativeFilter("Hello world")
	assert.Equal(t, "", f.Feed("> Hello"))
	assert.Equal(t, "", f.Feed(" world\n"))
	assert.True(t, f.PromptSeen())
	assert.Equal(t, "Hi", f.Feed("Hi"))
}

func TestConservativeFilter_NoPromptEcho(t *testing.T) {
	f := NewConservativeFilter("What is Go?")
	got := feedAll(f, "\n\nGo is a language.\n\nIt is compiled.")
	assert.Equal(t, "Go is a language.\n\nIt is compiled.", got)
	assert.False(t, f.PromptSeen())
}

func TestConservativeFilter_PromptLineOnlyBeforeContent(t *testing.T) {
	f := NewConservativeFilter("echo")
	got := feedAll(f, "first\necho\n")
	assert.Equal(t, "first\necho\n", got)
}

func TestConservativeFilter_SplitRune(t *testing.T) {
	f := NewConservativeFilter("p")
	glyph := "é"
	assert.Equal(t, "", f.Feed("caf"+glyph[:1]), "undecided line ending mid-rune is held")
	assert.Equal(t, "café!", f.Feed(glyph[1:]+"!"))
	assert.Equal(t, " caf", f.Feed(" caf"))
	assert.Equal(t, "", f.Feed(glyph[:1]), "content is not split inside a rune")
	assert.Equal(t, glyph, f.Feed(glyph[1:]))
}

func TestConservativeFilter_Reset(t *testing.T) {
	f := NewConservativeFilter(streamPrompt)
	_ = feedAll(f, streamSample)
	f.Reset()
	assert.False(t, f.PromptSeen())
	assert.False(t, f.ContentFound())
	assert.Equal(t, streamWant, feedAll(f, streamSample))
}

func TestStateFilter(t *testing.T) {
	t.Run("banner then prompt then content", func(t *testing.T) {
		f := NewStateFilter(streamPrompt)
		assert.Equal(t, "", f.Feed(sampleBanner))
		assert.Equal(t, PhaseBanner, f.Phase())
		assert.Equal(t, "", f.Feed("> Hello\n"))
		assert.Equal(t, PhaseContent, f.Phase())
		assert.Equal(t, "Hi\n\n", f.Feed("Hi\n\n"))
	})

	t.Run("missed prompt transition keeps the line", func(t *testing.T) {
		f := NewStateFilter("Question")
		assert.Equal(t, "Answer\n", f.Feed("Loading model...\nAnswer\n"))
		assert.Equal(t, PhaseContent, f.Phase())
	})

	t.Run("bare prompt echo", func(t *testing.T) {
		f := NewStateFilter("Question")
		assert.Equal(t, "Answer\n", f.Feed("Question\nAnswer\n"))
	})

	t.Run("partial line is buffered", func(t *testing.T) {
		f := NewStateFilter("Q")
		assert.Equal(t, "", f.Feed("> Q\nAns"))
		assert.Equal(t, "Answer\n", f.Feed("wer\n"))
		assert.Equal(t, "", f.Feed("tail"))
		assert.Equal(t, "tail", f.Flush())
	})

	t.Run("content passes banner-looking lines", func(t *testing.T) {
		f := NewStateFilter("Q")
		assert.Equal(t, "A\nExiting...\n", f.Feed("> Q\nA\nExiting...\n"))
	})

	t.Run("split invariant", func(t *testing.T) {
		whole := feedAll(NewStateFilter(streamPrompt), streamSample)
		for i := 0; i <= len(streamSample); i++ {
			got := feedAll(NewStateFilter(streamPrompt), streamSample[:i], streamSample[i:])
			require.Equal(t, whole, got, "split at byte %d", i)
		}
	})

	t.Run("reset", func(t *testing.T) {
		f := NewStateFilter("Q")
		f.Feed("> Q\nA")
		f.Reset()
		assert.Equal(t, PhaseBanner, f.Phase())
		assert.Equal(t, "", f.Flush())
	})
}

func TestNewStreamFilter(t *testing.T) {
	f, err := NewStreamFilter("", "p")
	require.NoError(t, err)
	assert.IsType(t, &ConservativeFilter{}, f)

	f, err = NewStreamFilter(FilterState, "p")
	require.NoError(t, err)
	assert.IsType(t, &StateFilter{}, f)

	_, err = NewStreamFilter("fancy", "p")
	assert.Error(t, err)
}
