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
	"fmt"
	"strings"
	"unicode/utf8"
)

// Stream filter kinds accepted by NewStreamFilter.
const (
	FilterConservative = "conservative"
	FilterState        = "state"
)

// StreamFilter removes CLI chrome from stdout as it arrives.
//
// Feed accepts chunks split at arbitrary byte positions and returns the part
// that is safe to surface now. Flush returns whatever was held back once the
// stream has ended. Reset prepares the filter for a new stream.
type StreamFilter interface {
	Feed(chunk string) string
	Flush() string
	Reset()
}

// NewStreamFilter builds a filter of the given kind for prompt. The empty
// kind selects the conservative filter.
func NewStreamFilter(kind, prompt string) (StreamFilter, error) {
	switch kind {
	case "", FilterConservative:
		return NewConservativeFilter(prompt), nil
	case FilterState:
		return NewStateFilter(prompt), nil
	default:
		return nil, fmt.Errorf("unknown stream filter %q (valid: %s, %s)", kind, FilterConservative, FilterState)
	}
}

// promptTargets are the trimmed forms an echoed prompt line can take.
func promptTargets(prompt string) []string {
	p := strings.TrimSpace(prompt)
	if p == "" {
		return nil
	}
	return []string{p, "> " + p}
}

// ConservativeFilter drops banner lines, blank lines before the first real
// line and the echoed prompt line. Once content has started only trailer
// chrome is dropped; everything else passes through verbatim.
//
// An incomplete line is held back only while it could still become a line
// that would be dropped. Any other partial line is emitted immediately, so
// generated tokens surface without waiting for a newline. The concatenated
// output does not depend on how the stream was chunked.
type ConservativeFilter struct {
	targets []string

	carry        string
	midLine      bool
	promptSeen   bool
	contentFound bool
}

var _ StreamFilter = (*ConservativeFilter)(nil)

func NewConservativeFilter(prompt string) *ConservativeFilter {
	return &ConservativeFilter{targets: promptTargets(prompt)}
}

func (f *ConservativeFilter) Reset() {
	f.carry = ""
	f.midLine = false
	f.promptSeen = false
	f.contentFound = false
}

// PromptSeen reports whether the echoed prompt line has been consumed.
func (f *ConservativeFilter) PromptSeen() bool { return f.promptSeen }

// ContentFound reports whether real content has started.
func (f *ConservativeFilter) ContentFound() bool { return f.contentFound }

func (f *ConservativeFilter) Feed(chunk string) string {
	buf := f.carry + chunk
	f.carry = ""

	var out strings.Builder
	for {
		i := strings.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := buf[:i]
		buf = buf[i+1:]

		if f.midLine {
			// The start of this line was already emitted as content.
			f.midLine = false
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		if f.keep(line) {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}

	switch {
	case buf == "":
	case f.midLine:
		cut := completeRunes(buf)
		out.WriteString(buf[:cut])
		f.carry = buf[cut:]
	case f.undecided(buf):
		f.carry = buf
	default:
		f.contentFound = true
		f.midLine = true
		out.WriteString(buf)
	}
	return out.String()
}

func (f *ConservativeFilter) Flush() string {
	rest := f.carry
	midLine := f.midLine
	f.carry = ""
	f.midLine = false
	if rest == "" {
		return ""
	}
	if midLine || f.keep(rest) {
		return rest
	}
	return ""
}

// keep classifies a complete line and updates the state.
func (f *ConservativeFilter) keep(line string) bool {
	if f.contentFound {
		return !isTrailer(line)
	}
	if IsBanner(line) {
		return false
	}
	if strings.TrimSpace(line) == "" {
		return false
	}
	if !f.promptSeen && f.isPromptLine(line) {
		f.promptSeen = true
		return false
	}
	f.contentFound = true
	return true
}

// undecided reports whether a partial line could still be dropped by keep.
func (f *ConservativeFilter) undecided(partial string) bool {
	if completeRunes(partial) < len(partial) {
		return true
	}
	if f.contentFound {
		return mayBeBanner(partial, true)
	}
	if strings.TrimSpace(partial) == "" || mayBeBanner(partial, false) {
		return true
	}
	return !f.promptSeen && f.mayBePromptLine(partial)
}

func (f *ConservativeFilter) isPromptLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, t := range f.targets {
		if trimmed == t {
			return true
		}
	}
	return false
}

func (f *ConservativeFilter) mayBePromptLine(partial string) bool {
	trimmed := strings.TrimSpace(partial)
	for _, t := range f.targets {
		if strings.HasPrefix(t, trimmed) {
			return true
		}
	}
	return false
}

// completeRunes returns the length of the longest prefix of s that does not
// end inside a multi-byte UTF-8 sequence.
func completeRunes(s string) int {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if utf8.FullRuneInString(s[i:]) {
				return len(s)
			}
			return i
		}
	}
	return len(s)
}

// Phase is the position of a StateFilter in the output.
type Phase int

const (
	PhaseBanner Phase = iota
	PhasePrompt
	PhaseContent
)

func (p Phase) String() string {
	switch p {
	case PhaseBanner:
		return "banner"
	case PhasePrompt:
		return "prompt"
	case PhaseContent:
		return "content"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// StateFilter walks banner, prompt and content phases. Banner lines are
// dropped until the first other line, which is checked against the prompt;
// a prompt echo is dropped and anything else is treated as content. In the
// content phase every line passes unchanged. Incomplete lines are held until
// their newline arrives.
type StateFilter struct {
	prompt string
	phase  Phase
	carry  string
}

var _ StreamFilter = (*StateFilter)(nil)

func NewStateFilter(prompt string) *StateFilter {
	return &StateFilter{prompt: strings.TrimSpace(prompt)}
}

func (f *StateFilter) Reset() {
	f.phase = PhaseBanner
	f.carry = ""
}

// Phase returns the current phase.
func (f *StateFilter) Phase() Phase { return f.phase }

func (f *StateFilter) Feed(chunk string) string {
	buf := f.carry + chunk
	f.carry = ""

	var out strings.Builder
	for {
		i := strings.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := buf[:i]
		buf = buf[i+1:]
		if f.pass(line) {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}
	f.carry = buf
	return out.String()
}

func (f *StateFilter) Flush() string {
	rest := f.carry
	f.carry = ""
	if rest != "" && f.pass(rest) {
		return rest
	}
	return ""
}

func (f *StateFilter) pass(line string) bool {
	if strings.TrimSpace(line) == "" {
		return f.phase == PhaseContent
	}

	switch f.phase {
	case PhaseBanner:
		if IsBanner(line) {
			return false
		}
		f.phase = PhasePrompt
		fallthrough
	case PhasePrompt:
		f.phase = PhaseContent
		if f.isPromptLine(line) {
			return false
		}
		return true
	default:
		return true
	}
}

func (f *StateFilter) isPromptLine(line string) bool {
	if rest, ok := strings.CutPrefix(line, "> "); ok && strings.TrimSpace(rest) == f.prompt {
		return true
	}
	return strings.TrimSpace(line) == f.prompt
}
