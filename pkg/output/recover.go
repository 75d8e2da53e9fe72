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
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// promptSuffixRunes is the length of the prompt tail searched for when
	// the echo of a long prompt is mangled.
	promptSuffixRunes = 30

	// commandListMarker is the last entry of the interactive help block.
	commandListMarker = "/read               add a text file"
)

var (
	artifacts = []string{
		"Exiting...",
		"Loading model...",
		"available commands:",
	}

	statsPattern = regexp.MustCompile(`\[ Prompt: .* \| Generation: .* \]`)
)

// Recover extracts the generated text from a complete capture of stdout.
//
// The text after the last echo of prompt is preferred. Failing that, the
// text after the last echo of the prompt's final 30 characters is used for
// long prompts, and otherwise chrome lines are removed heuristically. Known
// artifacts and the performance summary are always stripped.
func Recover(stdout, prompt string) string {
	text := strings.TrimSpace(stdout)

	exact := false
	if prompt != "" {
		if i := strings.LastIndex(text, prompt); i >= 0 {
			text = text[i+len(prompt):]
			exact = true
		}
	}

	if !exact {
		if suffix, ok := promptSuffix(prompt); ok && strings.Contains(text, suffix) {
			text = text[strings.LastIndex(text, suffix)+len(suffix):]
		} else {
			text = dropChrome(text)
		}
	}

	for _, a := range artifacts {
		text = strings.ReplaceAll(text, a, "")
	}
	text = statsPattern.ReplaceAllString(text, "")

	if !exact {
		text = dropBannerLines(text)
	}

	return strings.TrimSpace(text)
}

// promptSuffix returns the last promptSuffixRunes runes of prompt when the
// prompt is longer than that.
func promptSuffix(prompt string) (string, bool) {
	n := utf8.RuneCountInString(prompt)
	if n <= promptSuffixRunes {
		return "", false
	}
	i := len(prompt)
	for k := 0; k < promptSuffixRunes; k++ {
		_, size := utf8.DecodeLastRuneInString(prompt[:i])
		i -= size
	}
	return prompt[i:], true
}

// dropChrome removes the interactive help block, blank lines, prompt echo
// lines, truncation notices and build/model header lines.
func dropChrome(text string) string {
	if i := strings.Index(text, commandListMarker); i >= 0 {
		text = text[i+len(commandListMarker):]
	}

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		switch {
		case strings.TrimSpace(line) == "":
		case strings.HasPrefix(line, ">"), strings.HasPrefix(line, " >"):
		case strings.Contains(line, "(truncated)"):
		case strings.Contains(line, "build :") && strings.Contains(line, "model :"):
		default:
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// dropBannerLines removes lines that still look like banner output.
func dropBannerLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		switch {
		case strings.Contains(line, "build") && strings.Contains(line, "commit"):
		case strings.Contains(line, "model") && strings.Contains(line, "size"):
		case strings.Contains(line, "available commands:"):
		default:
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
