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

// Package output recovers generated text, embedding vectors and rerank scores
// from the undelimited stdout of the llama.cpp binaries.
//
// The binaries interleave a startup banner, the echoed prompt, interactive
// chrome and the generated text on one stream. Recover handles a complete
// capture, the StreamFilter implementations handle it chunk by chunk and
// ParseResult decodes embedding and rerank output.
package output

import (
	"regexp"
	"strings"
)

// spaceChars are the characters matched by \s.
const spaceChars = " \t\n\f\r"

// BannerRule classifies one kind of banner or interactive chrome line.
type BannerRule struct {
	Name string

	// Pattern matches a complete line belonging to this rule.
	Pattern *regexp.Regexp

	// Trailer marks chrome printed after generation ends. Only trailer
	// rules are applied once real content has started.
	Trailer bool

	// partial reports whether an incomplete line could still turn into a
	// match once more bytes arrive.
	partial func(s string) bool
}

// Matches reports whether line belongs to the rule.
func (r BannerRule) Matches(line string) bool {
	return r.Pattern.MatchString(line)
}

// MayMatch reports whether the incomplete line s, or any extension of it,
// could match the rule.
func (r BannerRule) MayMatch(s string) bool {
	if r.Pattern.MatchString(s) {
		return true
	}
	return r.partial != nil && r.partial(s)
}

// literalRule matches lines starting with lit.
func literalRule(name, lit string, trailer bool) BannerRule {
	return BannerRule{
		Name:    name,
		Pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(lit)),
		Trailer: trailer,
		partial: func(s string) bool { return strings.HasPrefix(lit, s) },
	}
}

// headerRule matches "word :" style header lines.
func headerRule(name, word string) BannerRule {
	return BannerRule{
		Name:    name,
		Pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(word) + `\s*:`),
		partial: func(s string) bool {
			if strings.HasPrefix(word, s) {
				return true
			}
			return strings.HasPrefix(s, word) && strings.Trim(s[len(word):], spaceChars) == ""
		},
	}
}

// commandRule matches the interactive help line for a slash command.
func commandRule(name, cmd string) BannerRule {
	return BannerRule{
		Name:    name,
		Pattern: regexp.MustCompile(`^\s*` + regexp.QuoteMeta(cmd) + `\b`),
		partial: func(s string) bool {
			return strings.HasPrefix(cmd, strings.TrimLeft(s, spaceChars))
		},
	}
}

// BannerRules is the ordered table of banner signatures.
var BannerRules = []BannerRule{
	literalRule("loading", "Loading model...", false),
	headerRule("build", "build"),
	headerRule("model", "model"),
	headerRule("modalities", "modalities"),
	literalRule("commands", "available commands:", false),
	commandRule("exit", "/exit"),
	commandRule("regen", "/regen"),
	commandRule("clear", "/clear"),
	commandRule("read", "/read"),
	literalRule("exiting", "Exiting...", true),
	literalRule("stats", "[ Prompt:", true),
	{
		// Block-element art of the startup logo.
		Name:    "logo",
		Pattern: regexp.MustCompile(`^\s*[\x{2580}-\x{259F}]`),
	},
}

// IsBanner reports whether line matches any banner rule.
func IsBanner(line string) bool {
	return MatchBanner(line) != ""
}

// MatchBanner returns the name of the first rule matching line, or "".
func MatchBanner(line string) string {
	for _, r := range BannerRules {
		if r.Matches(line) {
			return r.Name
		}
	}
	return ""
}

func isTrailer(line string) bool {
	for _, r := range BannerRules {
		if r.Trailer && r.Matches(line) {
			return true
		}
	}
	return false
}

func mayBeBanner(s string, trailersOnly bool) bool {
	for _, r := range BannerRules {
		if trailersOnly && !r.Trailer {
			continue
		}
		if r.MayMatch(s) {
			return true
		}
	}
	return false
}
