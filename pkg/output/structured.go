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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrParse is the sentinel wrapped by every ParseError.
var ErrParse = errors.New("unparseable llama.cpp output")

// snippetRunes bounds the output excerpt carried by a ParseError.
const snippetRunes = 200

// ParseError reports embedding or rerank output that could not be decoded.
type ParseError struct {
	Reason string

	// Output holds the first 200 characters of the trimmed output.
	Output string
}

func (e *ParseError) Error() string {
	if e.Output == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s. Output: %s", e.Reason, e.Output)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

func newParseError(reason, output string) *ParseError {
	return &ParseError{Reason: reason, Output: snippet(output)}
}

func snippet(s string) string {
	if utf8.RuneCountInString(s) <= snippetRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == snippetRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// Result is a decoded embedding vector or a list of rerank scores.
type Result struct {
	Values []float64
}

// Scalar returns the single value when the result holds exactly one.
func (r Result) Scalar() (float64, bool) {
	if len(r.Values) != 1 {
		return 0, false
	}
	return r.Values[0], true
}

// Vector returns the values as a list.
func (r Result) Vector() []float64 {
	return r.Values
}

// First returns the first value, or 0 for an empty result.
func (r Result) First() float64 {
	if len(r.Values) == 0 {
		return 0
	}
	return r.Values[0]
}

// Value returns a float64 for single-value results and []float64 otherwise.
func (r Result) Value() any {
	if v, ok := r.Scalar(); ok {
		return v
	}
	return r.Values
}

// MarshalJSON encodes the result the way Value presents it.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}

var scoreLinePattern = regexp.MustCompile(`rerank score \d+:\s+([-+]?\d*\.\d+)`)

type embeddingEnvelope struct {
	Data []struct {
		Embedding *[]json.Number `json:"embedding"`
	} `json:"data"`
}

// ParseResult decodes embedding or rerank output. JSON of the form
// {"data":[{"embedding":[...]}]} is preferred; output that is not JSON is
// scanned for "rerank score N: X" lines.
func ParseResult(stdout string) (Result, error) {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return Result{}, newParseError("llama.cpp output is empty", "")
	}

	if json.Valid([]byte(trimmed)) {
		return parseJSON(trimmed)
	}
	return parseScoreLines(trimmed)
}

func parseJSON(trimmed string) (Result, error) {
	var env embeddingEnvelope
	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return Result{}, newParseError(fmt.Sprintf("invalid embedding JSON structure: %v", err), trimmed)
	}
	if len(env.Data) == 0 || env.Data[0].Embedding == nil {
		return Result{}, newParseError("invalid embedding JSON structure: missing embedding array", trimmed)
	}

	raw := *env.Data[0].Embedding
	if len(raw) == 0 {
		return Result{}, newParseError("embedding array is empty", trimmed)
	}
	values := make([]float64, len(raw))
	for i, n := range raw {
		f, err := n.Float64()
		if err != nil {
			return Result{}, newParseError(fmt.Sprintf("embedding value %d is not a number", i), trimmed)
		}
		values[i] = f
	}
	return Result{Values: values}, nil
}

func parseScoreLines(trimmed string) (Result, error) {
	var values []float64
	for _, line := range strings.Split(trimmed, "\n") {
		m := scoreLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return Result{}, newParseError("could not parse llama.cpp output", trimmed)
	}
	return Result{Values: values}, nil
}
