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

package options

import (
	"strconv"
	"time"
)

// DefaultStopSequences are passed as reverse prompts when the caller does not
// supply a stop option.
var DefaultStopSequences = []string{
	"<|im_end|>",
	"<|endoftext|>",
	"User:",
	"\nUser:",
	"\n> ",
}

// Args renders the flags for every present option that maps to one, in
// schema order. List options are rendered by StopArgs.
func Args(schema Schema, opts Options) []string {
	var args []string
	for _, rule := range schema.Rules {
		if rule.Flag == "" || rule.Kind == KindStrings {
			continue
		}
		v, ok := opts[rule.Name]
		if !ok || v == nil {
			continue
		}
		args = append(args, rule.Flag, formatValue(v))
	}
	return args
}

// StopArgs renders one -r flag per stop sequence. An explicit stop option,
// even an empty one, replaces DefaultStopSequences.
func StopArgs(opts Options) []string {
	stops := DefaultStopSequences
	if raw, ok := opts["stop"]; ok && raw != nil {
		if list, ok := asStrings(raw); ok {
			stops = list
		}
	}
	args := make([]string, 0, len(stops)*2)
	for _, s := range stops {
		args = append(args, "-r", s)
	}
	return args
}

// Timeout returns the timeout option as a duration, or fallback when the
// option is absent.
func Timeout(opts Options, fallback time.Duration) time.Duration {
	raw, ok := opts["timeout"]
	if !ok || raw == nil {
		return fallback
	}
	n, ok := asInt(raw)
	if !ok || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		if n, ok := asInt(v); ok {
			return strconv.Itoa(n)
		}
		if f, ok := asFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return ""
	}
}
