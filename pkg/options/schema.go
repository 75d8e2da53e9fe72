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

// Package options declares the per-mode option schemas accepted by the
// llama.cpp binaries, validates caller supplied option maps against them and
// translates validated options into command-line flags.
//
// Validation is pure and always happens before any subprocess is spawned:
// a rejected option never results in process creation.
package options

import (
	"fmt"
	"sort"
)

// Mode identifies which binary invocation an option map is meant for.
type Mode string

const (
	ModeGenerate Mode = "generate"
	ModeEmbed    Mode = "embed"
	ModeRerank   Mode = "rerank"
)

// Kind is the declared value type of an option.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindStrings
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindStrings:
		return "string list"
	default:
		return "unknown"
	}
}

// Options is a caller supplied option map, usually decoded from JSON, YAML
// or command-line flags.
type Options map[string]any

// Rule declares one accepted option.
type Rule struct {
	// Name is the option key, e.g. "max_tokens".
	Name string

	// Kind is the accepted value type.
	Kind Kind

	// Min and Max bound numeric values (inclusive). Nil means unbounded.
	Min *float64
	Max *float64

	// Flag is the command-line flag the option translates to.
	// Empty means the option is consumed by the transport itself.
	Flag string

	// Constraint completes the error message "<name> <constraint>".
	Constraint string
}

// Schema is the ordered whitelist of options for one mode.
// Rule order is the order flags appear on the command line.
type Schema struct {
	Mode  Mode
	Rules []Rule
}

// Rule looks up the rule for an option name.
func (s Schema) Rule(name string) (Rule, bool) {
	for _, r := range s.Rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

// Names returns the accepted option names, sorted.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s.Rules))
	for _, r := range s.Rules {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

func bound(v float64) *float64 {
	return &v
}

var (
	ruleTimeout      = Rule{Name: "timeout", Kind: KindInt, Min: bound(1), Constraint: "must be a positive integer"}
	ruleThreads      = Rule{Name: "threads", Kind: KindInt, Min: bound(1), Flag: "--threads", Constraint: "must be a positive integer"}
	ruleBatchSize    = Rule{Name: "batch_size", Kind: KindInt, Min: bound(1), Flag: "--batch-size", Constraint: "must be a positive integer"}
	ruleGPULayers    = Rule{Name: "n_gpu_layers", Kind: KindInt, Min: bound(0), Flag: "--n-gpu-layers", Constraint: "must be a non-negative integer"}
	ruleCtxSize      = Rule{Name: "ctx_size", Kind: KindInt, Min: bound(1), Flag: "-c", Constraint: "must be a positive integer"}
	ruleCLSSeparator = Rule{Name: "cls_separator", Kind: KindString, Constraint: "must be a string"}
)

// GenerateSchema covers text generation and streaming.
var GenerateSchema = Schema{
	Mode: ModeGenerate,
	Rules: []Rule{
		{Name: "max_tokens", Kind: KindInt, Min: bound(1), Flag: "-n", Constraint: "must be a positive integer"},
		{Name: "temperature", Kind: KindFloat, Min: bound(0), Flag: "--temp", Constraint: "must be a non-negative number"},
		{Name: "top_p", Kind: KindFloat, Min: bound(0), Max: bound(1), Flag: "--top-p", Constraint: "must be between 0 and 1"},
		{Name: "repeat_penalty", Kind: KindFloat, Min: bound(0), Flag: "--repeat-penalty", Constraint: "must be a non-negative number"},
		ruleCtxSize,
		ruleThreads,
		{Name: "seed", Kind: KindInt, Min: bound(0), Flag: "--seed", Constraint: "must be a non-negative integer"},
		ruleBatchSize,
		ruleGPULayers,
		{Name: "keep", Kind: KindInt, Min: bound(0), Flag: "--keep", Constraint: "must be a non-negative integer"},
		{Name: "top_k", Kind: KindInt, Min: bound(1), Flag: "--top-k", Constraint: "must be a positive integer"},
		{Name: "reasoning_budget", Kind: KindInt, Min: bound(-1), Flag: "--reasoning-budget", Constraint: "must be an integer >= -1 (-1 for unlimited, 0 to disable)"},
		{Name: "reasoning_format", Kind: KindString, Flag: "--reasoning-format", Constraint: "must be a string (e.g., 'deepseek')"},
		{Name: "grammar", Kind: KindString, Flag: "--grammar", Constraint: "must be a string path"},
		{Name: "json_schema", Kind: KindString, Flag: "-j", Constraint: "must be a string"},
		ruleTimeout,
		{Name: "stop", Kind: KindStrings, Flag: "-r", Constraint: "must be an array of strings"},
	},
}

// EmbedSchema covers embedding invocations.
var EmbedSchema = Schema{
	Mode:  ModeEmbed,
	Rules: embeddingRules(),
}

// RerankSchema covers reranking invocations. It accepts the same options as
// EmbedSchema; cls_separator only has an effect when reranking.
var RerankSchema = Schema{
	Mode:  ModeRerank,
	Rules: embeddingRules(),
}

func embeddingRules() []Rule {
	return []Rule{
		ruleThreads,
		ruleBatchSize,
		ruleGPULayers,
		ruleCtxSize,
		ruleTimeout,
		ruleCLSSeparator,
	}
}

// SchemaFor returns the schema registered for mode.
func SchemaFor(mode Mode) (Schema, error) {
	switch mode {
	case ModeGenerate:
		return GenerateSchema, nil
	case ModeEmbed:
		return EmbedSchema, nil
	case ModeRerank:
		return RerankSchema, nil
	default:
		return Schema{}, fmt.Errorf("unsupported mode: %s (supported: generate, embed, rerank)", mode)
	}
}
