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

package llama

import (
	"context"
	"iter"
	"maps"

	"github.com/kadirpekel/llamacli/pkg/options"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts options.Options) (string, error)
	Stream(ctx context.Context, prompt string, opts options.Options) (iter.Seq2[string, error], error)
}

var _ Generator = (*Transport)(nil)

// DefaultGenerateOptions returns the options Llama applies when the caller
// does not set them.
func DefaultGenerateOptions() options.Options {
	return options.Options{
		"max_tokens":     128,
		"temperature":    0.8,
		"top_p":          0.9,
		"repeat_penalty": 1.1,
		"ctx_size":       512,
		"timeout":        60,
	}
}

// Llama generates text with sampling defaults applied.
type Llama struct {
	gen      Generator
	defaults options.Options
}

// NewLlama wraps gen. A nil defaults map means DefaultGenerateOptions.
func NewLlama(gen Generator, defaults options.Options) *Llama {
	if defaults == nil {
		defaults = DefaultGenerateOptions()
	}
	return &Llama{gen: gen, defaults: maps.Clone(defaults)}
}

// Defaults returns a copy of the defaults merged into every call.
func (l *Llama) Defaults() options.Options {
	return maps.Clone(l.defaults)
}

// Generate runs a completion. Caller options override the defaults.
func (l *Llama) Generate(ctx context.Context, prompt string, opts options.Options) (string, error) {
	return l.gen.Generate(ctx, prompt, options.Merge(l.defaults, opts))
}

// Stream runs a streaming completion. The default timeout is not merged so
// the longer stream timeout applies unless the caller sets one.
func (l *Llama) Stream(ctx context.Context, prompt string, opts options.Options) (iter.Seq2[string, error], error) {
	defaults := maps.Clone(l.defaults)
	delete(defaults, "timeout")
	return l.gen.Stream(ctx, prompt, options.Merge(defaults, opts))
}
