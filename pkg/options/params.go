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
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Params is the typed view of a normalized option map. Pointer fields are nil
// when the option was not supplied.
type Params struct {
	MaxTokens       *int     `mapstructure:"max_tokens" json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" jsonschema:"minimum=1"`
	Temperature     *float64 `mapstructure:"temperature" json:"temperature,omitempty" yaml:"temperature,omitempty" jsonschema:"minimum=0"`
	TopP            *float64 `mapstructure:"top_p" json:"top_p,omitempty" yaml:"top_p,omitempty" jsonschema:"minimum=0,maximum=1"`
	RepeatPenalty   *float64 `mapstructure:"repeat_penalty" json:"repeat_penalty,omitempty" yaml:"repeat_penalty,omitempty" jsonschema:"minimum=0"`
	CtxSize         *int     `mapstructure:"ctx_size" json:"ctx_size,omitempty" yaml:"ctx_size,omitempty" jsonschema:"minimum=1"`
	Timeout         *int     `mapstructure:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty" jsonschema:"minimum=1"`
	Threads         *int     `mapstructure:"threads" json:"threads,omitempty" yaml:"threads,omitempty" jsonschema:"minimum=1"`
	Seed            *int     `mapstructure:"seed" json:"seed,omitempty" yaml:"seed,omitempty" jsonschema:"minimum=0"`
	BatchSize       *int     `mapstructure:"batch_size" json:"batch_size,omitempty" yaml:"batch_size,omitempty" jsonschema:"minimum=1"`
	NGPULayers      *int     `mapstructure:"n_gpu_layers" json:"n_gpu_layers,omitempty" yaml:"n_gpu_layers,omitempty" jsonschema:"minimum=0"`
	Keep            *int     `mapstructure:"keep" json:"keep,omitempty" yaml:"keep,omitempty" jsonschema:"minimum=0"`
	TopK            *int     `mapstructure:"top_k" json:"top_k,omitempty" yaml:"top_k,omitempty" jsonschema:"minimum=1"`
	ReasoningBudget *int     `mapstructure:"reasoning_budget" json:"reasoning_budget,omitempty" yaml:"reasoning_budget,omitempty" jsonschema:"minimum=-1"`
	ReasoningFormat *string  `mapstructure:"reasoning_format" json:"reasoning_format,omitempty" yaml:"reasoning_format,omitempty"`
	Grammar         *string  `mapstructure:"grammar" json:"grammar,omitempty" yaml:"grammar,omitempty"`
	JSONSchema      *string  `mapstructure:"json_schema" json:"json_schema,omitempty" yaml:"json_schema,omitempty"`
	Stop            []string `mapstructure:"stop" json:"stop,omitempty" yaml:"stop,omitempty"`
	ClsSeparator    *string  `mapstructure:"cls_separator" json:"cls_separator,omitempty" yaml:"cls_separator,omitempty"`
}

// Decode converts a normalized option map into Params.
func Decode(opts Options) (Params, error) {
	var p Params
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &p,
		ErrorUnused: true,
	})
	if err != nil {
		return Params{}, fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(opts)); err != nil {
		return Params{}, fmt.Errorf("failed to decode options: %w", err)
	}
	return p, nil
}

// Options converts Params back into an option map holding only the fields
// that are set.
func (p Params) Options() Options {
	opts := Options{}
	setInt := func(name string, v *int) {
		if v != nil {
			opts[name] = *v
		}
	}
	setFloat := func(name string, v *float64) {
		if v != nil {
			opts[name] = *v
		}
	}
	setString := func(name string, v *string) {
		if v != nil {
			opts[name] = *v
		}
	}
	setInt("max_tokens", p.MaxTokens)
	setFloat("temperature", p.Temperature)
	setFloat("top_p", p.TopP)
	setFloat("repeat_penalty", p.RepeatPenalty)
	setInt("ctx_size", p.CtxSize)
	setInt("timeout", p.Timeout)
	setInt("threads", p.Threads)
	setInt("seed", p.Seed)
	setInt("batch_size", p.BatchSize)
	setInt("n_gpu_layers", p.NGPULayers)
	setInt("keep", p.Keep)
	setInt("top_k", p.TopK)
	setInt("reasoning_budget", p.ReasoningBudget)
	setString("reasoning_format", p.ReasoningFormat)
	setString("grammar", p.Grammar)
	setString("json_schema", p.JSONSchema)
	setString("cls_separator", p.ClsSeparator)
	if p.Stop != nil {
		opts["stop"] = append([]string(nil), p.Stop...)
	}
	return opts
}

// Separator returns the rerank prompt separator, a tab unless overridden.
func (p Params) Separator() string {
	if p.ClsSeparator != nil {
		return *p.ClsSeparator
	}
	return "\t"
}
