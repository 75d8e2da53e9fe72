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

// Package config loads the llamacli configuration file.
//
// Example:
//
//	binary: ${LLAMA_CLI:-/opt/llama.cpp/build/bin/llama-cli}
//	models_dir: ./models
//	timeout: 60
//	stream_filter: conservative
//	defaults:
//	  temperature: 0.7
//	  max_tokens: 256
//	logger:
//	  level: info
package config

import (
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/kadirpekel/llamacli/pkg/llama"
	"github.com/kadirpekel/llamacli/pkg/models"
	"github.com/kadirpekel/llamacli/pkg/observability"
	"github.com/kadirpekel/llamacli/pkg/options"
	"github.com/kadirpekel/llamacli/pkg/output"
	"github.com/kadirpekel/llamacli/pkg/process"
)

// Config is the root configuration.
type Config struct {
	// Binary is the llama-cli executable. Discovered when empty.
	Binary string `yaml:"binary,omitempty" json:"binary,omitempty"`

	// EmbeddingBinary overrides the binary used for embed and rerank.
	// Default: llama-embedding next to Binary, else Binary.
	EmbeddingBinary string `yaml:"embedding_binary,omitempty" json:"embedding_binary,omitempty"`

	// Model is the generation model. Picked from ModelsDir when empty.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// EmbeddingModel is used by embed. Default: detected from ModelsDir,
	// else Model.
	EmbeddingModel string `yaml:"embedding_model,omitempty" json:"embedding_model,omitempty"`

	// RerankModel is used by rerank. Default: detected from ModelsDir,
	// else EmbeddingModel.
	RerankModel string `yaml:"rerank_model,omitempty" json:"rerank_model,omitempty"`

	// ModelsDir is scanned for *.gguf files.
	ModelsDir string `yaml:"models_dir,omitempty" json:"models_dir,omitempty"`

	// Defaults are generation options merged under every request.
	Defaults map[string]any `yaml:"defaults,omitempty" json:"defaults,omitempty"`

	// Timeout in seconds for generate, embed and rerank.
	// Default: 60
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"minimum=1"`

	// StreamTimeout in seconds for streaming.
	// Default: 300
	StreamTimeout int `yaml:"stream_timeout,omitempty" json:"stream_timeout,omitempty" jsonschema:"minimum=1"`

	// PollIntervalMs is how often a running child is checked.
	// Default: 100
	PollIntervalMs int `yaml:"poll_interval_ms,omitempty" json:"poll_interval_ms,omitempty" jsonschema:"minimum=1"`

	// StreamFilter selects the streaming filter.
	// Values: "conservative" (default), "state"
	StreamFilter string `yaml:"stream_filter,omitempty" json:"stream_filter,omitempty" jsonschema:"enum=conservative,enum=state"`

	// ExitPolicy decides which generation exits count as success.
	// Values: "strict" (default), "tolerate_ambiguous", "tolerate_output"
	ExitPolicy string `yaml:"exit_policy,omitempty" json:"exit_policy,omitempty" jsonschema:"enum=strict,enum=tolerate_ambiguous,enum=tolerate_output"`

	Logger LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty"`

	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = int(llama.DefaultTimeout / time.Second)
	}
	if c.StreamTimeout == 0 {
		c.StreamTimeout = int(llama.DefaultStreamTimeout / time.Second)
	}
	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = int(process.DefaultPollInterval / time.Millisecond)
	}
	if c.StreamFilter == "" {
		c.StreamFilter = output.FilterConservative
	}
	if c.ExitPolicy == "" {
		c.ExitPolicy = process.ExitStrict.String()
	}
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be a positive number of seconds, got %d", c.Timeout)
	}
	if c.StreamTimeout < 1 {
		return fmt.Errorf("stream_timeout must be a positive number of seconds, got %d", c.StreamTimeout)
	}
	if c.PollIntervalMs < 1 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMs)
	}
	if _, err := output.NewStreamFilter(c.StreamFilter, ""); err != nil {
		return err
	}
	if _, err := process.ParseExitPolicy(c.ExitPolicy); err != nil {
		return err
	}
	if _, err := options.Validate(options.GenerateSchema, c.Defaults); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// ResolveModels fills empty model paths from ModelsDir.
func (c *Config) ResolveModels() error {
	if c.ModelsDir == "" {
		if c.EmbeddingModel == "" {
			c.EmbeddingModel = c.Model
		}
		if c.RerankModel == "" {
			c.RerankModel = c.EmbeddingModel
		}
		return nil
	}

	catalog, err := models.Scan(c.ModelsDir)
	if err != nil {
		return err
	}
	pick := func(target *string, choose func() (models.Model, error)) error {
		if *target != "" {
			return nil
		}
		m, err := choose()
		if err != nil {
			return err
		}
		*target = m.Path
		return nil
	}
	if err := pick(&c.Model, catalog.Generation); err != nil {
		return err
	}
	if err := pick(&c.EmbeddingModel, catalog.Embedding); err != nil {
		return err
	}
	return pick(&c.RerankModel, catalog.Reranker)
}

// GenerateDefaults returns the built-in generation defaults overlaid with
// the configured ones.
func (c *Config) GenerateDefaults() options.Options {
	defaults := llama.DefaultGenerateOptions()
	maps.Copy(defaults, c.Defaults)
	return defaults
}

// TransportConfig builds the transport configuration for model.
func (c *Config) TransportConfig(model string, logger *slog.Logger) (llama.Config, error) {
	policy, err := process.ParseExitPolicy(c.ExitPolicy)
	if err != nil {
		return llama.Config{}, err
	}
	return llama.Config{
		BinaryPath:      c.Binary,
		ModelPath:       model,
		EmbeddingBinary: c.EmbeddingBinary,
		Timeout:         time.Duration(c.Timeout) * time.Second,
		StreamTimeout:   time.Duration(c.StreamTimeout) * time.Second,
		PollInterval:    time.Duration(c.PollIntervalMs) * time.Millisecond,
		StreamFilter:    c.StreamFilter,
		ExitPolicy:      policy,
		Logger:          logger,
	}, nil
}
