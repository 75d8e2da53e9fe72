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

// Package llama drives the llama.cpp command-line binaries to generate text,
// stream tokens, compute embeddings and score query/document pairs.
//
// A Transport owns one process.Supervisor, so at most one llama.cpp child is
// live per Transport. Options are validated before anything is spawned. The
// Llama, Embedding and Reranker types are thin facades over a Transport.
package llama

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/llamacli/pkg/observability"
	"github.com/kadirpekel/llamacli/pkg/options"
	"github.com/kadirpekel/llamacli/pkg/output"
	"github.com/kadirpekel/llamacli/pkg/process"
)

const (
	DefaultTimeout       = 60 * time.Second
	DefaultStreamTimeout = 300 * time.Second

	// EmbeddingBinaryName is looked up next to the configured binary.
	EmbeddingBinaryName = "llama-embedding"

	tracerName = "github.com/kadirpekel/llamacli/pkg/llama"
)

// fixedGenerateFlags turn llama-cli into a one-shot, non-interactive run.
var fixedGenerateFlags = []string{"--no-display-prompt", "--simple-io", "--single-turn", "--color", "off"}

// Config configures a Transport.
type Config struct {
	// BinaryPath is the llama-cli executable.
	BinaryPath string

	// ModelPath is the GGUF model passed with -m.
	ModelPath string

	// EmbeddingBinary overrides the binary used for embedding and
	// reranking. When empty, llama-embedding next to BinaryPath is used if
	// present and executable, else BinaryPath.
	EmbeddingBinary string

	// Timeout applies to generate, embed and rerank when the options
	// carry none. Default: 60s.
	Timeout time.Duration

	// StreamTimeout applies to streaming when the options carry none.
	// Default: 300s.
	StreamTimeout time.Duration

	// PollInterval is the supervisor poll interval. Default: 100ms.
	PollInterval time.Duration

	// StreamFilter selects the streaming filter ("conservative" or "state").
	StreamFilter string

	// ExitPolicy applies to generate and stream runs.
	ExitPolicy process.ExitPolicy

	Logger *slog.Logger
}

// Transport runs llama.cpp subprocesses for one model.
type Transport struct {
	cfg    Config
	sup    *process.Supervisor
	logger *slog.Logger
	closed atomic.Bool
}

// NewTransport checks that the binary and model exist and builds a Transport.
func NewTransport(cfg Config) (*Transport, error) {
	if err := checkExecutable(cfg.BinaryPath); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w at: %s", ErrModelNotFound, cfg.ModelPath)
	}
	if cfg.EmbeddingBinary != "" {
		if err := checkExecutable(cfg.EmbeddingBinary); err != nil {
			return nil, err
		}
	}
	if _, err := output.NewStreamFilter(cfg.StreamFilter, ""); err != nil {
		return nil, err
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = process.DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Transport{
		cfg:    cfg,
		sup:    &process.Supervisor{PollInterval: cfg.PollInterval, Logger: logger},
		logger: logger,
	}, nil
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w at: %s", ErrBinaryNotFound, path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s", ErrBinaryNotExec, path)
	}
	return nil
}

func isExecutable(path string) bool {
	return checkExecutable(path) == nil
}

// ModelPath returns the model this transport runs.
func (t *Transport) ModelPath() string {
	return t.cfg.ModelPath
}

// Running reports whether a child is live.
func (t *Transport) Running() bool {
	return t.sup.Running()
}

// Cancel hard-kills the live child. It fails with process.ErrNotRunning when
// nothing is running.
func (t *Transport) Cancel() error {
	return t.sup.Cancel()
}

// Close kills any live child and makes further calls fail with ErrClosed.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	if t.sup.Running() {
		if err := t.sup.Cancel(); err != nil && !errors.Is(err, process.ErrNotRunning) {
			return err
		}
	}
	return nil
}

// begin runs the checks every operation starts with: closed, busy, then
// option validation. None of them spawns a process.
func (t *Transport) begin(schema options.Schema, opts options.Options) (options.Options, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if t.sup.Running() {
		return nil, process.ErrBusy
	}
	return options.Validate(schema, opts)
}

func (t *Transport) startSpan(ctx context.Context, name, mode string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String(observability.AttrMode, mode),
		attribute.String(observability.AttrModel, filepath.Base(t.cfg.ModelPath)),
	)
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func (t *Transport) generateArgv(prompt string, opts options.Options) []string {
	argv := []string{t.cfg.BinaryPath, "-m", t.cfg.ModelPath, "-p", prompt, "--log-disable"}
	argv = append(argv, options.Args(options.GenerateSchema, opts)...)
	argv = append(argv, fixedGenerateFlags...)
	argv = append(argv, options.StopArgs(opts)...)
	return argv
}

// Generate runs a single completion and returns the recovered text.
func (t *Transport) Generate(ctx context.Context, prompt string, opts options.Options) (string, error) {
	normalized, err := t.begin(options.GenerateSchema, opts)
	if err != nil {
		return "", err
	}

	ctx, span := t.startSpan(ctx, observability.SpanGenerate, "generate",
		attribute.Int(observability.AttrPromptChars, len(prompt)))
	defer span.End()

	t.logger.Debug("Starting text generation", "prompt_length", len(prompt), "options", optionKeys(normalized))

	out, err := t.sup.Run(ctx, process.Request{
		Label:   "generate",
		Argv:    t.generateArgv(prompt, normalized),
		Timeout: options.Timeout(normalized, t.cfg.Timeout),
		Policy:  t.cfg.ExitPolicy,
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	result := output.Recover(string(out.Stdout), prompt)
	span.SetAttributes(attribute.Int(observability.AttrResultSize, len(result)))
	t.logger.Debug("Text generation completed", "run_id", out.RunID, "result_length", len(result))
	return result, nil
}

// Stream starts a streaming completion. Validation and the busy check happen
// before Stream returns; the child is spawned when the sequence is ranged
// over. Each element is a filtered fragment of output. Breaking out of the
// loop kills the child. A run failure is yielded as the final element. The
// sequence can be ranged over once; later attempts yield ErrStreamConsumed.
func (t *Transport) Stream(ctx context.Context, prompt string, opts options.Options) (iter.Seq2[string, error], error) {
	normalized, err := t.begin(options.GenerateSchema, opts)
	if err != nil {
		return nil, err
	}
	filter, err := output.NewStreamFilter(t.cfg.StreamFilter, prompt)
	if err != nil {
		return nil, err
	}

	argv := t.generateArgv(prompt, normalized)
	timeout := options.Timeout(normalized, t.cfg.StreamTimeout)
	var consumed atomic.Bool

	return func(yield func(string, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield("", ErrStreamConsumed)
			return
		}

		ctx, span := t.startSpan(ctx, observability.SpanStream, "stream",
			attribute.Int(observability.AttrPromptChars, len(prompt)))
		defer span.End()

		metrics := observability.GetGlobalMetrics()
		filter.Reset()
		stopped := false
		emitted := 0
		emit := func(s string) bool {
			if stopped {
				return false
			}
			if s == "" {
				return true
			}
			metrics.RecordStreamChunk(ctx, "stream", len(s))
			emitted += len(s)
			if !yield(s, nil) {
				stopped = true
			}
			return !stopped
		}

		t.logger.Debug("Starting streaming text generation", "prompt_length", len(prompt), "options", optionKeys(normalized))

		out, err := t.sup.Run(ctx, process.Request{
			Label:   "stream",
			Argv:    argv,
			Timeout: timeout,
			Policy:  t.cfg.ExitPolicy,
			OnChunk: func(chunk []byte) bool {
				return emit(filter.Feed(string(chunk)))
			},
		})
		if stopped {
			t.logger.Debug("Stream consumer stopped early", "emitted", emitted)
			return
		}
		if !emit(filter.Flush()) {
			return
		}

		if out != nil {
			// Already streamed; recovered only for diagnostics.
			recovered := output.Recover(string(out.Stdout), prompt)
			t.logger.Debug("Streaming generation completed",
				"run_id", out.RunID, "emitted", emitted, "result_length", len(recovered))
		}
		span.SetAttributes(attribute.Int(observability.AttrResultSize, emitted))
		if err != nil {
			span.RecordError(err)
			yield("", err)
		}
	}, nil
}

func optionKeys(opts options.Options) []string {
	return slices.Sorted(maps.Keys(opts))
}
