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

// Package process supervises a single llama.cpp child process at a time.
//
// A Supervisor owns at most one live child. Run spawns it with stdin on the
// null device, collects stdout and stderr into append-only buffers and polls
// at a fixed interval to hand new stdout bytes to the caller and to enforce a
// wall-clock timeout. Every exit path kills (if needed) and reaps the child
// before Run returns.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/llamacli/pkg/observability"
)

// DefaultPollInterval is how often the poll loop wakes up.
const DefaultPollInterval = 100 * time.Millisecond

const tracerName = "github.com/kadirpekel/llamacli/pkg/process"

// Request describes one child invocation.
type Request struct {
	// Label names the invocation in logs, spans and metrics (e.g. "generate").
	Label string

	// Argv is the full command line; Argv[0] is the binary path.
	Argv []string

	// Env is appended to the current environment.
	Env []string

	// Timeout is the wall-clock budget. Zero disables it.
	Timeout time.Duration

	Policy ExitPolicy

	// OnChunk, if set, receives new stdout bytes once per poll tick and a
	// final time after the child exited. Returning false kills the child.
	OnChunk func(chunk []byte) bool
}

// CapturedOutput is everything a child wrote plus how it ended.
type CapturedOutput struct {
	RunID    string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Supervisor runs llama.cpp children one at a time. The zero value is ready
// to use.
type Supervisor struct {
	PollInterval time.Duration
	Logger       *slog.Logger

	mu   sync.Mutex
	live *handle
}

// NewSupervisor creates a supervisor with the default poll interval.
func NewSupervisor(logger *slog.Logger) *Supervisor {
	return &Supervisor{PollInterval: DefaultPollInterval, Logger: logger}
}

// handle is the live child. cmd is nil until the child has started.
type handle struct {
	runID string

	mu        sync.Mutex
	cmd       *exec.Cmd
	pipes     []io.Closer
	cancelled bool
	killed    bool
}

// attach records the started child. It reports false when Cancel won the
// race and the child must be killed right away.
func (h *handle) attach(cmd *exec.Cmd, pipes ...io.Closer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmd = cmd
	h.pipes = pipes
	return !h.cancelled
}

func (h *handle) kill() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.killLocked()
}

func (h *handle) killLocked() {
	if h.killed || h.cmd == nil || h.cmd.Process == nil {
		return
	}
	h.killed = true
	_ = h.cmd.Process.Kill()
	// Descendants may still hold the write ends; closing our read ends
	// unblocks the pipe readers.
	for _, p := range h.pipes {
		_ = p.Close()
	}
}

func (h *handle) cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled = true
	h.killLocked()
}

func (h *handle) wasCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Supervisor) pollInterval() time.Duration {
	if s.PollInterval > 0 {
		return s.PollInterval
	}
	return DefaultPollInterval
}

// Running reports whether a child is live.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live != nil
}

// Cancel hard-kills the live child. The pending Run returns ErrCancelled.
func (s *Supervisor) Cancel() error {
	s.mu.Lock()
	h := s.live
	s.mu.Unlock()
	if h == nil {
		return ErrNotRunning
	}
	s.logger().Info("Cancelling llama.cpp process", "run_id", h.runID)
	h.cancel()
	return nil
}

func (s *Supervisor) claim() (*handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live != nil {
		return nil, ErrBusy
	}
	s.live = &handle{runID: uuid.NewString()}
	return s.live, nil
}

func (s *Supervisor) release(h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == h {
		s.live = nil
	}
}

// Run spawns req.Argv and supervises it until it exits, times out, is
// cancelled or the chunk consumer stops. The captured output is returned on
// every path where the child was started, including failures.
func (s *Supervisor) Run(ctx context.Context, req Request) (*CapturedOutput, error) {
	h, err := s.claim()
	if err != nil {
		observability.GetGlobalMetrics().RecordProcessRun(ctx, req.Label, Outcome(err), 0)
		return nil, err
	}
	defer s.release(h)

	ctx, span := otel.Tracer(tracerName).Start(ctx, observability.SpanProcessRun,
		trace.WithAttributes(
			attribute.String(observability.AttrRunID, h.runID),
			attribute.String(observability.AttrMode, req.Label),
			attribute.String(observability.AttrBinary, binaryName(req.Argv)),
			attribute.Float64(observability.AttrTimeoutSeconds, req.Timeout.Seconds()),
		))
	defer span.End()

	start := time.Now()
	out, err := s.run(ctx, h, req)
	elapsed := time.Since(start)

	outcome := Outcome(err)
	observability.GetGlobalMetrics().RecordProcessRun(ctx, req.Label, outcome, elapsed)

	if out != nil {
		out.Duration = elapsed
		span.SetAttributes(
			attribute.Int(observability.AttrExitCode, out.ExitCode),
			attribute.Int(observability.AttrStdoutBytes, len(out.Stdout)),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.logger().Warn("llama.cpp process failed",
			"run_id", h.runID, "mode", req.Label, "outcome", outcome,
			"duration", elapsed, "error", err)
	} else {
		s.logger().Debug("llama.cpp process finished",
			"run_id", h.runID, "mode", req.Label, "exit_code", out.ExitCode,
			"stdout_bytes", len(out.Stdout), "duration", elapsed)
	}
	return out, err
}

func (s *Supervisor) run(ctx context.Context, h *handle, req Request) (*CapturedOutput, error) {
	if len(req.Argv) == 0 || req.Argv[0] == "" {
		return nil, &SpawnError{Binary: "", Err: errors.New("empty command line")}
	}

	cmd := exec.Command(req.Argv[0], req.Argv[1:]...)
	// A nil Stdin is connected to the null device.
	cmd.Stdin = nil
	if len(req.Env) > 0 {
		cmd.Env = append(os.Environ(), req.Env...)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Binary: req.Argv[0], Err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Binary: req.Argv[0], Err: err}
	}

	s.logger().Debug("Spawning llama.cpp process",
		"run_id", h.runID, "mode", req.Label, "binary", req.Argv[0],
		"args", len(req.Argv)-1, "timeout", req.Timeout)

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Binary: req.Argv[0], Err: err}
	}
	if !h.attach(cmd, stdoutPipe, stderrPipe) {
		h.kill()
	}

	var stdout, stderr buffer
	var g errgroup.Group
	g.Go(func() error { return pump(&stdout, stdoutPipe) })
	g.Go(func() error { return pump(&stderr, stderrPipe) })

	// Reads must finish before Wait closes the pipes.
	exited := make(chan error, 1)
	go func() {
		if err := g.Wait(); err != nil {
			s.logger().Debug("llama.cpp pipe read failed", "run_id", h.runID, "error", err)
		}
		exited <- cmd.Wait()
	}()

	captured := func(waitErr error) *CapturedOutput {
		return &CapturedOutput{
			RunID:    h.runID,
			Stdout:   stdout.bytes(),
			Stderr:   stderr.bytes(),
			ExitCode: exitCode(waitErr),
		}
	}

	delivered := 0
	deliver := func() bool {
		if req.OnChunk == nil {
			return true
		}
		chunk := stdout.since(delivered)
		if len(chunk) == 0 {
			return true
		}
		delivered += len(chunk)
		return req.OnChunk(chunk)
	}

	// killAndReap terminates the child and waits until it has been reaped.
	killAndReap := func() error {
		h.kill()
		return <-exited
	}

	var deadline time.Time
	if req.Timeout > 0 {
		deadline = time.Now().Add(req.Timeout)
	}

	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case waitErr := <-exited:
			out := captured(waitErr)
			if h.wasCancelled() {
				return out, ErrCancelled
			}
			if !deliver() {
				return out, ErrStopped
			}
			if !req.Policy.Accepts(out) {
				return out, &ProcessError{ExitCode: out.ExitCode, Stderr: string(out.Stderr)}
			}
			return out, nil

		case <-ctx.Done():
			out := captured(killAndReap())
			return out, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))

		case <-ticker.C:
			if h.wasCancelled() {
				// Killed by Cancel; the exited case reports it.
				continue
			}
			if !deliver() {
				return captured(killAndReap()), ErrStopped
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				out := captured(killAndReap())
				s.logger().Warn("llama.cpp process exceeded timeout, killed",
					"run_id", h.runID, "mode", req.Label, "timeout", req.Timeout)
				return out, &TimeoutError{Timeout: req.Timeout}
			}
		}
	}
}

func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func binaryName(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return filepath.Base(argv[0])
}
