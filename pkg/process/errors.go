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

package process

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrBusy is returned when a run is requested while another child is live.
	ErrBusy = errors.New("a llama.cpp process is already running")

	// ErrNotRunning is returned by Cancel when no child is live.
	ErrNotRunning = errors.New("no llama.cpp process is running")

	// ErrCancelled is returned by Run when the child was killed by Cancel or
	// by context cancellation.
	ErrCancelled = errors.New("llama.cpp process cancelled")

	// ErrStopped is returned by Run when the chunk consumer asked to stop.
	ErrStopped = errors.New("llama.cpp output consumer stopped")

	ErrSpawn   = errors.New("failed to start llama.cpp process")
	ErrTimeout = errors.New("llama.cpp process timed out")
	ErrProcess = errors.New("llama.cpp process failed")
)

// SpawnError reports a child that could not be created.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() []error {
	return []error{ErrSpawn, e.Err}
}

// TimeoutError reports a child killed after exceeding its wall-clock budget.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("llama.cpp process timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// maxStderrInMessage bounds how much stderr is repeated in Error().
const maxStderrInMessage = 1000

// ProcessError reports a non-zero exit that the exit policy did not accept.
type ProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if len(msg) > maxStderrInMessage {
		msg = msg[:maxStderrInMessage] + "..."
	}
	if msg == "" {
		return fmt.Sprintf("llama.cpp error (code %d)", e.ExitCode)
	}
	return fmt.Sprintf("llama.cpp error (code %d): %s", e.ExitCode, msg)
}

func (e *ProcessError) Unwrap() error {
	return ErrProcess
}

// Outcome classifies a Run error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrSpawn):
		return "spawn_error"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrStopped):
		return "stopped"
	case errors.Is(err, ErrProcess):
		return "process_error"
	default:
		return "error"
	}
}
