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

import "errors"

var (
	ErrBinaryNotFound = errors.New("llama.cpp binary not found")
	ErrBinaryNotExec  = errors.New("llama.cpp binary is not executable")
	ErrModelNotFound  = errors.New("model file not found")

	// ErrStreamConsumed is yielded when a stream sequence is ranged over a
	// second time.
	ErrStreamConsumed = errors.New("stream already consumed")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("transport is closed")
)
