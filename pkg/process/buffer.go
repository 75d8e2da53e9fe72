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
	"io"
	"os"
	"sync"
)

// buffer is an append-only byte buffer shared between a pipe reader and the
// poll loop.
type buffer struct {
	mu   sync.Mutex
	data []byte
}

func (b *buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
	return len(p), nil
}

// since returns a copy of everything appended after offset.
func (b *buffer) since(offset int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offset >= len(b.data) {
		return nil
	}
	out := make([]byte, len(b.data)-offset)
	copy(out, b.data[offset:])
	return out
}

func (b *buffer) bytes() []byte {
	return b.since(0)
}

// pump copies r into dst until EOF. A pipe closed by kill is not an error.
func pump(dst io.Writer, r io.Reader) error {
	_, err := io.Copy(dst, r)
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
