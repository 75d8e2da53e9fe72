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

package models

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("GGUF"), 0o644))
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "qwen2.5-0.5b.gguf", "README.md", "bge-Embedding-small.GGUF", "a-rerank.gguf")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755))

	c, err := Scan(dir)
	require.NoError(t, err)

	var names []string
	for _, m := range c.Models {
		names = append(names, m.Name)
		assert.Equal(t, int64(4), m.Size)
	}
	assert.Equal(t, []string{"a-rerank.gguf", "bge-Embedding-small.GGUF", "qwen2.5-0.5b.gguf"}, names)

	gen, err := c.Generation()
	require.NoError(t, err)
	assert.Equal(t, "a-rerank.gguf", gen.Name)

	emb, err := c.Embedding()
	require.NoError(t, err)
	assert.Equal(t, "bge-Embedding-small.GGUF", emb.Name)

	rr, err := c.Reranker()
	require.NoError(t, err)
	assert.Equal(t, "a-rerank.gguf", rr.Name)

	m, ok := c.Find("qwen2.5-0.5b.gguf")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "qwen2.5-0.5b.gguf"), m.Path)
}

func TestCatalog_Fallbacks(t *testing.T) {
	tests := []struct {
		name              string
		files             []string
		wantEmbed, wantRR string
	}{
		{"single model", []string{"llama.gguf"}, "llama.gguf", "llama.gguf"},
		{"reranker falls back to embedding", []string{"chat.gguf", "nomic-embedding.gguf"}, "nomic-embedding.gguf", "nomic-embedding.gguf"},
		{"embedding falls back to generation", []string{"b.gguf", "a.gguf"}, "a.gguf", "a.gguf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			touch(t, dir, tt.files...)
			c, err := Scan(dir)
			require.NoError(t, err)

			emb, err := c.Embedding()
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmbed, emb.Name)

			rr, err := c.Reranker()
			require.NoError(t, err)
			assert.Equal(t, tt.wantRR, rr.Name)
		})
	}
}

func TestCatalog_Empty(t *testing.T) {
	c, err := Scan(t.TempDir())
	require.NoError(t, err)

	_, err = c.Generation()
	assert.ErrorIs(t, err, ErrNoModels)
	_, err = c.Reranker()
	assert.ErrorIs(t, err, ErrNoModels)
}

func TestScan_MissingDir(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Catalog, 10)
	done := make(chan error, 1)
	w := &Watcher{Debounce: 50 * time.Millisecond}
	go func() {
		done <- w.Watch(ctx, dir, func(c *Catalog) { changes <- c })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	touch(t, dir, "notes.txt")
	touch(t, dir, "new-model.gguf")

	waitForCatalog(t, changes, func(c *Catalog) bool {
		return len(c.Models) == 1 && c.Models[0].Name == "new-model.gguf"
	})

	require.NoError(t, os.Remove(filepath.Join(dir, "new-model.gguf")))
	waitForCatalog(t, changes, func(c *Catalog) bool { return len(c.Models) == 0 })

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func waitForCatalog(t *testing.T, changes <-chan *Catalog, match func(*Catalog) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if match(c) {
				return
			}
		case <-deadline:
			t.Fatal("expected catalog change not observed")
		}
	}
}

func TestWatcher_MissingDir(t *testing.T) {
	w := &Watcher{}
	err := w.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), func(*Catalog) {})
	assert.Error(t, err)
}
