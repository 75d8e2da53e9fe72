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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/llamacli/pkg/options"
)

type fixture struct {
	dir   string
	bin   string
	model string
}

// newFixture writes a fake llama-cli that prints out, plus a model file.
func newFixture(t *testing.T, script string) *fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	dir := t.TempDir()
	f := &fixture{
		dir:   dir,
		bin:   filepath.Join(dir, "llama-cli"),
		model: filepath.Join(dir, "tiny-chat.gguf"),
	}
	require.NoError(t, os.WriteFile(f.bin, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	require.NoError(t, os.WriteFile(f.model, []byte("GGUF"), 0o644))
	return f
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "llamacli "), out)
}

func TestSchema(t *testing.T) {
	out, err := runCLI(t, "schema", "--compact")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "properties")
}

func TestValidate(t *testing.T) {
	f := newFixture(t, "exit 0")
	cfgPath := filepath.Join(f.dir, "llamacli.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("binary: "+f.bin+"\nmodels_dir: "+f.dir+"\n"), 0o644))

	out, err := runCLI(t, "--config", cfgPath, "validate", "--resolve")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, f.model)

	bad := filepath.Join(f.dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("stream_filter: eager\n"), 0o644))
	_, err = runCLI(t, "--config", bad, "validate")
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, `printf 'build : b1\n\n> Say hi\n\nHi there!\n\nExiting...\n'`)

	out, err := runCLI(t, "--binary", f.bin, "--model", f.model, "generate", "Say hi", "-n", "16")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!\n", out)

	out, err = runCLI(t, "--binary", f.bin, "--model", f.model, "generate", "Say hi", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"prompt":"Say hi","text":"Hi there!"}`, out)
}

func TestGenerate_InvalidOption(t *testing.T) {
	f := newFixture(t, "exit 0")

	_, err := runCLI(t, "--binary", f.bin, "--model", f.model, "generate", "p", "--opt", "colour=red")
	require.ErrorIs(t, err, options.ErrValidation)

	_, err = runCLI(t, "--binary", f.bin, "--model", f.model, "generate", "p", "--top-p", "1.5")
	require.ErrorIs(t, err, options.ErrValidation)
}

func TestGenerate_NoModel(t *testing.T) {
	f := newFixture(t, "exit 0")
	_, err := runCLI(t, "--binary", f.bin, "generate", "p")
	assert.ErrorIs(t, err, errNoModel)
}

func TestStream(t *testing.T) {
	f := newFixture(t, `printf '> Say hi\nHello\nworld\n'`)

	out, err := runCLI(t, "--binary", f.bin, "--model", f.model, "stream", "Say hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello\nworld\n\n", out)
}

func TestRerank(t *testing.T) {
	f := newFixture(t, `case "$4" in *paris*) s=0.9;; *) s=0.2;; esac
printf 'rerank score 0:    %s\n' "$s"`)

	out, err := runCLI(t, "--binary", f.bin, "--model", f.model, "rerank", "capital", "berlin", "paris", "--json")
	require.NoError(t, err)

	var ranked []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &ranked))
	require.Len(t, ranked, 2)
	assert.Equal(t, "paris", ranked[0]["document"])
	assert.Equal(t, "berlin", ranked[1]["document"])

	out, err = runCLI(t, "--binary", f.bin, "--model", f.model, "rerank", "capital", "berlin", "paris")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "paris")
}

func TestEmbedAndSimilarity(t *testing.T) {
	f := newFixture(t, `case "$4" in cats*) v='1,0';; *) v='0,1';; esac
printf '{"data":[{"embedding":[%s]}]}' "$v"`)

	out, err := runCLI(t, "--binary", f.bin, "--model", f.model, "embed", "cats purr")
	require.NoError(t, err)
	assert.JSONEq(t, `{"dimension":2,"embedding":[1,0]}`, out)

	out, err = runCLI(t, "--binary", f.bin, "--model", f.model, "similarity", "cats purr", "dogs bark")
	require.NoError(t, err)
	assert.Equal(t, "0.000000\n", out)
}

func TestModels(t *testing.T) {
	f := newFixture(t, "exit 0")
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "nomic-embedding.gguf"), []byte("GGUF"), 0o644))

	out, err := runCLI(t, "models", f.dir)
	require.NoError(t, err)
	assert.Contains(t, out, "nomic-embedding.gguf")
	assert.Contains(t, out, "embedding,rerank")
	assert.Contains(t, out, "tiny-chat.gguf")
	assert.Contains(t, out, "generation")

	out, err = runCLI(t, "models", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No models found")

	_, err = runCLI(t, "models")
	assert.Error(t, err)
}

func TestInvalidTraceExporter(t *testing.T) {
	_, err := runCLI(t, "--trace", "zipkin", "version")
	assert.Error(t, err)
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanSize(tt.in))
	}
}

func TestParseOptionValue(t *testing.T) {
	assert.Equal(t, 8, parseOptionValue("8"))
	assert.Equal(t, 0.5, parseOptionValue("0.5"))
	assert.Equal(t, []string{"a", "b"}, parseOptionValue("a,b"))
	assert.Equal(t, "deepseek", parseOptionValue("deepseek"))
}
