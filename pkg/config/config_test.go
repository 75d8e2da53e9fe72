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

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/llamacli/pkg/options"
	"github.com/kadirpekel/llamacli/pkg/process"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("model: /models/tiny.gguf\n"))
	require.NoError(t, err)

	assert.Equal(t, "/models/tiny.gguf", cfg.Model)
	assert.Equal(t, 60, cfg.Timeout)
	assert.Equal(t, 300, cfg.StreamTimeout)
	assert.Equal(t, 100, cfg.PollIntervalMs)
	assert.Equal(t, "conservative", cfg.StreamFilter)
	assert.Equal(t, "strict", cfg.ExitPolicy)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "simple", cfg.Logger.Format)
	assert.Equal(t, "/metrics", cfg.Observability.Metrics.Path)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("LLAMACLI_TEST_BIN", "/opt/llama/llama-cli")
	t.Setenv("LLAMACLI_TEST_THREADS", "8")

	cfg, err := Parse([]byte(`
binary: ${LLAMACLI_TEST_BIN}
model: ${LLAMACLI_TEST_UNSET:-/models/fallback.gguf}
defaults:
  threads: ${LLAMACLI_TEST_THREADS}
  temperature: 0.5
  stop: ["END", "$LLAMACLI_TEST_BIN"]
observability:
  tracing:
    enabled: true
    exporter: stdout
    timeout: 5s
`))
	require.NoError(t, err)

	assert.Equal(t, "/opt/llama/llama-cli", cfg.Binary)
	assert.Equal(t, "/models/fallback.gguf", cfg.Model)
	assert.Equal(t, 8, cfg.Defaults["threads"])
	assert.Equal(t, 0.5, cfg.Defaults["temperature"])
	assert.Equal(t, []any{"END", "/opt/llama/llama-cli"}, cfg.Defaults["stop"])
	assert.True(t, cfg.Observability.Tracing.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Observability.Tracing.Timeout)
}

func TestParse_JSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"model": "m.gguf", "timeout": 5}`))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Timeout)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "modle: x.gguf\n", "modle"},
		{"negative timeout", "timeout: -1\n", "timeout must be a positive"},
		{"bad stream filter", "stream_filter: eager\n", "eager"},
		{"bad exit policy", "exit_policy: lenient\n", "lenient"},
		{"bad default option", "defaults:\n  top_p: 3\n", "defaults:"},
		{"unknown default option", "defaults:\n  colour: red\n", "unknown option"},
		{"bad log level", "logger:\n  level: loud\n", "logger:"},
		{"bad log format", "logger:\n  format: xml\n", "invalid log format"},
		{"bad sampling rate", "observability:\n  tracing:\n    enabled: true\n    sampling_rate: 2\n", "sampling_rate"},
		{"not yaml", "{{{", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_DefaultsValidationError(t *testing.T) {
	_, err := Parse([]byte("defaults:\n  max_tokens: 0\n"))
	assert.ErrorIs(t, err, options.ErrValidation)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llamacli.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: 42\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Timeout)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolveModels(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"qwen.gguf", "nomic-embedding.gguf", "bge-reranker.gguf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("GGUF"), 0o644))
	}

	cfg := Default()
	cfg.ModelsDir = dir
	cfg.Model = "/explicit/model.gguf"
	require.NoError(t, cfg.ResolveModels())

	assert.Equal(t, "/explicit/model.gguf", cfg.Model)
	assert.Equal(t, filepath.Join(dir, "nomic-embedding.gguf"), cfg.EmbeddingModel)
	assert.Equal(t, filepath.Join(dir, "bge-reranker.gguf"), cfg.RerankModel)

	noDir := Default()
	noDir.Model = "m.gguf"
	require.NoError(t, noDir.ResolveModels())
	assert.Equal(t, "m.gguf", noDir.EmbeddingModel)
	assert.Equal(t, "m.gguf", noDir.RerankModel)

	empty := Default()
	empty.ModelsDir = t.TempDir()
	assert.Error(t, empty.ResolveModels())
}

func TestGenerateDefaults(t *testing.T) {
	cfg := Default()
	cfg.Defaults = map[string]any{"temperature": 0.1, "seed": 3}

	got := cfg.GenerateDefaults()
	assert.Equal(t, 0.1, got["temperature"])
	assert.Equal(t, 3, got["seed"])
	assert.Equal(t, 128, got["max_tokens"])
}

func TestTransportConfig(t *testing.T) {
	cfg := Default()
	cfg.Binary = "/bin/llama-cli"
	cfg.ExitPolicy = "tolerate_output"
	cfg.PollIntervalMs = 50

	tc, err := cfg.TransportConfig("/m.gguf", nil)
	require.NoError(t, err)
	assert.Equal(t, "/bin/llama-cli", tc.BinaryPath)
	assert.Equal(t, "/m.gguf", tc.ModelPath)
	assert.Equal(t, 60*time.Second, tc.Timeout)
	assert.Equal(t, 300*time.Second, tc.StreamTimeout)
	assert.Equal(t, 50*time.Millisecond, tc.PollInterval)
	assert.Equal(t, process.ExitTolerateOutput, tc.ExitPolicy)
}

func TestDiscoverBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bits not supported on windows")
	}
	root := t.TempDir()
	legacy := filepath.Join(root, "llama.cpp", DefaultBinaryName)
	cmake := filepath.Join(root, "llama.cpp", "build", "bin", DefaultBinaryName)
	require.NoError(t, os.MkdirAll(filepath.Dir(cmake), 0o755))
	require.NoError(t, os.WriteFile(legacy, []byte("#!/bin/sh\n"), 0o755))

	got, err := DiscoverBinary(root)
	require.NoError(t, err)
	assert.Equal(t, mustEval(t, legacy), got)

	require.NoError(t, os.WriteFile(cmake, []byte("#!/bin/sh\n"), 0o644))
	got, err = DiscoverBinary(root)
	require.NoError(t, err)
	assert.Equal(t, mustEval(t, legacy), got, "non-executable candidates are skipped")

	require.NoError(t, os.Chmod(cmake, 0o755))
	got, err = DiscoverBinary(root)
	require.NoError(t, err)
	assert.Equal(t, mustEval(t, cmake), got)
}

func mustEval(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LLAMACLI_DOTENV_NEW=from-file\nLLAMACLI_DOTENV_SET=from-file\n"), 0o644))

	t.Setenv("LLAMACLI_DOTENV_SET", "from-env")
	t.Setenv("LLAMACLI_DOTENV_NEW", "")
	require.NoError(t, os.Unsetenv("LLAMACLI_DOTENV_NEW"))

	require.NoError(t, LoadDotEnvForConfig(filepath.Join(dir, "llamacli.yaml")))
	assert.Equal(t, "from-file", os.Getenv("LLAMACLI_DOTENV_NEW"))
	assert.Equal(t, "from-env", os.Getenv("LLAMACLI_DOTENV_SET"))
}

func TestSchema(t *testing.T) {
	data, err := json.Marshal(Schema())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"binary", "model", "models_dir", "defaults", "timeout", "stream_filter", "exit_policy", "logger", "observability"} {
		assert.Contains(t, props, key)
	}
	assert.Equal(t, "llamacli configuration", doc["title"])
}
