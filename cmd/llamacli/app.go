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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kadirpekel/llamacli/pkg/config"
	"github.com/kadirpekel/llamacli/pkg/llama"
	"github.com/kadirpekel/llamacli/pkg/logger"
	"github.com/kadirpekel/llamacli/pkg/observability"
)

// app carries what every command needs: the resolved configuration, the
// logger and the observability stack.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	obs    *observability.Manager

	closers []func()
}

func newApp(ctx context.Context, cli *CLI, out io.Writer) (*app, error) {
	_ = config.LoadDotEnv(cli.EnvFile)
	if cli.Config != "" {
		_ = config.LoadDotEnvForConfig(cli.Config)
	}

	cfg := config.Default()
	if cli.Config != "" {
		loaded, err := config.Load(cli.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := applyFlags(cli, cfg); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, out: out}

	cleanupLogger, err := initLogger(resolveLoggerConfig(cli, cfg.Logger))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, cleanupLogger)
	a.logger = logger.GetLogger()

	a.obs = observability.NewManager(cfg.Observability)
	if err := a.obs.Initialize(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	a.closers = append(a.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.obs.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Observability shutdown failed", "error", err)
		}
	})
	return a, nil
}

// applyFlags overrides config file values with CLI flags.
func applyFlags(cli *CLI, cfg *config.Config) error {
	if cli.Binary != "" {
		cfg.Binary = cli.Binary
	}
	if cli.Model != "" {
		cfg.Model = cli.Model
	}
	if cli.ModelsDir != "" {
		cfg.ModelsDir = cli.ModelsDir
	}
	if cli.MetricsAddr != "" {
		cfg.Observability.Metrics.Enabled = true
		cfg.Observability.Metrics.Addr = cli.MetricsAddr
	}
	switch cli.Trace {
	case "":
	case "stdout", "otlp":
		cfg.Observability.Tracing.Enabled = true
		cfg.Observability.Tracing.Exporter = cli.Trace
	default:
		return fmt.Errorf("invalid --trace value %q (valid: stdout, otlp)", cli.Trace)
	}
	return cfg.Validate()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// binary returns the configured llama-cli binary, discovering it next to
// the working directory or the llamacli executable when unset.
func (a *app) binary() (string, error) {
	if a.cfg.Binary != "" {
		return a.cfg.Binary, nil
	}
	var roots []string
	if wd, err := os.Getwd(); err == nil {
		roots = append(roots, wd)
	}
	if exe, err := os.Executable(); err == nil {
		roots = append(roots, filepath.Dir(exe))
	}
	bin, err := config.DiscoverBinary(roots...)
	if err != nil {
		return "", err
	}
	a.logger.Debug("Discovered llama.cpp binary", "path", bin)
	a.cfg.Binary = bin
	return bin, nil
}

type modelRole int

const (
	roleGeneration modelRole = iota
	roleEmbedding
	roleReranker
)

var errNoModel = errors.New("no model configured: pass --model, --models-dir or set model in the config")

func (a *app) model(role modelRole) (string, error) {
	if err := a.cfg.ResolveModels(); err != nil {
		return "", err
	}
	var path string
	switch role {
	case roleEmbedding:
		path = a.cfg.EmbeddingModel
	case roleReranker:
		path = a.cfg.RerankModel
	default:
		path = a.cfg.Model
	}
	if path == "" {
		return "", errNoModel
	}
	return path, nil
}

// transport builds a transport for the model picked for role. The caller
// closes it.
func (a *app) transport(role modelRole) (*llama.Transport, error) {
	if _, err := a.binary(); err != nil {
		return nil, err
	}
	model, err := a.model(role)
	if err != nil {
		return nil, err
	}
	tc, err := a.cfg.TransportConfig(model, a.logger)
	if err != nil {
		return nil, err
	}
	return llama.NewTransport(tc)
}
