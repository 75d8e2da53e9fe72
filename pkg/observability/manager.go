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

package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// Manager owns the tracer provider, the metrics registry and the optional
// metrics HTTP endpoint.
type Manager struct {
	config Config

	mu             sync.RWMutex
	tracerProvider trace.TracerProvider
	metrics        *Metrics
	server         *http.Server
	listener       net.Listener
}

func NewManager(cfg Config) *Manager {
	cfg.SetDefaults()
	return &Manager{config: cfg}
}

// Initialize installs the global tracer provider and, when enabled, the
// global metrics recorder and its HTTP endpoint.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.config.Validate(); err != nil {
		return err
	}

	tp, err := InitGlobalTracer(ctx, m.config.Tracing)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	if !m.config.Metrics.Enabled {
		return nil
	}

	metrics, err := InitMetrics()
	if err != nil {
		return err
	}
	m.metrics = metrics
	SetGlobalMetrics(metrics)

	if m.config.Metrics.Addr != "" {
		if err := m.serveLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) serveLocked() error {
	ln, err := net.Listen("tcp", m.config.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.config.Metrics.Addr, err)
	}

	m.listener = ln
	m.server = &http.Server{Handler: m.routes(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	slog.Info("Serving metrics", "addr", ln.Addr().String(), "path", m.config.Metrics.Path)
	return nil
}

func (m *Manager) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, m.config.Metrics.Path, m.metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// MetricsAddr returns the bound metrics address, or "" when not serving.
func (m *Manager) MetricsAddr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

func (m *Manager) GetTracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return GetTracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

func (m *Manager) GetMetrics() *Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Shutdown stops the metrics endpoint and flushes both providers.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.server != nil {
		errs = append(errs, m.server.Shutdown(ctx))
		m.server = nil
		m.listener = nil
	}
	if m.metrics != nil {
		errs = append(errs, m.metrics.Shutdown(ctx))
		SetGlobalMetrics(nil)
		m.metrics = nil
	}
	if spt, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		errs = append(errs, spt.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
