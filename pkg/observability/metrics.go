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
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder records subprocess metrics.
type Recorder interface {
	RecordProcessRun(ctx context.Context, mode, outcome string, duration time.Duration)
	RecordStreamChunk(ctx context.Context, mode string, size int)
}

var (
	globalMetrics Recorder
	metricsMu     sync.RWMutex
)

// SetGlobalMetrics installs the process-wide recorder. Nil restores the noop.
func SetGlobalMetrics(m Recorder) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide recorder, never nil.
func GetGlobalMetrics() Recorder {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if globalMetrics == nil {
		return NoopMetrics{}
	}
	return globalMetrics
}

// Metrics is an OpenTelemetry meter exported through a Prometheus registry.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry

	runs         metric.Int64Counter
	duration     metric.Float64Histogram
	streamChunks metric.Int64Counter
	streamBytes  metric.Int64Counter
}

var _ Recorder = (*Metrics)(nil)

// InitMetrics builds the meter provider and its Prometheus registry.
func InitMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)

	runs, err := meter.Int64Counter(
		MetricProcessRuns,
		metric.WithDescription("Total llama.cpp process runs by mode and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create process runs counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricProcessDuration,
		metric.WithDescription("llama.cpp process wall-clock duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create process duration histogram: %w", err)
	}

	streamChunks, err := meter.Int64Counter(
		MetricStreamChunks,
		metric.WithDescription("Total filtered chunks delivered to stream consumers"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream chunks counter: %w", err)
	}

	streamBytes, err := meter.Int64Counter(
		"llamacli_stream_output",
		metric.WithDescription("Total filtered bytes delivered to stream consumers"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream bytes counter: %w", err)
	}

	return &Metrics{
		provider:     provider,
		registry:     registry,
		runs:         runs,
		duration:     duration,
		streamChunks: streamChunks,
		streamBytes:  streamBytes,
	}, nil
}

func (m *Metrics) RecordProcessRun(ctx context.Context, mode, outcome string, duration time.Duration) {
	if m == nil || m.runs == nil {
		return
	}

	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	))
	if duration > 0 && m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("mode", mode)))
	}
}

func (m *Metrics) RecordStreamChunk(ctx context.Context, mode string, size int) {
	if m == nil || m.streamChunks == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.streamChunks.Add(ctx, 1, attrs)
	if m.streamBytes != nil {
		m.streamBytes.Add(ctx, int64(size), attrs)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return NoopMetrics{}.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// NoopMetrics is a recorder that does nothing.
type NoopMetrics struct{}

var _ Recorder = NoopMetrics{}

func (NoopMetrics) RecordProcessRun(_ context.Context, _, _ string, _ time.Duration) {}
func (NoopMetrics) RecordStreamChunk(_ context.Context, _ string, _ int)             {}

// Handler returns a handler that returns 503 Service Unavailable.
func (NoopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}
