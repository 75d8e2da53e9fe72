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

const (
	DefaultServiceName  = "llamacli"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
	DefaultMetricsAddr  = ":9464"

	meterName = "github.com/kadirpekel/llamacli"
)

// Span names.
const (
	SpanProcessRun = "llamacli.process.run"
	SpanGenerate   = "llamacli.generate"
	SpanStream     = "llamacli.stream"
	SpanEmbed      = "llamacli.embed"
	SpanRerank     = "llamacli.rerank"
)

// Span and metric attribute keys.
const (
	AttrRunID          = "llamacli.run_id"
	AttrMode           = "llamacli.mode"
	AttrOutcome        = "llamacli.outcome"
	AttrBinary         = "llamacli.binary"
	AttrModel          = "llamacli.model"
	AttrTimeoutSeconds = "llamacli.timeout_seconds"
	AttrExitCode       = "llamacli.exit_code"
	AttrStdoutBytes    = "llamacli.stdout_bytes"
	AttrPromptChars    = "llamacli.prompt_chars"
	AttrResultSize     = "llamacli.result_size"
)

// Metric names before exporter suffixing. Prometheus exposes them as
// llamacli_process_runs_total, llamacli_process_duration_seconds and
// llamacli_stream_chunks_total.
const (
	MetricProcessRuns     = "llamacli_process_runs"
	MetricProcessDuration = "llamacli_process_duration"
	MetricStreamChunks    = "llamacli_stream_chunks"
)
