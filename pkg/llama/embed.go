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

import (
	"context"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kadirpekel/llamacli/pkg/observability"
	"github.com/kadirpekel/llamacli/pkg/options"
	"github.com/kadirpekel/llamacli/pkg/output"
	"github.com/kadirpekel/llamacli/pkg/process"
)

// embeddingBinary picks the binary used for embedding and reranking.
func (t *Transport) embeddingBinary() string {
	if t.cfg.EmbeddingBinary != "" {
		return t.cfg.EmbeddingBinary
	}
	candidate := filepath.Join(filepath.Dir(t.cfg.BinaryPath), EmbeddingBinaryName)
	if isExecutable(candidate) {
		return candidate
	}
	return t.cfg.BinaryPath
}

func (t *Transport) runStructured(ctx context.Context, mode, prompt string, pooling []string, opts options.Options) (output.Result, error) {
	argv := []string{t.embeddingBinary(), "-m", t.cfg.ModelPath, "-p", prompt}
	argv = append(argv, pooling...)
	argv = append(argv, options.Args(options.EmbedSchema, opts)...)

	out, err := t.sup.Run(ctx, process.Request{
		Label:   mode,
		Argv:    argv,
		Timeout: options.Timeout(opts, t.cfg.Timeout),
		Policy:  process.ExitTolerateOutput,
	})
	if err != nil {
		return output.Result{}, err
	}

	res, err := output.ParseResult(string(out.Stdout))
	if err != nil {
		t.logger.Debug("Unparseable llama.cpp output", "run_id", out.RunID, "mode", mode,
			"stderr", truncate(string(out.Stderr), 500))
		return output.Result{}, err
	}
	return res, nil
}

// Embed returns the embedding vector of text.
func (t *Transport) Embed(ctx context.Context, text string, opts options.Options) ([]float64, error) {
	normalized, err := t.begin(options.EmbedSchema, opts)
	if err != nil {
		return nil, err
	}

	ctx, span := t.startSpan(ctx, observability.SpanEmbed, "embed",
		attribute.Int(observability.AttrPromptChars, len(text)))
	defer span.End()

	t.logger.Debug("Starting embedding generation", "text_length", len(text), "options", optionKeys(normalized))

	res, err := t.runStructured(ctx, "embed", text,
		[]string{"--pooling", "last", "--embd-normalize", "2", "--embd-output-format", "json"},
		normalized)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int(observability.AttrResultSize, len(res.Values)))
	t.logger.Debug("Embedding generation completed", "embedding_dimension", len(res.Values))
	return res.Vector(), nil
}

// Rerank scores document against query. Rank pooling models usually return a
// single score; use Result.Scalar to read it.
func (t *Transport) Rerank(ctx context.Context, query, document string, opts options.Options) (output.Result, error) {
	normalized, err := t.begin(options.RerankSchema, opts)
	if err != nil {
		return output.Result{}, err
	}
	params, err := options.Decode(normalized)
	if err != nil {
		return output.Result{}, err
	}
	prompt := query + params.Separator() + document

	ctx, span := t.startSpan(ctx, observability.SpanRerank, "rerank",
		attribute.Int(observability.AttrPromptChars, len(prompt)))
	defer span.End()

	t.logger.Debug("Starting reranking", "query_length", len(query), "document_length", len(document),
		"options", optionKeys(normalized))

	res, err := t.runStructured(ctx, "rerank", prompt,
		[]string{"--pooling", "rank", "--embd-output-format", "json"},
		normalized)
	if err != nil {
		span.RecordError(err)
		return output.Result{}, err
	}

	span.SetAttributes(attribute.Int(observability.AttrResultSize, len(res.Values)))
	t.logger.Debug("Reranking completed", "scores_count", len(res.Values))
	return res, nil
}

// RerankMultiple scores every document against query, one run per document,
// and returns the first score of each in document order.
func (t *Transport) RerankMultiple(ctx context.Context, query string, documents []string, opts options.Options) ([]float64, error) {
	if _, err := t.begin(options.RerankSchema, opts); err != nil {
		return nil, err
	}

	scores := make([]float64, 0, len(documents))
	for _, doc := range documents {
		res, err := t.Rerank(ctx, query, doc, opts)
		if err != nil {
			return nil, err
		}
		scores = append(scores, res.First())
	}
	return scores, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
