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
	"fmt"
	"math"

	"github.com/philippgille/chromem-go"

	"github.com/kadirpekel/llamacli/pkg/options"
)

// Embedder computes embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, text string, opts options.Options) ([]float64, error)
}

var _ Embedder = (*Transport)(nil)

// Embedding computes embeddings through an Embedder, usually a Transport
// loaded with an embedding model.
type Embedding struct {
	embedder Embedder
	opts     options.Options
}

// NewEmbedding wraps e. opts are passed to every call.
func NewEmbedding(e Embedder, opts options.Options) *Embedding {
	return &Embedding{embedder: e, opts: opts}
}

// Embed returns the embedding of text.
func (e *Embedding) Embed(ctx context.Context, text string) ([]float64, error) {
	return e.embedder.Embed(ctx, text, e.opts)
}

// EmbedBatch embeds texts one after another. It stops at the first failure.
func (e *Embedding) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, 0, len(texts))
	for i, text := range texts {
		vec, err := e.embedder.Embed(ctx, text, e.opts)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// Similarity embeds both texts and returns their cosine similarity.
func (e *Embedding) Similarity(ctx context.Context, a, b string) (float64, error) {
	vecs, err := e.EmbedBatch(ctx, []string{a, b})
	if err != nil {
		return 0, err
	}
	return CosineSimilarity(vecs[0], vecs[1])
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector has zero length.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions differ: %d != %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// ChromemFunc adapts the embedding to a chromem-go collection.
func (e *Embedding) ChromemFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out := make([]float32, len(vec))
		for i, v := range vec {
			out[i] = float32(v)
		}
		return out, nil
	}
}
