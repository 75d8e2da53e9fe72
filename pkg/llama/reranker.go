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
	"slices"

	"github.com/kadirpekel/llamacli/pkg/options"
	"github.com/kadirpekel/llamacli/pkg/output"
)

// Scorer scores documents against a query.
type Scorer interface {
	Rerank(ctx context.Context, query, document string, opts options.Options) (output.Result, error)
	RerankMultiple(ctx context.Context, query string, documents []string, opts options.Options) ([]float64, error)
}

var _ Scorer = (*Transport)(nil)

// ScoredDocument is a document with its relevance score.
type ScoredDocument struct {
	Index    int     `json:"index"`
	Document string  `json:"document"`
	Score    float64 `json:"score"`
}

// Reranker scores documents through a Scorer, usually a Transport loaded with
// a reranking model.
type Reranker struct {
	scorer Scorer
	opts   options.Options
}

// NewReranker wraps s. opts are passed to every call.
func NewReranker(s Scorer, opts options.Options) *Reranker {
	return &Reranker{scorer: s, opts: opts}
}

// Rerank scores a single document.
func (r *Reranker) Rerank(ctx context.Context, query, document string) (output.Result, error) {
	return r.scorer.Rerank(ctx, query, document, r.opts)
}

// RerankMultiple scores documents in input order.
func (r *Reranker) RerankMultiple(ctx context.Context, query string, documents []string) ([]float64, error) {
	return r.scorer.RerankMultiple(ctx, query, documents, r.opts)
}

// Rank scores documents and returns them ordered by descending score.
// Documents with equal scores keep their input order.
func (r *Reranker) Rank(ctx context.Context, query string, documents []string) ([]ScoredDocument, error) {
	scores, err := r.RerankMultiple(ctx, query, documents)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(documents) {
		return nil, fmt.Errorf("got %d scores for %d documents", len(scores), len(documents))
	}

	ranked := make([]ScoredDocument, len(documents))
	for i, doc := range documents {
		ranked[i] = ScoredDocument{Index: i, Document: doc, Score: scores[i]}
	}
	slices.SortStableFunc(ranked, func(a, b ScoredDocument) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return ranked, nil
}
