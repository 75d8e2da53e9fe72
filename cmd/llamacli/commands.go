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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/kadirpekel/llamacli/pkg/config"
	"github.com/kadirpekel/llamacli/pkg/llama"
	"github.com/kadirpekel/llamacli/pkg/models"
	"github.com/kadirpekel/llamacli/pkg/options"
)

// SamplingFlags are the generation options exposed as flags. Anything else
// can be passed with --opt key=value.
type SamplingFlags struct {
	MaxTokens     *int              `short:"n" name:"max-tokens" help:"Maximum number of tokens to generate."`
	Temperature   *float64          `help:"Sampling temperature."`
	TopP          *float64          `name:"top-p" help:"Nucleus sampling threshold (0-1)."`
	TopK          *int              `name:"top-k" help:"Top-k sampling."`
	RepeatPenalty *float64          `name:"repeat-penalty" help:"Repetition penalty."`
	CtxSize       *int              `name:"ctx-size" help:"Context size."`
	Threads       *int              `help:"CPU threads."`
	Seed          *int              `help:"Random seed."`
	Timeout       *int              `help:"Timeout in seconds."`
	Grammar       *string           `help:"GBNF grammar file." type:"path"`
	JSONSchema    *string           `name:"json-schema" help:"JSON schema constraining the output."`
	Stop          []string          `help:"Stop sequence (repeatable). Replaces the defaults."`
	Opt           map[string]string `help:"Extra option as key=value (repeatable)." placeholder:"KEY=VALUE"`
}

func (f *SamplingFlags) options() options.Options {
	params := options.Params{
		MaxTokens:     f.MaxTokens,
		Temperature:   f.Temperature,
		TopP:          f.TopP,
		TopK:          f.TopK,
		RepeatPenalty: f.RepeatPenalty,
		CtxSize:       f.CtxSize,
		Threads:       f.Threads,
		Seed:          f.Seed,
		Timeout:       f.Timeout,
		Grammar:       f.Grammar,
		JSONSchema:    f.JSONSchema,
		Stop:          f.Stop,
	}
	opts := params.Options()
	for k, v := range f.Opt {
		opts[k] = parseOptionValue(v)
	}
	return opts
}

// EmbeddingFlags are the options accepted by embed and rerank.
type EmbeddingFlags struct {
	Threads      *int              `help:"CPU threads."`
	CtxSize      *int              `name:"ctx-size" help:"Context size."`
	Timeout      *int              `help:"Timeout in seconds."`
	ClsSeparator *string           `name:"separator" help:"Separator between query and document when reranking."`
	Opt          map[string]string `help:"Extra option as key=value (repeatable)." placeholder:"KEY=VALUE"`
}

func (f *EmbeddingFlags) options() options.Options {
	opts := options.Params{
		Threads:      f.Threads,
		CtxSize:      f.CtxSize,
		Timeout:      f.Timeout,
		ClsSeparator: f.ClsSeparator,
	}.Options()
	for k, v := range f.Opt {
		opts[k] = parseOptionValue(v)
	}
	return opts
}

// parseOptionValue turns "8" into an int and "0.5" into a float so --opt
// values validate like config values. Comma-separated values become lists.
func parseOptionValue(v string) any {
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if strings.Contains(v, ",") {
		return strings.Split(v, ",")
	}
	return v
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// GenerateCmd runs a single completion.
type GenerateCmd struct {
	Prompt string `arg:"" help:"Prompt text."`
	JSON   bool   `help:"Print a JSON object instead of plain text."`

	SamplingFlags `embed:""`
}

func (c *GenerateCmd) Run(ctx context.Context, a *app) error {
	t, err := a.transport(roleGeneration)
	if err != nil {
		return err
	}
	defer t.Close()

	text, err := llama.NewLlama(t, a.cfg.GenerateDefaults()).Generate(ctx, c.Prompt, c.options())
	if err != nil {
		return err
	}
	if c.JSON {
		return a.writeJSON(map[string]any{"prompt": c.Prompt, "text": text})
	}
	_, err = fmt.Fprintln(a.out, text)
	return err
}

// StreamCmd prints generated text as it arrives.
type StreamCmd struct {
	Prompt string `arg:"" help:"Prompt text."`

	SamplingFlags `embed:""`
}

func (c *StreamCmd) Run(ctx context.Context, a *app) error {
	t, err := a.transport(roleGeneration)
	if err != nil {
		return err
	}
	defer t.Close()

	seq, err := llama.NewLlama(t, a.cfg.GenerateDefaults()).Stream(ctx, c.Prompt, c.options())
	if err != nil {
		return err
	}
	for chunk, err := range seq {
		if err != nil {
			return err
		}
		if _, err := fmt.Fprint(a.out, chunk); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(a.out)
	return err
}

// EmbedCmd prints the embedding vector of a text as JSON.
type EmbedCmd struct {
	Text string `arg:"" help:"Text to embed."`

	EmbeddingFlags `embed:""`
}

func (c *EmbedCmd) Run(ctx context.Context, a *app) error {
	t, err := a.transport(roleEmbedding)
	if err != nil {
		return err
	}
	defer t.Close()

	vec, err := llama.NewEmbedding(t, c.options()).Embed(ctx, c.Text)
	if err != nil {
		return err
	}
	return a.writeJSON(map[string]any{"dimension": len(vec), "embedding": vec})
}

// SimilarityCmd prints the cosine similarity of two texts.
type SimilarityCmd struct {
	First  string `arg:"" help:"First text."`
	Second string `arg:"" help:"Second text."`

	EmbeddingFlags `embed:""`
}

func (c *SimilarityCmd) Run(ctx context.Context, a *app) error {
	t, err := a.transport(roleEmbedding)
	if err != nil {
		return err
	}
	defer t.Close()

	score, err := llama.NewEmbedding(t, c.options()).Similarity(ctx, c.First, c.Second)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "%.6f\n", score)
	return err
}

// RerankCmd scores documents against a query and prints them best first.
type RerankCmd struct {
	Query     string   `arg:"" help:"Query text."`
	Documents []string `arg:"" help:"Documents to score."`
	JSON      bool     `help:"Print a JSON array instead of a table."`

	EmbeddingFlags `embed:""`
}

func (c *RerankCmd) Run(ctx context.Context, a *app) error {
	t, err := a.transport(roleReranker)
	if err != nil {
		return err
	}
	defer t.Close()

	ranked, err := llama.NewReranker(t, c.options()).Rank(ctx, c.Query, c.Documents)
	if err != nil {
		return err
	}
	if c.JSON {
		return a.writeJSON(ranked)
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSCORE\tDOCUMENT")
	for i, doc := range ranked {
		fmt.Fprintf(w, "%d\t%.6f\t%s\n", i+1, doc.Score, doc.Document)
	}
	return w.Flush()
}

// ModelsCmd lists the models in a directory.
type ModelsCmd struct {
	Dir   string `arg:"" optional:"" help:"Models directory (default: models_dir from config)." type:"path"`
	Watch bool   `help:"Keep running and print the catalog whenever models change."`
}

func (c *ModelsCmd) Run(ctx context.Context, a *app) error {
	dir := c.Dir
	if dir == "" {
		dir = a.cfg.ModelsDir
	}
	if dir == "" {
		return fmt.Errorf("no models directory: pass DIR, --models-dir or set models_dir in the config")
	}

	catalog, err := models.Scan(dir)
	if err != nil {
		return err
	}
	if err := a.printCatalog(catalog); err != nil {
		return err
	}
	if !c.Watch {
		return nil
	}

	w := &models.Watcher{Logger: a.logger}
	return w.Watch(ctx, dir, func(catalog *models.Catalog) {
		if err := a.printCatalog(catalog); err != nil {
			a.logger.Warn("Failed to print catalog", "error", err)
		}
	})
}

func (a *app) printCatalog(c *models.Catalog) error {
	if len(c.Models) == 0 {
		_, err := fmt.Fprintf(a.out, "No models found in %s\n", c.Dir)
		return err
	}

	roles := map[string][]string{}
	assign := func(role string, pick func() (models.Model, error)) {
		if m, err := pick(); err == nil {
			roles[m.Name] = append(roles[m.Name], role)
		}
	}
	assign("generation", c.Generation)
	assign("embedding", c.Embedding)
	assign("rerank", c.Reranker)

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tROLES")
	for _, m := range c.Models {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, humanSize(m.Size), strings.Join(roles[m.Name], ","))
	}
	return w.Flush()
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// ValidateCmd checks the configuration and reports what would be used.
type ValidateCmd struct {
	Resolve bool `help:"Also discover the binary and pick models."`
}

func (c *ValidateCmd) Run(a *app) error {
	if c.Resolve {
		if _, err := a.binary(); err != nil {
			return err
		}
		if err := a.cfg.ResolveModels(); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(a.out, "Configuration is valid"); err != nil {
		return err
	}
	if !c.Resolve {
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "binary\t%s\n", a.cfg.Binary)
	fmt.Fprintf(w, "model\t%s\n", a.cfg.Model)
	fmt.Fprintf(w, "embedding_model\t%s\n", a.cfg.EmbeddingModel)
	fmt.Fprintf(w, "rerank_model\t%s\n", a.cfg.RerankModel)
	return w.Flush()
}

// SchemaCmd prints the configuration JSON Schema.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(a *app) error {
	if c.Compact {
		return json.NewEncoder(a.out).Encode(config.Schema())
	}
	return a.writeJSON(config.Schema())
}
