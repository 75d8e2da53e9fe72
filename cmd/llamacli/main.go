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

// Command llamacli runs llama.cpp models from the command line.
//
// Usage:
//
//	llamacli --model ./models/qwen.gguf generate "What is 2+2?"
//	llamacli --models-dir ./models stream "Tell me a story" --max-tokens 256
//	llamacli --models-dir ./models rerank "capital of France" "Paris is..." "Berlin is..."
//	llamacli --config llamacli.yaml validate
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/llamacli"
)

// CLI defines the command-line interface.
type CLI struct {
	Generate   GenerateCmd   `cmd:"" help:"Generate text for a prompt."`
	Stream     StreamCmd     `cmd:"" help:"Stream generated text as it is produced."`
	Embed      EmbedCmd      `cmd:"" help:"Print the embedding vector of a text."`
	Similarity SimilarityCmd `cmd:"" help:"Print the cosine similarity of two texts."`
	Rerank     RerankCmd     `cmd:"" help:"Score documents against a query."`
	Models     ModelsCmd     `cmd:"" help:"List GGUF models and the role each is picked for."`
	Validate   ValidateCmd   `cmd:"" help:"Validate configuration file."`
	Schema     SchemaCmd     `cmd:"" help:"Print the JSON Schema of the configuration file."`
	Version    VersionCmd    `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path" env:"LLAMACLI_CONFIG"`
	EnvFile   string `name:"env-file" help:"Path to a .env file." type:"path"`
	Binary    string `help:"Path to the llama-cli binary (discovered when empty)." type:"path" env:"LLAMA_CLI_BINARY"`
	Model     string `short:"m" help:"Path to the GGUF model." type:"path"`
	ModelsDir string `name:"models-dir" help:"Directory scanned for GGUF models." type:"path"`

	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`

	MetricsAddr string `name:"metrics-addr" help:"Serve Prometheus metrics on this address." placeholder:"ADDR"`
	Trace       string `help:"Export traces (stdout, otlp)." placeholder:"EXPORTER"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(a *app) error {
	_, err := fmt.Fprintln(a.out, llamacli.GetVersion().String())
	return err
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("llamacli"),
		kong.Description("Run llama.cpp models through the llama-cli and llama-embedding binaries."),
		kong.UsageOnError(),
		kong.Writers(stdout, os.Stderr),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, &cli, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run(a)
}
