// Package llamacli drives the llama.cpp command-line binaries as subprocesses
// and turns their undelimited terminal output into clean results.
//
// llama-cli prints a banner, echoes the prompt and appends a performance
// summary around the generated text. llamacli recovers the text from a
// finished run, filters the same noise out of a live stream, and parses the
// JSON or text output of llama-embedding into vectors and rerank scores.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/kadirpekel/llamacli/cmd/llamacli@latest
//
// Generate text:
//
//	llamacli --model ./models/qwen2.5-0.5b-instruct-q4_k_m.gguf generate "What is 2+2?"
//
// # Using as Go Library
//
//	t, err := llama.NewTransport(llama.Config{
//	    BinaryPath: "/opt/llama.cpp/build/bin/llama-cli",
//	    ModelPath:  "./models/qwen2.5-0.5b-instruct-q4_k_m.gguf",
//	})
//	if err != nil {
//	    return err
//	}
//	defer t.Close()
//
//	l := llama.NewLlama(t, nil)
//	seq, err := l.Stream(ctx, "Tell me a joke", options.Options{"max_tokens": 64})
//	if err != nil {
//	    return err
//	}
//	for token, err := range seq {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(token)
//	}
//
// # Packages
//
//   - pkg/options: per-mode option schemas, validation and flag building
//   - pkg/process: the single-child process supervisor
//   - pkg/output: batch recovery, streaming filters and result parsing
//   - pkg/llama: the transport and the Llama, Embedding and Reranker facades
//   - pkg/models: GGUF model discovery
//   - pkg/config: configuration loading
//
// # License
//
// Apache-2.0
package llamacli
