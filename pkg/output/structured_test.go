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

package output

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name       string
		stdout     string
		want       []float64
		wantScalar bool
	}{
		{"embedding vector", `{"data":[{"embedding":[0.1,0.2,0.3]}]}`, []float64{0.1, 0.2, 0.3}, false},
		{"rerank scalar", `{"data":[{"embedding":[0.73]}]}`, []float64{0.73}, true},
		{"surrounding whitespace", "\n  {\"object\":\"list\",\"data\":[{\"index\":0,\"embedding\":[-1.5e-2, 2]}]}\n", []float64{-0.015, 2}, false},
		{"text single score", "rerank score 0:    0.612\n", []float64{0.612}, true},
		{"text multiple scores", "batch_decode: n_tokens = 12\nrerank score 0:   -2.500\nnoise\nrerank score 1:   +0.250\n", []float64{-2.5, 0.25}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResult(tt.stdout)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got.Vector(), 1e-9)

			v, ok := got.Scalar()
			assert.Equal(t, tt.wantScalar, ok)
			if ok {
				assert.InDelta(t, tt.want[0], v, 1e-9)
				assert.IsType(t, float64(0), got.Value())
			} else {
				assert.IsType(t, []float64{}, got.Value())
			}
			assert.InDelta(t, tt.want[0], got.First(), 1e-9)
		})
	}
}

func TestParseResult_Errors(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		wantMsg string
	}{
		{"empty", "  \n", "llama.cpp output is empty"},
		{"missing data", `{"object":"list"}`, "missing embedding array"},
		{"empty data", `{"data":[]}`, "missing embedding array"},
		{"missing embedding", `{"data":[{"index":0}]}`, "missing embedding array"},
		{"empty embedding", `{"data":[{"embedding":[]}]}`, "embedding array is empty"},
		{"wrong type", `{"data":[{"embedding":[true]}]}`, "invalid embedding JSON structure"},
		{"no scores", "error: failed to load model\n", "could not parse llama.cpp output"},
		{"score without decimals", "rerank score 0: 1\n", "could not parse llama.cpp output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResult(tt.stdout)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.True(t, errors.Is(err, ErrParse))
		})
	}
}

func TestParseError_TruncatesOutput(t *testing.T) {
	long := strings.Repeat("ü", 500)
	_, err := ParseResult(long)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, strings.Repeat("ü", 200), perr.Output)
}

func TestResult_JSON(t *testing.T) {
	b, err := json.Marshal(Result{Values: []float64{0.5}})
	require.NoError(t, err)
	assert.JSONEq(t, `0.5`, string(b))

	b, err = json.Marshal(Result{Values: []float64{0.5, 1}})
	require.NoError(t, err)
	assert.JSONEq(t, `[0.5, 1]`, string(b))

	assert.Equal(t, 0.0, Result{}.First())
}
