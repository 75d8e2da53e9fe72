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

// Package models finds GGUF model files in a directory and picks the model
// to use for generation, embedding and reranking.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extension is the model file extension llama.cpp loads.
const Extension = ".gguf"

// ErrNoModels is returned when a directory holds no model files.
var ErrNoModels = errors.New("no GGUF model found")

// Model is one model file.
type Model struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Catalog is the sorted list of models in a directory.
type Catalog struct {
	Dir    string  `json:"dir"`
	Models []Model `json:"models"`
}

// Scan lists the model files directly inside dir, sorted by name.
func Scan(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read models directory: %w", err)
	}

	c := &Catalog{Dir: dir}
	for _, entry := range entries {
		if entry.IsDir() || !IsModelFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		c.Models = append(c.Models, Model{
			Name: entry.Name(),
			Path: filepath.Join(dir, entry.Name()),
			Size: info.Size(),
		})
	}
	sort.Slice(c.Models, func(i, j int) bool { return c.Models[i].Name < c.Models[j].Name })
	return c, nil
}

// IsModelFile reports whether name has the model extension.
func IsModelFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), Extension)
}

// Generation returns the first model.
func (c *Catalog) Generation() (Model, error) {
	if len(c.Models) == 0 {
		return Model{}, fmt.Errorf("%w in %s", ErrNoModels, c.Dir)
	}
	return c.Models[0], nil
}

// Embedding returns the first model whose name contains "embedding", else
// the generation model.
func (c *Catalog) Embedding() (Model, error) {
	if m, ok := c.firstContaining("embedding"); ok {
		return m, nil
	}
	return c.Generation()
}

// Reranker returns the first model whose name contains "rerank", else the
// embedding model.
func (c *Catalog) Reranker() (Model, error) {
	if m, ok := c.firstContaining("rerank"); ok {
		return m, nil
	}
	return c.Embedding()
}

// Find returns the model with the given file name.
func (c *Catalog) Find(name string) (Model, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

func (c *Catalog) firstContaining(word string) (Model, bool) {
	for _, m := range c.Models {
		if strings.Contains(strings.ToLower(m.Name), word) {
			return m, true
		}
	}
	return Model{}, false
}
