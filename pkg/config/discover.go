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

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// DefaultBinaryName is the generation binary looked up by DiscoverBinary.
const DefaultBinaryName = "llama-cli"

// ErrBinaryNotDiscovered is returned when no llama.cpp binary can be found.
var ErrBinaryNotDiscovered = errors.New("llama.cpp binary not found")

// BinaryCandidates lists where DiscoverBinary looks, in order: the usual
// llama.cpp build locations under each root, system install directories and
// ~/.local/bin.
func BinaryCandidates(roots ...string) []string {
	var candidates []string
	for _, root := range roots {
		candidates = append(candidates,
			filepath.Join(root, "llama.cpp", "build", "bin", DefaultBinaryName),
			filepath.Join(root, "llama.cpp", DefaultBinaryName),
			filepath.Join(root, "llama.cpp", "main"),
		)
	}
	candidates = append(candidates,
		filepath.Join("/usr/local/bin", DefaultBinaryName),
		filepath.Join("/usr/bin", DefaultBinaryName),
	)
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local", "bin", DefaultBinaryName))
	}
	return candidates
}

// DiscoverBinary returns the first executable candidate, falling back to a
// PATH lookup.
func DiscoverBinary(roots ...string) (string, error) {
	for _, candidate := range BinaryCandidates(roots...) {
		if isExecutableFile(candidate) {
			if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
				return resolved, nil
			}
			return candidate, nil
		}
	}
	if path, err := exec.LookPath(DefaultBinaryName); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%w: build llama.cpp or set binary in the config", ErrBinaryNotDiscovered)
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode().Perm()&0o111 != 0
}
