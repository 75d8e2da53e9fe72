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

package models

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of events, e.g. a large model being copied.
const DefaultDebounce = 500 * time.Millisecond

// Watcher rescans a models directory when model files appear, change or go
// away.
type Watcher struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watch calls onChange with a fresh catalog after every burst of model file
// events in dir. It blocks until ctx is done.
func (w *Watcher) Watch(ctx context.Context, dir string, onChange func(*Catalog)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger.Info("Watching models directory", "path", dir)
	defer logger.Info("Stopped watching models directory", "path", dir)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || !IsModelFile(event.Name) {
				continue
			}
			logger.Debug("Model file event", "path", event.Name, "op", event.Op.String())
			timer.Reset(debounce)

		case <-timer.C:
			catalog, err := Scan(dir)
			if err != nil {
				logger.Warn("Failed to rescan models directory", "path", dir, "error", err)
				continue
			}
			onChange(catalog)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Models watcher error", "path", dir, "error", err)
		}
	}
}
