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
	"fmt"
	"os"

	"github.com/kadirpekel/llamacli/pkg/config"
	"github.com/kadirpekel/llamacli/pkg/logger"
)

const (
	// LogFileEnvVar is the environment variable name for log file path
	LogFileEnvVar = "LOG_FILE"
	// LogLevelEnvVar is the environment variable name for log level
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar is the environment variable name for log format
	LogFormatEnvVar = "LOG_FORMAT"
)

// resolveLoggerConfig picks each logger setting by priority:
// CLI flag > env var > config file > default.
func resolveLoggerConfig(cli *CLI, fromFile config.LoggerConfig) config.LoggerConfig {
	pick := func(flag, env, file string) string {
		if flag != "" {
			return flag
		}
		if v := os.Getenv(env); v != "" {
			return v
		}
		return file
	}
	resolved := config.LoggerConfig{
		Level:  pick(cli.LogLevel, LogLevelEnvVar, fromFile.Level),
		File:   pick(cli.LogFile, LogFileEnvVar, fromFile.File),
		Format: pick(cli.LogFormat, LogFormatEnvVar, fromFile.Format),
	}
	resolved.SetDefaults()
	return resolved
}

// initLogger installs the process logger and returns its cleanup function.
func initLogger(cfg config.LoggerConfig) (func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger settings: %w", err)
	}
	level, _ := logger.ParseLevel(cfg.Level)

	output := os.Stderr
	cleanup := func() {}
	if cfg.File != "" {
		file, closeFile, err := logger.OpenLogFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = closeFile
	}

	logger.Init(level, output, cfg.Format)
	return cleanup, nil
}
