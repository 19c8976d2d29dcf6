// Copyright the Treeflow authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// DefaultMaxIterations bounds the number of blocks popped from the worklist in one
// analysis run. A run exceeding the bound is reported as an error instead of hanging on
// an ill-behaved lattice.
const DefaultMaxIterations = 100000

// Config holds the options of the tools in this module.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options

	sourceFile string
}

// Options are the options that can be set in a yaml config file.
type Options struct {
	// ReportsDir is the directory where rendered graphs and reports are written. If empty,
	// outputs are written next to the binary's working directory.
	ReportsDir string `yaml:"reports-dir"`

	// MaxIterations bounds the fixed-point computation of the dataflow analyses. If it is
	// <= 0 it is replaced by DefaultMaxIterations.
	MaxIterations int `yaml:"max-iterations"`

	// Loglevel controls the verbosity of the tools
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Options: Options{
			ReportsDir:    "",
			MaxIterations: DefaultMaxIterations,
			LogLevel:      int(InfoLevel),
			SilenceWarn:   false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if errYaml := yaml.Unmarshal(b, cfg); errYaml != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", errYaml)
	}

	cfg.sourceFile = filename

	if cfg.ReportsDir != "" {
		if err := os.MkdirAll(cfg.ReportsDir, 0750); err != nil {
			return nil, fmt.Errorf("could not create directory %s: %w", cfg.ReportsDir, err)
		}
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}

	return cfg, nil
}

// SourceFile returns the name of the file the config was loaded from, or the empty string
// for a default config.
func (c Config) SourceFile() string {
	return c.sourceFile
}

// ReportPath resolves an output file name under ReportsDir. Absolute names and names
// resolved without a reports directory are returned unchanged.
func (c Config) ReportPath(name string) string {
	if c.ReportsDir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ReportsDir, name)
}
