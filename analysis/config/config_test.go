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
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LogLevel != 4 {
		t.Errorf("log level: got %d, want 4", cfg.LogLevel)
	}
	if cfg.MaxIterations != 500 {
		t.Errorf("max iterations: got %d, want 500", cfg.MaxIterations)
	}
	if !cfg.SilenceWarn {
		t.Error("silence-warn not set")
	}
	if cfg.SourceFile() != path {
		t.Errorf("source file: got %q, want %q", cfg.SourceFile(), path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join("testdata", "does-not-exist.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadGlobal(t *testing.T) {
	SetGlobalConfig(filepath.Join("testdata", "config.yaml"))
	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal returned error: %v", err)
	}
	if cfg.MaxIterations != 500 {
		t.Errorf("max iterations: got %d, want 500", cfg.MaxIterations)
	}
}

func TestDefaults(t *testing.T) {
	cfg := NewDefault()
	if cfg.MaxIterations != DefaultMaxIterations {
		t.Errorf("max iterations: got %d, want %d", cfg.MaxIterations, DefaultMaxIterations)
	}
	if cfg.LogLevel != int(InfoLevel) {
		t.Errorf("log level: got %d, want info", cfg.LogLevel)
	}
}

func TestReportPath(t *testing.T) {
	abs, err := filepath.Abs("cfg.dot")
	if err != nil {
		t.Fatal(err)
	}
	cfg := NewDefault()
	if got := cfg.ReportPath("cfg.dot"); got != "cfg.dot" {
		t.Errorf("without reports-dir: got %q, want %q", got, "cfg.dot")
	}
	cfg.ReportsDir = filepath.Join("out", "reports")
	if got, want := cfg.ReportPath("cfg.dot"), filepath.Join("out", "reports", "cfg.dot"); got != want {
		t.Errorf("relative name: got %q, want %q", got, want)
	}
	if got := cfg.ReportPath(abs); got != abs {
		t.Errorf("absolute name: got %q, want %q", got, abs)
	}
}

func TestLogGroupLevels(t *testing.T) {
	cfg := NewDefault()
	cfg.LogLevel = int(InfoLevel)
	log := NewLogGroup(cfg)
	var buf bytes.Buffer
	log.SetAllOutput(&buf)
	log.SetAllFlags(0)

	log.Debugf("hidden %d", 1)
	log.Infof("shown %d", 2)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug output leaked at info level: %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("info output missing: %q", out)
	}
}

func TestLogGroupSilenceWarn(t *testing.T) {
	cfg := NewDefault()
	cfg.SilenceWarn = true
	log := NewLogGroup(cfg)
	var buf bytes.Buffer
	log.SetAllOutput(&buf)
	log.SetAllFlags(0)

	log.Warnf("quiet")
	if got := buf.String(); strings.Contains(got, "quiet") {
		t.Errorf("warning not silenced: %q", got)
	}
}
