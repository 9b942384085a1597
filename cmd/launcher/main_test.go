package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}
	if strings.TrimSpace(stdout.String()) != version {
		t.Errorf("stdout = %q, want %q", stdout.String(), version)
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--nope"}, &stdout, &stderr); code != 2 {
		t.Errorf("run() = %d, want 2", code)
	}
}

func TestRun_ConfigErrorFlushesSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  type: tape\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"--config", path}, &stdout, &stderr); code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}

	if !strings.Contains(stdout.String(), "failed to load config") {
		t.Errorf("log output missing config error: %s", stdout.String())
	}
	traces := stderr.String()
	if !strings.Contains(traces, "launcher.run") {
		t.Fatalf("span not exported before exit, trace output: %q", traces)
	}
	if !strings.Contains(traces, "failed to load config") {
		t.Errorf("span status missing error: %s", traces)
	}
}
