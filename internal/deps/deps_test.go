package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"splicer/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[0].Path != present {
		t.Fatalf("resolved path = %q, want %q", results[0].Path, present)
	}
	if results[1].Path != "" {
		t.Fatalf("missing binary should have no path, got %q", results[1].Path)
	}
}

func TestCheckSystemDepsUsesConfiguredBinaries(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := filepath.Join(binDir, executableName("ffmpeg"))
	ffprobe := filepath.Join(binDir, executableName("ffprobe"))
	script := []byte("#!/bin/sh\nexit 0\n")
	for _, path := range []string{ffmpeg, ffprobe} {
		if err := os.WriteFile(path, script, 0o755); err != nil {
			t.Fatalf("write stub: %v", err)
		}
	}

	cfg := config.Default()
	cfg.Encoder.FFmpegBinary = ffmpeg
	cfg.Encoder.FFprobeBinary = ffprobe
	cfg.Transcription.WhisperBinary = "clearly-not-present-whisper"
	cfg.Transcription.DefaultProvider = "openai"

	statuses := CheckSystemDeps(&cfg)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if missing := MissingRequired(statuses); len(missing) != 0 {
		t.Fatalf("expected no missing required binaries, got %v", missing)
	}

	cfg.Transcription.DefaultProvider = "whisper"
	missing := MissingRequired(CheckSystemDeps(&cfg))
	if len(missing) != 1 || missing[0] != "Whisper" {
		t.Fatalf("expected whisper to be required, got %v", missing)
	}
}

func TestRequirementsNilConfig(t *testing.T) {
	if Requirements(nil) != nil {
		t.Fatal("expected nil requirements for nil config")
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
