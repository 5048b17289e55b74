package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"splicer/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Paths.StagingDir = filepath.Join(base, "uploads")
	cfgVal.Paths.WorkDir = filepath.Join(base, "renders")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockDir = filepath.Join(base, "locks")
	cfgVal.Paths.DatabasePath = filepath.Join(base, "splicer.db")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Transfer.Backend = config.TransferBackendLocal
	cfgVal.Transfer.RemoteDir = filepath.Join(base, "remote")
	cfgVal.Transfer.BaseURL = "https://media.example.test/files"
	cfgVal.Queue.PollIntervalSeconds = 1
	cfgVal.Queue.BackoffBaseSeconds = 1
	cfgVal.Queue.BackoffMaxSeconds = 60

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFormats replaces the configured render targets.
func WithFormats(formats ...config.Format) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Formats = formats
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		for _, name := range names {
			WriteScript(b.t, b.binDir(), name, "exit 0\n")
		}
		b.prependPath()
	}
}

// WithScript writes an executable named name whose body is the given shell
// script and prepends its directory to PATH.
func WithScript(name, body string) ConfigOption {
	return func(b *configBuilder) {
		WriteScript(b.t, b.binDir(), name, body)
		b.prependPath()
	}
}

// WriteScript writes an executable /bin/sh script into dir and returns its path.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

func (b *configBuilder) binDir() string {
	return filepath.Join(b.baseDir, "bin")
}

func (b *configBuilder) prependPath() {
	dir := b.binDir()
	b.t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.DataDir
}
