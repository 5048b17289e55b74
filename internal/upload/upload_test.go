package upload

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"splicer/internal/logging"
	"splicer/internal/services"
)

func TestStoreWritesFileWithMimeExtension(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, logging.NewNop())
	stored, err := s.Store(context.Background(), strings.NewReader("media-bytes"), "video/mp4")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if filepath.Ext(stored.Path) != ".mp4" || filepath.Dir(stored.Path) != dir {
		t.Fatalf("unexpected path %s", stored.Path)
	}
	data, err := os.ReadFile(stored.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "media-bytes" || stored.Size != int64(len(data)) {
		t.Fatalf("unexpected contents %q size %d", data, stored.Size)
	}

	other, err := s.Store(context.Background(), strings.NewReader("more"), "audio/mpeg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if other.Path == stored.Path || filepath.Ext(other.Path) != ".mp3" {
		t.Fatalf("expected distinct mp3 path, got %s", other.Path)
	}
}

func TestStoreRejectsNonMedia(t *testing.T) {
	s := NewStore(t.TempDir(), logging.NewNop())
	for _, mt := range []string{"text/plain", "not a mime", ""} {
		if _, err := s.Store(context.Background(), strings.NewReader("x"), mt); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%q: expected validation error, got %v", mt, err)
		}
	}
}

func TestStoreEnforcesLimitWithoutLeavingFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, logging.NewNop(), WithMaxBytes(8))
	if _, err := s.Store(context.Background(), bytes.NewReader(make([]byte, 8)), "audio/wav"); err != nil {
		t.Fatalf("expected exact-limit upload to succeed: %v", err)
	}
	_, err := s.Store(context.Background(), bytes.NewReader(make([]byte, 9)), "audio/wav")
	if !errors.Is(err, ErrTooLarge) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected too large validation error, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the accepted upload on disk, got %d entries", len(entries))
	}
}

func TestStoreRejectsEmptyUpload(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, logging.NewNop())
	if _, err := s.Store(context.Background(), strings.NewReader(""), "video/webm"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty directory, got %d entries", len(entries))
	}
}

func TestExtensionFor(t *testing.T) {
	cases := map[string]string{
		"video/mp4":                 ".mp4",
		"video/quicktime":           ".mov",
		"audio/wav; charset=binary": ".wav",
	}
	for in, want := range cases {
		got, err := ExtensionFor(in)
		if err != nil || got != want {
			t.Fatalf("ExtensionFor(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}
