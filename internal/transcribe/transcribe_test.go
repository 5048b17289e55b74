package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"splicer/internal/services"
)

const verboseJSON = `{"text":"hello there world","segments":[
 {"id":1,"start":2.5,"end":4.0,"text":" world"},
 {"id":0,"start":0.0,"end":2.5,"text":" hello there "},
 {"id":2,"start":4.0,"end":4.0,"text":"empty"}
]}`

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFF...."), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRegistryFallbackAndUnknown(t *testing.T) {
	reg := NewRegistry("whisper")
	reg.Register(NewWhisperCLI(WhisperConfig{}))
	p, err := reg.Get("")
	if err != nil || p.Name() != ProviderWhisper {
		t.Fatalf("Get(\"\") = %v, %v", p, err)
	}
	if _, err := reg.Get("deepgram"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown provider err = %v", err)
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "whisper" {
		t.Fatalf("Names = %v", names)
	}
}

func TestWhisperCLIParsesOutput(t *testing.T) {
	audio := writeAudio(t)
	w := NewWhisperCLI(WhisperConfig{Binary: "whisper", Model: "small", Language: "en", WorkDir: t.TempDir()})
	var gotArgs []string
	w.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		gotArgs = args
		var outDir string
		for i, a := range args {
			if a == "--output_dir" {
				outDir = args[i+1]
			}
		}
		return os.WriteFile(filepath.Join(outDir, "clip.json"), []byte(verboseJSON), 0o644)
	})

	segs, err := w.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 2 || segs[0].Text != "hello there" || segs[1].Start != 2.5 {
		t.Fatalf("segments = %+v", segs)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "--model small") || !strings.Contains(joined, "--language en") {
		t.Fatalf("args = %v", gotArgs)
	}
}

func TestWhisperCLIMissingBinary(t *testing.T) {
	w := NewWhisperCLI(WhisperConfig{Binary: "splicer-no-such-whisper", WorkDir: t.TempDir()})
	_, err := w.Transcribe(context.Background(), writeAudio(t))
	if !errors.Is(err, services.ErrToolUnavailable) {
		t.Fatalf("err = %v, want tool unavailable", err)
	}
}

func TestHTTPClientRetriesThrottling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if r.FormValue("response_format") != "verbose_json" {
			t.Errorf("response_format = %q", r.FormValue("response_format"))
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":"slow down"}`)
			return
		}
		fmt.Fprint(w, verboseJSON)
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{URL: srv.URL, APIKey: "key"}, WithRetryBackoff(4, time.Millisecond, 5*time.Millisecond))
	segs, err := c.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if calls.Load() != 3 || len(segs) != 2 {
		t.Fatalf("calls = %d, segs = %+v", calls.Load(), segs)
	}
}

func TestHTTPClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{URL: srv.URL, APIKey: "key"}, WithRetryBackoff(4, time.Millisecond, time.Millisecond))
	_, err := c.Transcribe(context.Background(), writeAudio(t))
	if !errors.Is(err, services.ErrProcessing) || calls.Load() != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls.Load())
	}
}

func TestHTTPClientRequiresKey(t *testing.T) {
	c := NewHTTPClient(HTTPConfig{URL: "http://127.0.0.1:1"})
	if _, err := c.Transcribe(context.Background(), "x.wav"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("parseRetryAfter(3) = %v, %v", d, ok)
	}
	if _, ok := parseRetryAfter("soon"); ok {
		t.Fatal("expected invalid value")
	}
}
