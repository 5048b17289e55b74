package transcribe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"splicer/internal/config"
	"splicer/internal/services"
	"splicer/internal/transcript"
)

// Provider names.
const (
	ProviderWhisper = "whisper"
	ProviderAPI     = "api"
)

// Provider transcribes one audio file.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error)
}

// Registry resolves providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	fallback  string
}

// NewRegistry returns an empty registry whose blank-name lookups resolve to
// fallback.
func NewRegistry(fallback string) *Registry {
	return &Registry{providers: make(map[string]Provider), fallback: strings.ToLower(fallback)}
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(p.Name())] = p
}

// Get returns the named provider, or the fallback for an empty name.
func (r *Registry) Get(name string) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = r.fallback
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[key]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "resolve provider",
			fmt.Sprintf("unknown provider %q", key), nil)
	}
	return p, nil
}

// Names lists registered providers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig registers the whisper CLI and, when an API key is
// configured, the HTTP provider.
func NewRegistryFromConfig(cfg *config.Config) *Registry {
	reg := NewRegistry(cfg.Transcription.DefaultProvider)
	reg.Register(NewWhisperCLI(WhisperConfig{
		Binary:   cfg.Transcription.WhisperBinary,
		Model:    cfg.Transcription.WhisperModel,
		Language: cfg.Transcription.Language,
		WorkDir:  cfg.Paths.WorkDir,
	}))
	if strings.TrimSpace(cfg.Transcription.APIKey) != "" {
		reg.Register(NewHTTPClient(HTTPConfig{
			URL:            cfg.Transcription.APIBaseURL,
			APIKey:         cfg.Transcription.APIKey,
			Model:          cfg.Transcription.APIModel,
			Language:       cfg.Transcription.Language,
			TimeoutSeconds: cfg.Transcription.TimeoutSeconds,
		}))
	}
	return reg
}

func normalize(segs []transcript.Segment) []transcript.Segment {
	out := make([]transcript.Segment, 0, len(segs))
	for _, s := range segs {
		text := strings.TrimSpace(s.Text)
		if text == "" || s.End <= s.Start {
			continue
		}
		if s.Start < 0 {
			s.Start = 0
		}
		out = append(out, transcript.Segment{Start: s.Start, End: s.End, Text: text})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
