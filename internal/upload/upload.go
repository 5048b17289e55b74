// Package upload stores incoming media bytes in the staging directory.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"splicer/internal/fileutil"
	"splicer/internal/logging"
	"splicer/internal/metrics"
	"splicer/internal/services"
)

// Stored describes a persisted upload.
type Stored struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

var preferredExt = map[string]string{
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"video/x-matroska": ".mkv",
	"audio/mpeg":       ".mp3",
	"audio/mp4":        ".m4a",
	"audio/wav":        ".wav",
	"audio/x-wav":      ".wav",
	"audio/ogg":        ".ogg",
	"audio/webm":       ".weba",
	"audio/flac":       ".flac",
}

// Store writes uploads under a directory with generated names.
type Store struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxBytes rejects uploads larger than n bytes. Zero means unlimited.
func WithMaxBytes(n int64) Option {
	return func(s *Store) { s.maxBytes = n }
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{dir: dir, logger: logging.NewComponentLogger(logger, "upload")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExtensionFor maps a MIME type to a file extension. Only audio and video
// types are accepted.
func ExtensionFor(mimeType string) (string, error) {
	media, _, err := mime.ParseMediaType(strings.TrimSpace(mimeType))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "upload", "mime", fmt.Sprintf("invalid mime type %q", mimeType), err)
	}
	if !strings.HasPrefix(media, "video/") && !strings.HasPrefix(media, "audio/") {
		return "", services.Wrap(services.ErrValidation, "upload", "mime", fmt.Sprintf("unsupported mime type %q", media), nil)
	}
	if ext, ok := preferredExt[media]; ok {
		return ext, nil
	}
	if exts, _ := mime.ExtensionsByType(media); len(exts) > 0 {
		return exts[0], nil
	}
	return ".bin", nil
}

// Store streams r into a new file and returns where it landed. Nothing is
// left behind when the write fails or exceeds the limit.
func (s *Store) Store(ctx context.Context, r io.Reader, mimeType string) (Stored, error) {
	ext, err := ExtensionFor(mimeType)
	if err != nil {
		return Stored{}, err
	}
	path := filepath.Join(s.dir, uuid.NewString()+ext)

	src := r
	if s.maxBytes > 0 {
		src = &limitReader{r: r, remaining: s.maxBytes}
	}
	n, err := fileutil.WriteAtomic(ctx, path, src)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return Stored{}, services.Wrap(services.ErrValidation, "upload", "store",
				fmt.Sprintf("limit is %d bytes", s.maxBytes), err)
		}
		return Stored{}, services.Wrap(services.ErrPersistence, "upload", "store", path, err)
	}
	if n == 0 {
		_ = os.Remove(path)
		return Stored{}, services.Wrap(services.ErrValidation, "upload", "store", "empty upload", nil)
	}
	metrics.UploadBytesTotal.Add(float64(n))
	logging.WithContext(ctx, s.logger).Info("upload stored",
		logging.String(logging.FieldEventType, "upload_stored"),
		logging.String("path", path),
		logging.Int64("size_bytes", n),
	)
	return Stored{Path: path, Size: n, MimeType: mimeType}, nil
}

// limitReader fails instead of truncating once more than remaining bytes
// are read.
type limitReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
