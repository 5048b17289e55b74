package transfer

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"splicer/internal/config"
	"splicer/internal/services"
)

// ProgressFunc receives bytes written so far.
type ProgressFunc func(written int64)

// RemoteStore is a destination for finished artifacts.
type RemoteStore interface {
	// Stat returns the size of name and whether it exists.
	Stat(ctx context.Context, name string) (int64, bool, error)
	// MkdirAll ensures the remote directory exists.
	MkdirAll(ctx context.Context) error
	// Put streams r to name through a temporary object and renames it into place.
	Put(ctx context.Context, name string, r io.Reader, progress ProgressFunc) (int64, error)
	// URL returns the durable public URL for name.
	URL(name string) string
	Close() error
}

// NewStore builds the configured backend.
func NewStore(cfg config.Transfer) (RemoteStore, error) {
	switch cfg.Backend {
	case config.TransferBackendLocal, "":
		return NewLocalStore(cfg.RemoteDir, cfg.BaseURL), nil
	case config.TransferBackendSFTP:
		return DialSFTP(cfg)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transfer", "new store",
			fmt.Sprintf("unknown backend %q", cfg.Backend), nil)
	}
}

// ValidateName rejects remote names that would escape the remote directory.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed != name {
		return services.Wrap(services.ErrValidation, "transfer", "validate name", "remote filename is empty or padded", nil)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return services.Wrap(services.ErrValidation, "transfer", "validate name",
			fmt.Sprintf("remote filename %q must be a plain file name", name), nil)
	}
	return nil
}

func joinURL(base, name string) string {
	if base == "" {
		return name
	}
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + url.PathEscape(name)
	}
	u.Path = path.Join(u.Path, name)
	return u.String()
}
