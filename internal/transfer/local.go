package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"splicer/internal/fileutil"
)

// LocalStore writes into a directory, typically a mounted share served at
// baseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore returns a store rooted at dir.
func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{dir: dir, baseURL: baseURL}
}

func (s *LocalStore) Stat(_ context.Context, name string) (int64, bool, error) {
	info, err := os.Stat(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return info.Size(), true, nil
}

func (s *LocalStore) MkdirAll(context.Context) error {
	if s.dir == "" {
		return fmt.Errorf("local transfer directory is not configured")
	}
	return os.MkdirAll(s.dir, 0o755)
}

func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader, progress ProgressFunc) (int64, error) {
	var fn fileutil.ProgressFunc
	if progress != nil {
		fn = fileutil.ProgressFunc(progress)
	}
	return fileutil.WriteAtomic(ctx, filepath.Join(s.dir, name), readerWithProgress(ctx, r, fn))
}

func (s *LocalStore) URL(name string) string {
	if s.baseURL == "" {
		return (&url.URL{Scheme: "file", Path: filepath.Join(s.dir, name)}).String()
	}
	return joinURL(s.baseURL, name)
}

func (s *LocalStore) Close() error { return nil }

type progressReader struct {
	ctx  context.Context
	r    io.Reader
	read int64
	fn   fileutil.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.fn != nil && n > 0 {
		p.fn(p.read)
	}
	return n, err
}

func readerWithProgress(ctx context.Context, r io.Reader, fn fileutil.ProgressFunc) io.Reader {
	if fn == nil {
		return r
	}
	return &progressReader{ctx: ctx, r: r, fn: fn}
}
