package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"splicer/internal/config"
	"splicer/internal/fileutil"
	"splicer/internal/services"
)

// SFTPStore uploads over an SSH connection.
type SFTPStore struct {
	conn    *ssh.Client
	client  *sftp.Client
	dir     string
	baseURL string
}

// ClientConfig builds the SSH client configuration for cfg. Host keys are
// verified against known_hosts unless the insecure flag is set.
func ClientConfig(cfg config.Transfer) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "transfer", "read key", cfg.KeyFile, err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "transfer", "parse key", cfg.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "transfer", "auth", "sftp requires key_file or password", nil)
	}

	var hostKey ssh.HostKeyCallback
	switch {
	case cfg.InsecureIgnoreHostKey:
		hostKey = ssh.InsecureIgnoreHostKey()
	case cfg.KnownHosts != "":
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "transfer", "known hosts", cfg.KnownHosts, err)
		}
		hostKey = cb
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transfer", "known hosts",
			"set known_hosts or insecure_ignore_host_key", nil)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

// DialSFTP connects to the configured host.
func DialSFTP(cfg config.Transfer) (*SFTPStore, error) {
	clientCfg, err := ClientConfig(cfg)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return nil, services.Wrap(services.ErrTransfer, "transfer", "dial", addr, err)
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, services.Wrap(services.ErrTransfer, "transfer", "sftp session", addr, err)
	}
	return &SFTPStore{conn: conn, client: client, dir: cfg.RemoteDir, baseURL: cfg.BaseURL}, nil
}

func (s *SFTPStore) Stat(_ context.Context, name string) (int64, bool, error) {
	info, err := s.client.Stat(path.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return info.Size(), true, nil
}

func (s *SFTPStore) MkdirAll(context.Context) error {
	return s.client.MkdirAll(s.dir)
}

func (s *SFTPStore) Put(ctx context.Context, name string, r io.Reader, progress ProgressFunc) (int64, error) {
	final := path.Join(s.dir, name)
	tmp := path.Join(s.dir, "."+name+"."+uuid.NewString()+".part")
	f, err := s.client.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}
	var fn fileutil.ProgressFunc
	if progress != nil {
		fn = fileutil.ProgressFunc(progress)
	}
	n, err := fileutil.CopyWithProgress(ctx, f, r, fn)
	if err != nil {
		_ = f.Close()
		_ = s.client.Remove(tmp)
		return 0, fmt.Errorf("upload %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = s.client.Remove(tmp)
		return 0, fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := s.client.PosixRename(tmp, final); err != nil {
		_ = s.client.Remove(tmp)
		return 0, fmt.Errorf("rename %s: %w", final, err)
	}
	return n, nil
}

func (s *SFTPStore) URL(name string) string {
	if s.baseURL == "" {
		return "sftp://" + s.conn.RemoteAddr().String() + path.Join("/", s.dir, name)
	}
	return joinURL(s.baseURL, name)
}

func (s *SFTPStore) Close() error {
	var errs []error
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	return errors.Join(errs...)
}
