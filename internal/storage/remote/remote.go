// Package remote lists and fetches boundary archives from the acquisition server.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"path"
	"time"

	"github.com/avast/retry-go"
	"github.com/jgivc/boundaryimporter/internal/common"
	"github.com/jgivc/boundaryimporter/internal/entity"
	"github.com/spf13/afero"
)

const (
	SchemeFTP  = "ftp"
	SchemeSFTP = "sftp"
	SchemeFile = "file"

	defaultFTPPort        = "21"
	defaultSFTPPort       = "22"
	defaultConnectTimeout = 30 * time.Second
	retryDelay            = time.Second
)

type Options struct {
	URL             string
	Username        string
	Password        string
	PrivateKeyFile  string
	KnownHostsFile  string
	ConnectTimeout  time.Duration
	ConnectAttempts uint
}

// Source is an open connection to the acquisition server.
type Source interface {
	List(ctx context.Context, dir string) ([]entity.RemoteFile, error)
	Fetch(ctx context.Context, locator string) ([]byte, error)
	Close() error
}

// Open connects to the server named by opts.URL. Connection failures are retried
// and finally reported as common.ErrSetup.
func Open(ctx context.Context, opts Options, log *slog.Logger) (Source, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot parse acquisition url: %w", common.ErrSetup, err)
	}

	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}

	if opts.ConnectAttempts < 1 {
		opts.ConnectAttempts = 1
	}

	log = log.With(slog.String("scheme", u.Scheme), slog.String("host", u.Host))

	var connect func() (Source, error)

	switch u.Scheme {
	case SchemeFTP:
		connect = func() (Source, error) {
			s, err := dialFTP(ctx, u, opts, log)
			if err != nil {
				return nil, err
			}

			return s, nil
		}
	case SchemeSFTP:
		connect = func() (Source, error) {
			s, err := dialSFTP(ctx, u, opts, log)
			if err != nil {
				return nil, err
			}

			return s, nil
		}
	case SchemeFile:
		return NewLocalSource(afero.NewBasePathFs(afero.NewOsFs(), u.Path), log), nil
	default:
		return nil, fmt.Errorf("%w: unsupported acquisition url scheme %q", common.ErrSetup, u.Scheme)
	}

	var src Source

	err = retry.Do(func() error {
		var err error
		src, err = connect()
		if err != nil {
			log.Warn("Cannot connect to acquisition server", slog.Any("error", err))
		}

		return err
	},
		retry.Context(ctx),
		retry.Attempts(opts.ConnectAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot connect to %s: %w", common.ErrSetup, u.Redacted(), err)
	}

	log.Info("Connected to acquisition server")

	return src, nil
}

func hostPort(u *url.URL, defaultPort string) string {
	if u.Port() != "" {
		return u.Host
	}

	return net.JoinHostPort(u.Hostname(), defaultPort)
}

// credentials prefers the explicit options over the user info of the url.
func credentials(u *url.URL, opts Options) (string, string) {
	user, password := opts.Username, opts.Password

	if u.User != nil {
		if user == "" {
			user = u.User.Username()
		}

		if p, ok := u.User.Password(); ok && password == "" {
			password = p
		}
	}

	return user, password
}

func rootPath(p string) string {
	if p == "" {
		return "/"
	}

	return path.Clean(p)
}
