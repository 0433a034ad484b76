package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path"

	"github.com/jgivc/boundaryimporter/internal/entity"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type sftpSource struct {
	ssh    *ssh.Client
	client *sftp.Client
	root   string
	log    *slog.Logger
}

func dialSFTP(ctx context.Context, u *url.URL, opts Options, log *slog.Logger) (*sftpSource, error) {
	log = log.With(slog.String("item", "SFTPSource"))

	cfg, err := sshClientConfig(u, opts, log)
	if err != nil {
		return nil, err
	}

	addr := hostPort(u, defaultSFTPPort)

	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("cannot dial sftp server: %w", err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("cannot open ssh session: %w", err)
	}

	sshClient := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()

		return nil, fmt.Errorf("cannot start sftp subsystem: %w", err)
	}

	return &sftpSource{
		ssh:    sshClient,
		client: client,
		root:   rootPath(u.Path),
		log:    log,
	}, nil
}

// sshClientConfig tries public key authentication first, then password.
func sshClientConfig(u *url.URL, opts Options, log *slog.Logger) (*ssh.ClientConfig, error) {
	user, password := credentials(u, opts)

	var auth []ssh.AuthMethod

	if opts.PrivateKeyFile != "" {
		key, err := os.ReadFile(opts.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read private key: %w", err)
		}

		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("cannot parse private key: %w", err)
		}

		auth = append(auth, ssh.PublicKeys(signer))
	}

	if password != "" {
		auth = append(auth, ssh.Password(password))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if opts.KnownHostsFile != "" {
		cb, err := knownhosts.New(opts.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("cannot load known hosts: %w", err)
		}

		hostKeyCallback = cb
	} else {
		log.Warn("Known hosts file is not set, host key is not verified")
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.ConnectTimeout,
	}, nil
}

func (s *sftpSource) List(ctx context.Context, dir string) ([]entity.RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirPath := path.Join(s.root, dir)

	infos, err := s.client.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("cannot list %s: %w", dirPath, err)
	}

	files := make([]entity.RemoteFile, 0, len(infos))
	for _, info := range infos {
		locator := path.Join(dirPath, info.Name())

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := s.client.Stat(locator)
			if err != nil {
				s.log.Warn("Cannot resolve symlink, skip", slog.String("name", info.Name()), slog.Any("error", err))

				continue
			}

			info = target
		}

		if !info.Mode().IsRegular() {
			continue
		}

		files = append(files, entity.RemoteFile{
			Name:    path.Base(locator),
			Locator: locator,
		})
	}

	return files, nil
}

func (s *sftpSource) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.client.Open(locator)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", locator, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", locator, err)
	}

	return data, nil
}

func (s *sftpSource) Close() error {
	cerr := s.client.Close()
	if s.ssh == nil {
		return cerr
	}

	if err := s.ssh.Close(); err != nil && cerr == nil {
		cerr = err
	}

	return cerr
}
