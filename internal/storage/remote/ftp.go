package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"

	"github.com/jgivc/boundaryimporter/internal/entity"
	"github.com/jlaffaye/ftp"
)

const anonymousUser = "anonymous"

type ftpSource struct {
	conn *ftp.ServerConn
	root string
	log  *slog.Logger
}

// dialFTP opens a passive mode session. The url path is the root the listed directories
// are resolved against.
func dialFTP(ctx context.Context, u *url.URL, opts Options, log *slog.Logger) (*ftpSource, error) {
	conn, err := ftp.Dial(hostPort(u, defaultFTPPort),
		ftp.DialWithTimeout(opts.ConnectTimeout),
		ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("cannot dial ftp server: %w", err)
	}

	user, password := credentials(u, opts)
	if user == "" {
		user, password = anonymousUser, anonymousUser
	}

	if err := conn.Login(user, password); err != nil {
		_ = conn.Quit()

		return nil, fmt.Errorf("cannot login to ftp server: %w", err)
	}

	return &ftpSource{
		conn: conn,
		root: rootPath(u.Path),
		log:  log.With(slog.String("item", "FTPSource")),
	}, nil
}

func (s *ftpSource) List(ctx context.Context, dir string) ([]entity.RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirPath := path.Join(s.root, dir)

	entries, err := s.conn.List(dirPath)
	if err != nil {
		return nil, fmt.Errorf("cannot list %s: %w", dirPath, err)
	}

	files := make([]entity.RemoteFile, 0, len(entries))
	for _, entry := range entries {
		name := path.Base(entry.Name)

		if entry.Type == ftp.EntryTypeLink {
			s.log.Warn("Cannot resolve link, skip", slog.String("name", name), slog.String("target", entry.Target))

			continue
		}

		if entry.Type != ftp.EntryTypeFile {
			s.log.Debug("Skip entry", slog.String("name", name), slog.String("type", entry.Type.String()))

			continue
		}

		files = append(files, entity.RemoteFile{
			Name:    name,
			Locator: path.Join(dirPath, name),
		})
	}

	return files, nil
}

func (s *ftpSource) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := s.conn.Retr(locator)
	if err != nil {
		return nil, fmt.Errorf("cannot retrieve %s: %w", locator, err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", locator, err)
	}

	return data, nil
}

func (s *ftpSource) Close() error {
	return s.conn.Quit()
}
