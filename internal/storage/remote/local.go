package remote

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/jgivc/boundaryimporter/internal/common"
	"github.com/jgivc/boundaryimporter/internal/entity"
	"github.com/spf13/afero"
)

type localSource struct {
	fs  afero.Fs
	log *slog.Logger
}

// NewLocalSource serves archives from fs. Directories are resolved against the fs root.
func NewLocalSource(fs afero.Fs, log *slog.Logger) *localSource {
	return &localSource{
		fs:  fs,
		log: log.With(slog.String("item", "LocalSource")),
	}
}

func (s *localSource) List(ctx context.Context, dir string) ([]entity.RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirPath := path.Join("/", dir)

	infos, err := afero.ReadDir(s.fs, dirPath)
	if err != nil {
		return nil, fmt.Errorf("cannot list %s: %w", dirPath, err)
	}

	files := make([]entity.RemoteFile, 0, len(infos))
	for _, info := range infos {
		locator := path.Join(dirPath, info.Name())

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := s.fs.Stat(locator)
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
			Name:    info.Name(),
			Locator: locator,
		})
	}

	return files, nil
}

func (s *localSource) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(locator)
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", locator, err)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", common.ErrNotAFile, locator)
	}

	data, err := afero.ReadFile(s.fs, locator)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", locator, err)
	}

	return data, nil
}

func (s *localSource) Close() error {
	return nil
}
