package remote

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jgivc/boundaryimporter/internal/common"
	"github.com/jgivc/boundaryimporter/internal/entity"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocalSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/bd/nested", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/bd/20210315T0000Z__ENTSOE_BD_001.zip", []byte("zip1"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/bd/20210316T0000Z__ENTSOE_BD_002.zip", []byte("zip2"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/bd/nested/ignored.zip", []byte("x"), 0o644))

	src := NewLocalSource(fs, newLogger())
	defer src.Close()

	files, err := src.List(context.Background(), "bd")
	require.NoError(t, err)
	assert.Equal(t, []entity.RemoteFile{
		{Name: "20210315T0000Z__ENTSOE_BD_001.zip", Locator: "/bd/20210315T0000Z__ENTSOE_BD_001.zip"},
		{Name: "20210316T0000Z__ENTSOE_BD_002.zip", Locator: "/bd/20210316T0000Z__ENTSOE_BD_002.zip"},
	}, files)

	data, err := src.Fetch(context.Background(), files[1].Locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("zip2"), data)

	_, err = src.Fetch(context.Background(), "/bd/nested")
	require.ErrorIs(t, err, common.ErrNotAFile)

	_, err = src.Fetch(context.Background(), "/bd/missing.zip")
	require.Error(t, err)

	_, err = src.List(context.Background(), "missing")
	require.Error(t, err)
}

func TestLocalSourceSymlinks(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "bd")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20210315T0000Z__ENTSOE_BD_001.zip"), []byte("zip1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stored.zip"), []byte("stored"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing.zip"), filepath.Join(dir, "20210316T0000Z__ENTSOE_BD_002.zip")))
	require.NoError(t, os.Symlink(filepath.Join(root, "stored.zip"), filepath.Join(dir, "20210317T0000Z__ENTSOE_BD_003.zip")))

	src := NewLocalSource(afero.NewBasePathFs(afero.NewOsFs(), root), newLogger())

	files, err := src.List(context.Background(), "bd")
	require.NoError(t, err)
	assert.Equal(t, []entity.RemoteFile{
		{Name: "20210315T0000Z__ENTSOE_BD_001.zip", Locator: "/bd/20210315T0000Z__ENTSOE_BD_001.zip"},
		{Name: "20210317T0000Z__ENTSOE_BD_003.zip", Locator: "/bd/20210317T0000Z__ENTSOE_BD_003.zip"},
	}, files)

	data, err := src.Fetch(context.Background(), files[1].Locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("stored"), data)
}

func TestLocalSourceCancelled(t *testing.T) {
	src := NewLocalSource(afero.NewMemMapFs(), newLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.List(ctx, "/")
	require.ErrorIs(t, err, context.Canceled)

	_, err = src.Fetch(ctx, "/a.zip")
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenFileURL(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bd"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bd", "a__ENTSOE_BD_001.zip"), []byte("zip"), 0o644))

	src, err := Open(context.Background(), Options{URL: "file://" + filepath.ToSlash(root)}, newLogger())
	require.NoError(t, err)
	defer src.Close()

	files, err := src.List(context.Background(), "/bd")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a__ENTSOE_BD_001.zip", files[0].Name)

	data, err := src.Fetch(context.Background(), files[0].Locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("zip"), data)
}

func TestOpenErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedAddr := ln.Addr().String()
	require.NoError(t, ln.Close())

	testCases := []struct {
		name string
		url  string
	}{
		{name: "Scenario 1: unsupported scheme", url: "http://example.org/bd"},
		{name: "Scenario 2: bad url", url: "ftp://[::1"},
		{name: "Scenario 3: ftp connection refused", url: "ftp://" + closedAddr + "/"},
		{name: "Scenario 4: sftp connection refused", url: "sftp://" + closedAddr + "/"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Open(context.Background(), Options{
				URL:             tc.url,
				Password:        "secret",
				ConnectTimeout:  time.Second,
				ConnectAttempts: 1,
			}, newLogger())
			require.ErrorIs(t, err, common.ErrSetup)
		})
	}
}

func TestHostPort(t *testing.T) {
	u, _ := url.Parse("sftp://example.org/bd")
	assert.Equal(t, "example.org:22", hostPort(u, defaultSFTPPort))

	u, _ = url.Parse("ftp://example.org:2121/bd")
	assert.Equal(t, "example.org:2121", hostPort(u, defaultFTPPort))
}

func TestCredentials(t *testing.T) {
	u, _ := url.Parse("ftp://alice:pw@example.org/")

	user, password := credentials(u, Options{})
	assert.Equal(t, "alice", user)
	assert.Equal(t, "pw", password)

	user, password = credentials(u, Options{Username: "bob", Password: "secret"})
	assert.Equal(t, "bob", user)
	assert.Equal(t, "secret", password)
}

func TestSSHClientConfig(t *testing.T) {
	u, _ := url.Parse("sftp://example.org/")

	cfg, err := sshClientConfig(u, Options{Username: "importer", Password: "secret", ConnectTimeout: time.Second}, newLogger())
	require.NoError(t, err)
	assert.Equal(t, "importer", cfg.User)
	assert.Len(t, cfg.Auth, 1)
	assert.Equal(t, time.Second, cfg.Timeout)

	_, err = sshClientConfig(u, Options{PrivateKeyFile: filepath.Join(t.TempDir(), "missing")}, newLogger())
	require.Error(t, err)

	_, err = sshClientConfig(u, Options{KnownHostsFile: filepath.Join(t.TempDir(), "missing")}, newLogger())
	require.Error(t, err)
}

func TestRootPath(t *testing.T) {
	assert.Equal(t, "/", rootPath(""))
	assert.Equal(t, "/data/bd", rootPath("/data/bd/"))
}
