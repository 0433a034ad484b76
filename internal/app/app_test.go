package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jgivc/boundaryimporter/internal/common"
	"github.com/jgivc/boundaryimporter/internal/config"
	"github.com/jgivc/boundaryimporter/internal/repository/registry"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boundaryTemplate = `<rdf:RDF xmlns:md="http://iec.ch/TC57/61970-552/ModelDescription/1#" xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<md:FullModel rdf:about="%s"></md:FullModel>
</rdf:RDF>`

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeArchive(t *testing.T, dir string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, id := range map[string]string{
		"20210315T0000Z__ENTSOE_EQBD_001.xml": "urn:uuid:eq",
		"20210315T0000Z__ENTSOE_TPBD_001.xml": "urn:uuid:tp",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fmt.Fprintf(w, boundaryTemplate, id)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20210315T0000Z__ENTSOE_BD_001.zip"), buf.Bytes(), 0o644))
}

type registryStub struct {
	infoCalls atomic.Int32
	uploads   atomic.Int32
	release   chan struct{}
}

func (s *registryStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case registry.PathInfos:
		s.infoCalls.Add(1)
		if s.release != nil {
			<-s.release
		}
		_, _ = io.WriteString(w, "[]")
	case registry.PathBoundaries:
		_, _ = io.Copy(io.Discard, r.Body)
		s.uploads.Add(1)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestApp(t *testing.T, stub *registryStub, fs afero.Fs) *App {
	t.Helper()

	root := t.TempDir()
	writeArchive(t, filepath.Join(root, "bd"))

	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Acquisition.URL = "file://" + filepath.ToSlash(root)
	cfg.Acquisition.Directory = "bd"
	cfg.Registry.URL = srv.URL
	cfg.Report.MarkdownFile = "/reports/last.md"
	require.NoError(t, cfg.Validate())

	a := New("")
	require.NoError(t, a.init(cfg, fs, newLogger()))
	t.Cleanup(a.Stop)

	return a
}

func TestRunOnce(t *testing.T) {
	stub := &registryStub{}
	fs := afero.NewMemMapFs()
	a := newTestApp(t, stub, fs)

	outcome, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.ArchivesFound)
	assert.ElementsMatch(t, []string{"20210315T0000Z__ENTSOE_EQBD_001.xml", "20210315T0000Z__ENTSOE_TPBD_001.xml"}, outcome.Imported)
	assert.Equal(t, int32(2), stub.uploads.Load())

	md, err := afero.ReadFile(fs, "/reports/last.md")
	require.NoError(t, err)
	assert.Contains(t, string(md), "run_id: "+outcome.RunID)
}

func TestRunOnceAlreadyStarted(t *testing.T) {
	a := newTestApp(t, &registryStub{}, afero.NewMemMapFs())
	a.running.Store(true)

	_, err := a.RunOnce(context.Background())
	require.ErrorIs(t, err, common.ErrRunAlreadyStarted)
}

func TestRunOnceSetupError(t *testing.T) {
	a := newTestApp(t, &registryStub{}, afero.NewMemMapFs())
	a.cfg.Acquisition.URL = "gopher://example.org"

	_, err := a.RunOnce(context.Background())
	require.ErrorIs(t, err, common.ErrSetup)
	assert.False(t, a.running.Load())
}

func TestDaemon(t *testing.T) {
	stub := &registryStub{release: make(chan struct{})}
	a := newTestApp(t, stub, afero.NewMemMapFs())
	a.cfg.Daemon.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	trigger := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		a.Daemon(ctx, trigger)
	}()

	require.Eventually(t, func() bool { return stub.infoCalls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	// The first run is still waiting for the registry, so this one is rejected.
	trigger <- struct{}{}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), stub.infoCalls.Load())

	close(stub.release)
	require.Eventually(t, func() bool { return stub.uploads.Load() == 2 && !a.running.Load() }, 5*time.Second, 10*time.Millisecond)

	trigger <- struct{}{}
	require.Eventually(t, func() bool { return stub.uploads.Load() == 4 }, 5*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestStartSetupError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o600))

	err := New(path).Start()
	require.ErrorIs(t, err, common.ErrSetup)
}
