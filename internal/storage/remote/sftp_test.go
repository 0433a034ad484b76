package remote

import (
	"context"
	"net"
	"testing"

	"github.com/jgivc/boundaryimporter/internal/entity"
	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newInMemorySFTP serves an in-memory tree over a pipe and returns a source rooted at root.
func newInMemorySFTP(t *testing.T, root string) (*sftpSource, *sftp.Client) {
	t.Helper()

	serverConn, clientConn := net.Pipe()

	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	served := make(chan struct{})

	go func() {
		defer close(served)
		_ = server.Serve()
	}()

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
		<-served
	})

	return &sftpSource{client: client, root: root, log: newLogger()}, client
}

func putFile(t *testing.T, client *sftp.Client, name, content string) {
	t.Helper()

	f, err := client.Create(name)
	require.NoError(t, err)

	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestSFTPSource(t *testing.T) {
	src, client := newInMemorySFTP(t, "/")

	require.NoError(t, client.Mkdir("/bd"))
	require.NoError(t, client.Mkdir("/bd/nested"))
	putFile(t, client, "/bd/20210315T0000Z__ENTSOE_BD_001.zip", "zip1")
	putFile(t, client, "/store.zip", "stored")
	require.NoError(t, client.Symlink("/bd/missing.zip", "/bd/20210316T0000Z__ENTSOE_BD_002.zip"))
	require.NoError(t, client.Symlink("/store.zip", "/bd/20210317T0000Z__ENTSOE_BD_003.zip"))

	files, err := src.List(context.Background(), "bd")
	require.NoError(t, err)
	assert.Equal(t, []entity.RemoteFile{
		{Name: "20210315T0000Z__ENTSOE_BD_001.zip", Locator: "/bd/20210315T0000Z__ENTSOE_BD_001.zip"},
		{Name: "20210317T0000Z__ENTSOE_BD_003.zip", Locator: "/bd/20210317T0000Z__ENTSOE_BD_003.zip"},
	}, files)

	data, err := src.Fetch(context.Background(), files[0].Locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("zip1"), data)

	data, err = src.Fetch(context.Background(), files[1].Locator)
	require.NoError(t, err)
	assert.Equal(t, []byte("stored"), data)

	_, err = src.Fetch(context.Background(), "/bd/missing.zip")
	require.Error(t, err)

	_, err = src.List(context.Background(), "missing")
	require.Error(t, err)
}

func TestSFTPSourceRoot(t *testing.T) {
	src, client := newInMemorySFTP(t, "/outgoing")

	require.NoError(t, client.MkdirAll("/outgoing/bd"))
	putFile(t, client, "/outgoing/bd/20210315T0000Z__ENTSOE_BD_001.zip", "zip1")

	files, err := src.List(context.Background(), "/bd")
	require.NoError(t, err)
	assert.Equal(t, []entity.RemoteFile{
		{Name: "20210315T0000Z__ENTSOE_BD_001.zip", Locator: "/outgoing/bd/20210315T0000Z__ENTSOE_BD_001.zip"},
	}, files)

	require.NoError(t, src.Close())
}

func TestSFTPSourceCancelled(t *testing.T) {
	src, _ := newInMemorySFTP(t, "/")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.List(ctx, "bd")
	require.ErrorIs(t, err, context.Canceled)

	_, err = src.Fetch(ctx, "/bd/a.zip")
	require.ErrorIs(t, err, context.Canceled)
}
