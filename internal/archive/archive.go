// Package archive reads zip containers under hard resource limits.
//
// The Reader is a forward only cursor over the archive entries, in the spirit of a zip input
// stream: Next advances to the following entry and Read returns its decompressed bytes.
// It guards against zip bombs (entry count and cumulative decompressed size) and zip slip
// (entries resolving outside of the archive).
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/jgivc/boundaryimporter/internal/common"
	"github.com/klauspost/compress/zip"
)

const (
	DefaultMaxEntries    = 100
	DefaultMaxTotalBytes = 1_000_000_000

	readChunkSize = 8192
)

var (
	DefaultLimits = Limits{
		MaxEntries:    DefaultMaxEntries,
		MaxTotalBytes: DefaultMaxTotalBytes,
	}

	errReaderClosed = errors.New("archive reader closed")
)

type Limits struct {
	MaxEntries    int
	MaxTotalBytes int64
}

type Reader struct {
	src    io.ReaderAt
	zr     *zip.Reader
	limits Limits

	next    int
	entries int
	total   int64

	file *zip.File
	rc   io.ReadCloser

	err       error
	closeOnce sync.Once
	closeErr  error
}

// Open wraps src, a zip container of size bytes. If src is an io.Closer it is owned by the
// returned Reader and closed exactly once, by Close or right away when Open fails.
func Open(src io.ReaderAt, size int64, limits Limits) (*Reader, error) {
	// A non-nil reader comes back with an insecure path error only; entry names are checked by Next.
	zr, err := zip.NewReader(src, size)
	if zr == nil {
		if c, ok := src.(io.Closer); ok {
			c.Close()
		}

		return nil, fmt.Errorf("cannot read zip container: %w", err)
	}

	return &Reader{
		src:    src,
		zr:     zr,
		limits: limits,
	}, nil
}

// OpenBytes is Open over an in-memory container.
func OpenBytes(data []byte, limits Limits) (*Reader, error) {
	return Open(bytes.NewReader(data), int64(len(data)), limits)
}

// Next advances to the next entry and returns its raw name. It returns io.EOF after the last
// entry. Limit and traversal failures are sticky: every later call returns the same error.
func (r *Reader) Next() (string, error) {
	if r.err != nil {
		return "", r.err
	}

	r.closeEntry()

	if r.next >= len(r.zr.File) {
		r.err = io.EOF

		return "", r.err
	}

	r.entries++
	if r.entries > r.limits.MaxEntries {
		r.err = fmt.Errorf("%w: zip has too many entries (max %d)", common.ErrResourceLimitExceeded, r.limits.MaxEntries)

		return "", r.err
	}

	f := r.zr.File[r.next]
	r.next++

	if !isLocalName(f.Name) {
		r.err = fmt.Errorf("%w: %s", common.ErrPathTraversal, f.Name)

		return "", r.err
	}

	r.file = f

	return f.Name, nil
}

// Read reads decompressed bytes of the current entry.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil && r.err != io.EOF {
		return 0, r.err
	}

	if r.file == nil {
		return 0, io.EOF
	}

	if r.total+int64(len(p)) > r.limits.MaxTotalBytes {
		r.err = r.sizeError()

		return 0, r.err
	}

	if r.rc == nil {
		rc, err := r.file.Open()
		if err != nil {
			return 0, fmt.Errorf("cannot open entry %s: %w", r.file.Name, err)
		}
		r.rc = rc
	}

	n, err := r.rc.Read(p)
	r.total += int64(n)
	if r.total > r.limits.MaxTotalBytes {
		r.err = r.sizeError()

		return n, r.err
	}

	return n, err
}

// ReadAll reads the rest of the current entry in fixed size chunks.
func (r *Reader) ReadAll() ([]byte, error) {
	var (
		out   bytes.Buffer
		chunk = make([]byte, readChunkSize)
	)

	for {
		n, err := r.Read(chunk)
		out.Write(chunk[:n])

		if err == io.EOF {
			return out.Bytes(), nil
		}

		if err != nil {
			return nil, err
		}
	}
}

// Entries returns how many entries were advanced to so far.
func (r *Reader) Entries() int {
	return r.entries
}

// TotalBytes returns the cumulative decompressed bytes read so far.
func (r *Reader) TotalBytes() int64 {
	return r.total
}

// Close releases the current entry and the underlying source. It is safe to call more than once.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		r.closeEntry()

		if c, ok := r.src.(io.Closer); ok {
			r.closeErr = c.Close()
		}

		if r.err == nil || r.err == io.EOF {
			r.err = errReaderClosed
		}
	})

	return r.closeErr
}

func (r *Reader) closeEntry() {
	if r.rc != nil {
		r.rc.Close()
		r.rc = nil
	}
	r.file = nil
}

func (r *Reader) sizeError() error {
	return fmt.Errorf("%w: zip size is too big (max %d bytes)", common.ErrResourceLimitExceeded, r.limits.MaxTotalBytes)
}

// isLocalName reports whether an entry name stays inside the archive namespace once resolved.
func isLocalName(name string) bool {
	name = strings.ReplaceAll(name, `\`, "/")

	if strings.HasPrefix(name, "/") {
		return false
	}

	if len(name) >= 2 && name[1] == ':' {
		return false
	}

	cleaned := path.Clean(name)

	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}
