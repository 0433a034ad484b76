// Package multipart builds single file multipart/form-data request bodies.
//
// Field and file names are written as is. Callers must not pass values containing double
// quotes, CR or LF since they would break the part header framing.
package multipart

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	FileMIMEType = "application/octet-stream"

	boundaryBits = 256
	crlf         = "\r\n"
	dashes       = "--"
)

// NewBoundary returns a fresh random boundary token: a 256 bit integer as decimal text.
func NewBoundary() (string, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), boundaryBits))
	if err != nil {
		return "", fmt.Errorf("cannot generate multipart boundary: %w", err)
	}

	return n.String(), nil
}

// ContentType is the request Content-Type header value matching a body built with boundary.
func ContentType(boundary string) string {
	return "multipart/form-data;boundary=" + boundary
}

// Encode returns a multipart/form-data body holding one binary file part.
func Encode(fieldName, fileName string, data []byte, boundary string) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data) + len(fieldName) + len(fileName) + 2*len(boundary) + 128)

	buf.WriteString(dashes + boundary + crlf)
	buf.WriteString(`Content-Disposition: form-data; name="` + fieldName + `"; filename="` + fileName + `"` + crlf)
	buf.WriteString("Content-Type: " + FileMIMEType + crlf + crlf)
	buf.Write(data)
	buf.WriteString(crlf)
	buf.WriteString(dashes + boundary + dashes)

	return buf.Bytes()
}
