package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicZip   = []byte("PK\x03\x04")
	magicBzip2 = []byte("BZh")
	magicXz    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Compression names a detected stream encoding.
type Compression string

const (
	None Compression = ""
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
)

// Decompress sniffs the first bytes of r and returns a reader over the
// decoded text. gzip and zstd are decoded; other archive formats are
// rejected with KindUnsupported.
func Decompress(r io.Reader) (io.ReadCloser, Compression, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(6)

	switch {
	case bytes.HasPrefix(head, magicGzip):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, Gzip, &UploadError{Kind: KindUnreadable, Msg: "invalid gzip stream", Err: err}
		}
		return zr, Gzip, nil
	case bytes.HasPrefix(head, magicZstd):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, Zstd, fmt.Errorf("zstd open: %w", err)
		}
		return dec.IOReadCloser(), Zstd, nil
	case bytes.HasPrefix(head, magicZip), bytes.HasPrefix(head, magicBzip2), bytes.HasPrefix(head, magicXz):
		return nil, None, &UploadError{Kind: KindUnsupported, Msg: "unsupported archive format, upload plain text, gzip or zstd"}
	}
	return io.NopCloser(br), None, nil
}
