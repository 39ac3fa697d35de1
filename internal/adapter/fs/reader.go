package fs

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"ctxopt/internal/domain"
	"ctxopt/internal/port"
)

// DefaultMaxFileSize caps how much of a file the reader accepts.
const DefaultMaxFileSize = 2 << 20

// ErrBinary is returned for files that are not UTF-8 text.
var ErrBinary = errors.New("binary file")

var _ port.ContentProvider = (*Reader)(nil)

// Reader is the disk-backed content provider.
type Reader struct {
	maxSize int64
}

func NewReader(maxSize int64) *Reader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Reader{maxSize: maxSize}
}

// ReadFile returns the content of path. Missing files wrap
// domain.ErrNotFound.
func (r *Reader) ReadFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("fs: %s: %w", path, domain.ErrNotFound)
		}
		return "", fmt.Errorf("fs: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("fs: %s is a directory: %w", path, domain.ErrNotFound)
	}
	if info.Size() > r.maxSize {
		return "", fmt.Errorf("fs: %s is %d bytes, limit %d", path, info.Size(), r.maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("fs: %w", err)
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return "", fmt.Errorf("fs: %s: %w", path, ErrBinary)
	}
	return string(data), nil
}
