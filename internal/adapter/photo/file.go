// Package photo captures images for the open period from the filesystem.
package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const DefaultMaxBytes = 10 << 20

var (
	ErrTooLarge = errors.New("photo too large")
	ErrNotImage = errors.New("not an image")
)

// PathFunc picks the file to attach. An empty path means the user cancelled.
type PathFunc func(ctx context.Context) (string, error)

// Fixed always picks path.
func Fixed(path string) PathFunc {
	return func(context.Context) (string, error) { return path, nil }
}

// File reads the chosen image file.
type File struct {
	Path     PathFunc
	MaxBytes int64
}

func (f File) Capture(ctx context.Context) ([]byte, error) {
	if f.Path == nil {
		return nil, nil
	}
	path, err := f.Path(ctx)
	if err != nil {
		return nil, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer fh.Close()

	// One byte past the limit marks an oversize file.
	data, err := io.ReadAll(io.LimitReader(fh, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, path, limit)
	}
	if len(data) == 0 {
		return nil, nil
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotImage, path, ct)
	}
	return data, nil
}
