package input

import (
	"context"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// LocalFile is a file on disk labelled by content sniffing.
type LocalFile struct {
	path     string
	mimeType string
}

// OpenFile detects the type of the file at path.
func OpenFile(path string) (*LocalFile, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect type of %s: %w", path, err)
	}

	return &LocalFile{path: path, mimeType: mt.String()}, nil
}

// Path returns the file's location.
func (f *LocalFile) Path() string {
	return f.path
}

func (f *LocalFile) MIMEType() string {
	return f.mimeType
}

func (f *LocalFile) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	return string(data), nil
}
