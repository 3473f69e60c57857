package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FilePreviews publishes previews as files in a directory. A preview
// reference is the file's path; revoking removes the file.
type FilePreviews struct {
	dir string

	mu   sync.Mutex
	live map[string]struct{}
}

// NewFilePreviews creates the preview directory if needed.
func NewFilePreviews(dir string) (*FilePreviews, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preview directory %s: %w", dir, err)
	}

	return &FilePreviews{
		dir:  dir,
		live: make(map[string]struct{}),
	}, nil
}

// Publish writes the artifact to a fresh file.
func (p *FilePreviews) Publish(a Artifact) (string, error) {
	name := uuid.NewString() + filepath.Ext(a.Filename)
	path := filepath.Join(p.dir, name)

	if err := os.WriteFile(path, a.Data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write preview %s: %w", path, err)
	}

	p.mu.Lock()
	p.live[path] = struct{}{}
	p.mu.Unlock()

	return path, nil
}

// Revoke removes a published preview. Unknown references are ignored.
func (p *FilePreviews) Revoke(ref string) error {
	p.mu.Lock()
	_, ok := p.live[ref]
	delete(p.live, ref)
	p.mu.Unlock()

	if !ok {
		return nil
	}

	if err := os.Remove(ref); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove preview %s: %w", ref, err)
	}

	return nil
}

// Outstanding returns the number of previews not yet revoked.
func (p *FilePreviews) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.live)
}
