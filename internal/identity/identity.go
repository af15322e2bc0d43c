// Package identity supplies the stable anonymous identifier attached
// to recordings. The identifier is a random UUID generated on first
// use and persisted to disk, so the same installation keeps the same
// identity across restarts.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileProvider persists the identifier in a plain text file.
type FileProvider struct {
	path string

	mu     sync.Mutex
	cached string
}

// NewFileProvider returns a provider backed by the given file path.
// The file and its parent directories are created on first use.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// ID returns the stable identifier, generating and persisting a new
// one if none exists yet. A corrupt identity file is replaced rather
// than treated as an error; the identifier is anonymous, so a reset
// only detaches past recordings.
func (p *FileProvider) ID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached, nil
	}

	if data, err := os.ReadFile(p.path); err == nil {
		id := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			p.cached = id
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return "", fmt.Errorf("creating identity directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing identity file: %w", err)
	}

	p.cached = id
	return id, nil
}
