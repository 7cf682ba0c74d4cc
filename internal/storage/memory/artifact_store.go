package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Artifact is a rendered export kept for repeat downloads.
type Artifact struct {
	ContentType string
	Data        []byte
}

// ArtifactStore caches rendered exports keyed by path.
type ArtifactStore struct {
	mu   sync.RWMutex
	data map[string]Artifact
}

// NewArtifactStore creates a new in-memory artifact store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{data: make(map[string]Artifact)}
}

// PutObject persists the content and returns a pseudo URI.
func (s *ArtifactStore) PutObject(_ context.Context, path, contentType string, data io.Reader) (string, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = Artifact{ContentType: contentType, Data: body}
	return "memory://" + path, nil
}

// GetObject returns a copy of the stored artifact.
func (s *ArtifactStore) GetObject(_ context.Context, path string) (Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data[path]
	if !ok {
		return Artifact{}, false
	}
	a.Data = append([]byte(nil), a.Data...)
	return a, true
}
