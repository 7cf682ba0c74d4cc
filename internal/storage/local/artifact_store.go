// Package local keeps rendered result files on the local filesystem so they
// survive a restart of the API process.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/sirup-adspend/internal/export"
	"github.com/JakeFAU/sirup-adspend/internal/storage/memory"
)

// Config captures the parameters for the filesystem artifact store.
type Config struct {
	// BaseDir is the root directory where artifacts are written.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// ArtifactStore writes artifacts below BaseDir.
type ArtifactStore struct {
	baseDir string
}

// New creates the store, creating BaseDir and checking that it is writable.
func New(cfg Config) (*ArtifactStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, errors.New("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, errors.New("base directory path is not a directory")
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &ArtifactStore{baseDir: cfg.BaseDir}, nil
}

// PutObject writes data under path and returns a file:// URI.
func (s *ArtifactStore) PutObject(_ context.Context, path, _ string, data io.Reader) (string, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := os.WriteFile(fullPath, body, 0o600); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", path, err)
	}
	return "file://" + fullPath, nil
}

// GetObject reads an artifact back. The content type follows the export
// format named by the file extension.
func (s *ArtifactStore) GetObject(_ context.Context, path string) (memory.Artifact, bool) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return memory.Artifact{}, false
	}
	body, err := os.ReadFile(fullPath)
	if err != nil {
		return memory.Artifact{}, false
	}
	contentType := "application/octet-stream"
	if f, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(fullPath), ".")); err == nil && filepath.Ext(fullPath) != "" {
		contentType = f.ContentType()
	}
	return memory.Artifact{ContentType: contentType, Data: body}, true
}

func (s *ArtifactStore) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path is required")
	}
	base := filepath.Clean(s.baseDir)
	full := filepath.Clean(filepath.Join(base, path))
	if !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", errors.New("path traversal detected")
	}
	return full, nil
}
