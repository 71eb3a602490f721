package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStorage keeps uploaded PDFs on local disk under dir/pdfs/<user>.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

func (s *FileStorage) userDir(userID string) string {
	// user ids come from tokens; keep them from escaping the storage root
	return filepath.Join(s.dir, "pdfs", strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(userID))
}

// Save writes content under a generated name and returns its path.
func (s *FileStorage) Save(userID string, content []byte) (string, error) {
	dir := s.userDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+".pdf")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		os.Remove(path) // Clean up on error
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return path, nil
}

// Read returns the content of a stored file. Paths outside the storage root are refused.
func (s *FileStorage) Read(path string) ([]byte, error) {
	if !s.owns(path) {
		return nil, fmt.Errorf("path %q is outside file storage", path)
	}
	return os.ReadFile(path)
}

func (s *FileStorage) Remove(path string) error {
	if path == "" || !s.owns(path) {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveUser deletes every stored file of userID.
func (s *FileStorage) RemoveUser(userID string) error {
	return os.RemoveAll(s.userDir(userID))
}

func (s *FileStorage) owns(path string) bool {
	root, err := filepath.Abs(filepath.Join(s.dir, "pdfs"))
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
