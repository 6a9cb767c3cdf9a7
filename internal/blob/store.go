// Package blob stores raw uploaded files on local disk under a configured
// root directory. Paths are generated by the caller and kept on the source
// record so deletion can find the file again.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Store is a local-disk blob store.
type Store struct {
	root string
}

// NewStore creates the root directory if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// ObjectPath builds a collision-resistant storage path for an upload:
// time prefix + random suffix + sanitized original name.
func ObjectPath(originalName string) string {
	name := unsafeChars.ReplaceAllString(originalName, "_")
	return fmt.Sprintf("knowledge/%d-%s-%s", time.Now().UnixMilli(), uuid.NewString()[:8], name)
}

// Put writes data under path. The content type is recorded alongside the blob
// so downloads can be served with the original MIME type.
func (s *Store) Put(path string, data []byte, contentType string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.WriteFile(full+".content-type", []byte(contentType), 0o644); err != nil {
		return fmt.Errorf("failed to write blob content type: %w", err)
	}
	return nil
}

// Get reads a blob back.
func (s *Store) Get(path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// Delete removes a blob. Deleting a missing blob is not an error, so source
// deletion stays idempotent.
func (s *Store) Delete(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	if err := os.Remove(full + ".content-type"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob content type: %w", err)
	}
	return nil
}

// resolve joins path onto the root, rejecting traversal outside it.
func (s *Store) resolve(path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("blob path escapes store root: %s", path)
	}
	return full, nil
}
