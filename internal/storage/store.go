// Package storage provides the key-addressed byte store the content updater
// installs into, plus the LocalBlock descriptors that record which files each
// installed block owns.
package storage

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned when a key has no stored bytes.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPath is returned for keys that are absolute or escape the store root.
	ErrInvalidPath = errors.New("invalid path")
)

// Store defines the blob storage interface consumed by the updater.
// Paths are slash-separated and relative to the store root.
type Store interface {
	// FileExists reports whether bytes are stored at path.
	FileExists(path string) bool

	// ReadFile returns the bytes at path, or nil if they cannot be read.
	ReadFile(path string) []byte

	// ReadFileString is ReadFile as a string.
	ReadFileString(path string) string

	// WriteFile replaces the bytes at path. It reports success.
	WriteFile(path string, data []byte) bool

	// DeleteFile removes path. It reports success; deleting a missing file fails.
	DeleteFile(path string) bool

	// ListFiles returns the paths directly inside dir whose names end in ext.
	ListFiles(dir, ext string) []string
}

// CleanPath normalizes a store key and rejects keys that would leave the root.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || path.IsAbs(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return cleaned, nil
}

// MemoryStore implements Store in memory with thread-safe access.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string][]byte),
	}
}

// FileExists implements Store.FileExists.
func (m *MemoryStore) FileExists(p string) bool {
	key, err := CleanPath(p)
	if err != nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[key]
	return ok
}

// ReadFile implements Store.ReadFile.
func (m *MemoryStore) ReadFile(p string) []byte {
	key, err := CleanPath(p)
	if err != nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[key]
	if !ok {
		return nil
	}
	// Return a copy to avoid external mutations
	result := make([]byte, len(data))
	copy(result, data)
	return result
}

// ReadFileString implements Store.ReadFileString.
func (m *MemoryStore) ReadFileString(p string) string {
	return string(m.ReadFile(p))
}

// WriteFile implements Store.WriteFile.
func (m *MemoryStore) WriteFile(p string, data []byte) bool {
	key, err := CleanPath(p)
	if err != nil {
		return false
	}
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = dataCopy
	return true
}

// DeleteFile implements Store.DeleteFile.
func (m *MemoryStore) DeleteFile(p string) bool {
	key, err := CleanPath(p)
	if err != nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[key]; !ok {
		return false
	}
	delete(m.files, key)
	return true
}

// ListFiles implements Store.ListFiles.
func (m *MemoryStore) ListFiles(dir, ext string) []string {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for key := range m.files {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || strings.Contains(rest, "/") || !strings.HasSuffix(rest, ext) {
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of stored files.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
