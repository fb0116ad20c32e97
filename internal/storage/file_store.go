package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore implements Store on top of a directory.
type FileStore struct {
	root string
	log  *slog.Logger
}

// NewFileStore creates a file-backed store rooted at root.
func NewFileStore(root string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{root: root, log: log}, nil
}

// Root returns the directory the store writes into.
func (f *FileStore) Root() string {
	return f.root
}

func (f *FileStore) fullPath(p string) (string, error) {
	key, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.root, filepath.FromSlash(key)), nil
}

// Put writes data at p. The write goes to a temporary file that is renamed
// into place, so readers never observe a partially written file.
func (f *FileStore) Put(p string, data []byte) error {
	full, err := f.fullPath(p)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), filepath.Base(full)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()

	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, full); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Get reads the bytes at p.
func (f *FileStore) Get(p string) ([]byte, error) {
	full, err := f.fullPath(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Remove deletes p and prunes directories left empty beneath the root.
func (f *FileStore) Remove(p string) error {
	full, err := f.fullPath(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return fmt.Errorf("failed to remove file: %w", err)
	}
	f.pruneEmpty(filepath.Dir(full))
	return nil
}

func (f *FileStore) pruneEmpty(dir string) {
	root := filepath.Clean(f.root)
	for dir != root && strings.HasPrefix(dir, root) {
		if err := os.Remove(dir); err != nil {
			return // not empty, or already gone
		}
		dir = filepath.Dir(dir)
	}
}

// FileExists implements Store.FileExists.
func (f *FileStore) FileExists(p string) bool {
	full, err := f.fullPath(p)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

// ReadFile implements Store.ReadFile.
func (f *FileStore) ReadFile(p string) []byte {
	data, err := f.Get(p)
	if err != nil {
		f.log.Debug("read failed", "path", p, "error", err)
		return nil
	}
	return data
}

// ReadFileString implements Store.ReadFileString.
func (f *FileStore) ReadFileString(p string) string {
	return string(f.ReadFile(p))
}

// WriteFile implements Store.WriteFile.
func (f *FileStore) WriteFile(p string, data []byte) bool {
	if err := f.Put(p, data); err != nil {
		f.log.Debug("write failed", "path", p, "error", err)
		return false
	}
	return true
}

// DeleteFile implements Store.DeleteFile.
func (f *FileStore) DeleteFile(p string) bool {
	if err := f.Remove(p); err != nil {
		f.log.Debug("delete failed", "path", p, "error", err)
		return false
	}
	return true
}

// ListFiles implements Store.ListFiles.
func (f *FileStore) ListFiles(dir, ext string) []string {
	full, err := f.fullPath(dir)
	if err != nil {
		return nil
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.log.Debug("list failed", "dir", dir, "error", err)
		}
		return nil
	}

	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		out = append(out, path.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out
}
