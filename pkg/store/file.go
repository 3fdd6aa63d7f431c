package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// File is a file-backed KV store for desktop and CLI usage.
// Entries are stored as individual files in a hash-sharded directory layout.
type File struct {
	dir string
}

// NewFile creates a file-based store in the given directory.
// The directory will be created if it doesn't exist.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &File{dir: dir}, nil
}

// Get retrieves a value from disk.
func (f *File) Get(_ context.Context, name string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(name))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set writes a value to disk.
func (f *File) Set(_ context.Context, name string, value []byte) error {
	path := f.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, value, 0o644)
}

// Remove deletes the value's file. Missing files are a no-op.
func (f *File) Remove(_ context.Context, name string) error {
	err := os.Remove(f.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close does nothing for the file store.
func (f *File) Close() error { return nil }

// path converts a name to a file path.
// Uses a hash-based directory shard to avoid too many files in one dir.
func (f *File) path(name string) string {
	sum := sha256.Sum256([]byte(name))
	hash := hex.EncodeToString(sum[:])
	return filepath.Join(f.dir, hash[:2], hash[2:]+".blob")
}

// Ensure File implements KV.
var _ KV = (*File)(nil)
