// Package resource abstracts where model and texture assets come from.
// The engine never touches the filesystem directly; everything goes through
// a Provider so embedders can back assets with a directory, an archive, or
// a host-process byte store.
package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Path identifies one asset, e.g. "block/stone" or "models/block/stone.json".
type Path string

// Prepend returns the path with a prefix attached, e.g. "models/".
func (p Path) Prepend(prefix string) Path {
	return Path(prefix + string(p))
}

// Append returns the path with a suffix attached, e.g. ".json".
func (p Path) Append(suffix string) Path {
	return Path(string(p) + suffix)
}

// NotFoundError reports that a provider has no entry for a path. It is
// distinct from malformed content, which surfaces as a parse error from the
// caller that decoded the bytes.
type NotFoundError struct {
	Path Path
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.Path)
}

// Provider supplies raw asset content by path.
type Provider interface {
	GetString(path Path) (string, error)
	GetBytes(path Path) ([]byte, error)
}

// MapProvider serves assets from an in-memory map. Useful for tests and for
// embedders that receive assets from a host process.
type MapProvider struct {
	Entries map[Path][]byte
}

func NewMapProvider() *MapProvider {
	return &MapProvider{Entries: map[Path][]byte{}}
}

func (m *MapProvider) Put(path Path, data []byte) {
	m.Entries[path] = data
}

func (m *MapProvider) PutString(path Path, data string) {
	m.Entries[path] = []byte(data)
}

func (m *MapProvider) GetString(path Path) (string, error) {
	data, err := m.GetBytes(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *MapProvider) GetBytes(path Path) ([]byte, error) {
	data, ok := m.Entries[path]
	if !ok {
		return nil, &NotFoundError{Path: path}
	}
	return data, nil
}

// DirProvider serves assets relative to a root directory.
type DirProvider struct {
	Root string
}

func (d *DirProvider) GetString(path Path) (string, error) {
	data, err := d.GetBytes(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *DirProvider) GetBytes(path Path) ([]byte, error) {
	full := filepath.Join(d.Root, filepath.FromSlash(strings.TrimPrefix(string(path), "/")))
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
