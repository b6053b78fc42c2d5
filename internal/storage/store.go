// Package storage persists extracted datasets as JSON files under a fixed root directory.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/capitalize-ai/vcon-datasets/internal/model"
)

var (
	// ErrWrite is returned when a dataset cannot be persisted.
	ErrWrite = errors.New("dataset write failed")

	// ErrNotFound is returned when no dataset is stored under a name.
	ErrNotFound = errors.New("dataset not found")

	// ErrInvalidName is returned for names that would escape the root directory.
	ErrInvalidName = errors.New("invalid dataset name")
)

// Store reads and writes dataset files below root.
// Writes to the same name are not coordinated: the last write wins.
type Store struct {
	root string
}

// NewStore creates the root directory if needed and returns a Store on it.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the file path for name.
func (s *Store) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, name), nil
}

// ValidateName rejects names that are empty, that are not a single path element,
// or that start with a dot. Dot names are reserved for in-progress writes and
// never listed.
func ValidateName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Write stores dataset under name as indented JSON, replacing any previous file.
// The file is written to a temporary sibling and renamed into place, so readers
// never observe a partial dataset. The root directory must exist.
func (s *Store) Write(dataset *model.ConversationDataset, name string) error {
	path, err := s.Path(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	data, err := json.MarshalIndent(dataset, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode dataset: %w", ErrWrite, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.root, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	return nil
}

// Open opens the dataset stored under name. The caller closes the file.
func (s *Store) Open(name string) (*os.File, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, nil
}

// Read decodes the dataset stored under name.
func (s *Store) Read(name string) (*model.ConversationDataset, error) {
	f, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var d model.ConversationDataset
	if err := json.NewDecoder(f).Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s: %w", name, err)
	}
	return &d, nil
}

// List returns the names of stored datasets in lexical order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
