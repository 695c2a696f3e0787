package local

import (
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/roach88/savekit/internal/fault"
)

// List returns the save names under the root, sorted. The preferences
// file is not a save.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fault.Wrap(fault.CodeIO, "local.List", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), fileExt)
		if name == prefsName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SaveCount returns the number of saves under the root.
func (s *Store) SaveCount() (int, error) {
	names, err := s.List()
	return len(names), err
}

// Exists reports whether a save exists.
func (s *Store) Exists(name string) bool {
	if checkName("local.Exists", name) != nil {
		return false
	}
	info, err := os.Stat(s.Path(name))
	return err == nil && !info.IsDir()
}

// Delete removes a save. Deleting a missing save is not an error.
func (s *Store) Delete(name string) error {
	const op = "local.Delete"
	if err := checkName(op, name); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fault.Wrap(fault.CodeIO, op, err)
	}
	return nil
}
