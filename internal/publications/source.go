package publications

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Source lists and reads the flat publications directory.
// Read must return an error matching fs.ErrNotExist for missing names.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads from a local directory. A missing directory lists as empty.
type DirSource struct {
	Dir string
}

// List returns the regular file names in Dir, sorted.
func (s DirSource) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.Dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the content of name.
func (s DirSource) Read(_ context.Context, name string) ([]byte, error) {
	if !validName(name) {
		return nil, fmt.Errorf("read %q: %w", name, fs.ErrNotExist)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// validName accepts flat names only.
func validName(name string) bool {
	return name != "" && ValidSlug(name)
}
