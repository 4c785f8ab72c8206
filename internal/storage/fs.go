package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// FSStore keeps documents as files in a directory
type FSStore struct {
	fs  afero.Fs
	dir string
}

// NewFSStore creates a store rooted at dir on fs
func NewFSStore(fs afero.Fs, dir string) *FSStore {
	return &FSStore{fs: fs, dir: dir}
}

// NewOSStore creates a store on the local filesystem
func NewOSStore(dir string) *FSStore {
	return NewFSStore(afero.NewOsFs(), dir)
}

// Dir returns the storage directory
func (s *FSStore) Dir() string {
	return s.dir
}

// Put writes data under name, replacing any previous content
func (s *FSStore) Put(_ context.Context, name string, data []byte) error {
	if !ValidName(name) {
		return NewError("put", name, fmt.Errorf("invalid document name"))
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return NewError("put", name, err)
	}
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, name), data, 0o644); err != nil {
		return NewError("put", name, err)
	}
	return nil
}

// Get reads a document. Unknown or unsafe names yield ErrNotFound.
func (s *FSStore) Get(_ context.Context, name string) ([]byte, error) {
	if !ValidName(name) {
		return nil, NewError("get", name, ErrNotFound)
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, NewError("get", name, ErrNotFound)
	}
	if err != nil {
		return nil, NewError("get", name, err)
	}
	return data, nil
}

// List returns the stored documents sorted by name
func (s *FSStore) List(_ context.Context) ([]Object, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Object{}, nil
	}
	if err != nil {
		return nil, NewError("list", "", err)
	}

	objects := make([]Object, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || !ValidName(info.Name()) {
			continue
		}
		objects = append(objects, Object{
			Name:     info.Name(),
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}
