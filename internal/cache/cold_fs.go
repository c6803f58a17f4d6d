package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// FilesystemColdStore implements ColdStore over the local filesystem, for
// local development and tests. Object keys are relative paths under dir;
// there is no ecosystem filesystem-as-object-store library in the corpus
// this warrants pulling in, so this is stdlib os/path only.
type FilesystemColdStore struct {
	dir string
}

func NewFilesystemColdStore(dir string) *FilesystemColdStore {
	return &FilesystemColdStore{dir: dir}
}

func (f *FilesystemColdStore) GetObject(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: cold filesystem read")
	}
	return data, true, nil
}

func (f *FilesystemColdStore) PutObject(_ context.Context, key string, body []byte) error {
	path := filepath.Join(f.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "cache: cold filesystem mkdir")
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return eris.Wrap(err, "cache: cold filesystem write")
	}
	return nil
}
