package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/komiyamma/imageplan/internal/util"
)

// FSSink writes artifacts below a local directory.
type FSSink struct {
	dir string
}

func NewFSSink(dir string) *FSSink {
	return &FSSink{dir: dir}
}

func (s *FSSink) path(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

func (s *FSSink) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", name, err)
}

func (s *FSSink) Put(_ context.Context, name string, data []byte) error {
	if err := util.WriteFileAtomic(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *FSSink) Location(name string) string {
	return s.path(name)
}
