package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
)

// DiskUsage returns the total size in bytes of the files under a version.
func (s *Store) DiskUsage(id string) (int64, error) {
	path, err := s.PathOf(id)
	if err != nil || path == "" {
		return 0, err
	}

	var total atomic.Int64
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total.Add(info.Size())
			}
		}
		return nil
	})
	if err != nil {
		return total.Load(), fmt.Errorf("walk %s: %w", id, err)
	}
	return total.Load(), nil
}

// CheckEntry verifies that a version contains entry and that it looks like
// an HTML document the host can load.
func (s *Store) CheckEntry(id, entry string) error {
	if entry == "" || id == bundle.BaseID {
		return nil
	}
	if !filepath.IsLocal(entry) {
		return fmt.Errorf("%w: entry %q escapes the version directory", bundle.ErrIncompatible, entry)
	}

	path, err := s.PathOf(id)
	if err != nil {
		return err
	}
	target := filepath.Join(path, filepath.FromSlash(entry))

	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s has no entry %q", bundle.ErrIncompatible, id, entry)
	}

	mt, err := mimetype.DetectFile(target)
	if err != nil {
		return fmt.Errorf("%w: detect %q: %v", bundle.ErrIncompatible, entry, err)
	}
	if !mt.Is("text/html") {
		return fmt.Errorf("%w: entry %q is %s", bundle.ErrIncompatible, entry, mt.String())
	}
	return nil
}
