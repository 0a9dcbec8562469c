package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
)

// Retire atomically moves a version out of the listing and returns the trash
// path still to be purged.
func (s *Store) Retire(id string) (string, error) {
	path, err := s.PathOf(id)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("%w: base version cannot be removed", bundle.ErrConflict)
	}

	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", bundle.ErrNotFound, id)
		}
		return "", err
	}

	trash := filepath.Join(s.root, trashPrefix+id+"-"+uuid.NewString())
	if err := os.Rename(path, trash); err != nil {
		return "", fmt.Errorf("retire %s: %w", id, err)
	}
	return trash, nil
}

// Purge deletes a retired tree. A partial failure leaves the trash directory
// behind for the next Sweep.
func (s *Store) Purge(trash string) error {
	rel, err := filepath.Rel(s.root, trash)
	if err != nil || strings.Contains(rel, string(os.PathSeparator)) || !strings.HasPrefix(rel, trashPrefix) {
		return fmt.Errorf("refusing to purge %s outside bundle trash", trash)
	}
	return removeTree(trash)
}

// Remove retires and purges a version in one step.
func (s *Store) Remove(id string) error {
	trash, err := s.Retire(id)
	if err != nil {
		return err
	}
	return s.Purge(trash)
}

// Sweep purges leftover trash directories, stale temporary files and version
// directories left without metadata by failed saves. Ids in keep are never
// touched. Callers must hold off saves while it runs. It returns how many
// entries were fully removed.
func (s *Store) Sweep(keep ...string) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("read bundle root: %w", err)
	}

	var merr *multierror.Error
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(s.root, name)

		switch {
		case entry.IsDir() && strings.HasPrefix(name, trashPrefix):
			if err := removeTree(path); err != nil {
				merr = multierror.Append(merr, err)
				continue
			}
		case !entry.IsDir() && strings.HasSuffix(name, ".tmp"):
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				merr = multierror.Append(merr, err)
				continue
			}
		case entry.IsDir() && s.incomplete(name) && !slices.Contains(keep, name):
			if err := removeTree(path); err != nil {
				merr = multierror.Append(merr, err)
				continue
			}
		default:
			continue
		}

		removed++
		s.logger.Debug("Swept bundle root entry", zap.String("entry", name))
	}

	return removed, merr.ErrorOrNil()
}

// incomplete reports whether name is a version directory with no metadata
// record. Unreadable or corrupt records do not count.
func (s *Store) incomplete(name string) bool {
	if validate(name) != nil {
		return false
	}
	_, err := os.Lstat(filepath.Join(s.root, name, MetadataFile))
	return errors.Is(err, os.ErrNotExist)
}

// removeTree deletes root depth-first with an explicit stack. Failures are
// collected per entry so one stuck file does not stop its siblings.
func removeTree(root string) error {
	var merr *multierror.Error
	var dirs []string

	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		dirs = append(dirs, dir)

		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				merr = multierror.Append(merr, err)
			}
			continue
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				stack = append(stack, path)
				continue
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				merr = multierror.Append(merr, err)
			}
		}
	}

	// Children were appended after their parents.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Remove(dirs[i]); err != nil && !errors.Is(err, os.ErrNotExist) {
			merr = multierror.Append(merr, err)
		}
	}

	return merr.ErrorOrNil()
}
