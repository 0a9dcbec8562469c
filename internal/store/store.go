package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/shared/utils"
)

const (
	// MetadataFile is the metadata record inside each version directory.
	MetadataFile = "info.json"
	// ConfigFile is the activation state file at the bundle root.
	ConfigFile = "config.json"

	trashPrefix = ".trash-"
)

// ignorePatterns match root entries that are never installed versions.
var ignorePatterns = []string{".*", "*.tmp", ConfigFile}

// Store is the filesystem-backed directory of installed versions.
type Store struct {
	root   string
	host   bundle.HostInfo
	logger *zap.Logger
}

// New creates the bundle root if needed and returns a store over it.
func New(root string, host bundle.HostInfo, logger *zap.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("bundle root is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve bundle root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create bundle root: %w", err)
	}

	return &Store{
		root:   abs,
		host:   host,
		logger: logger.Named("store"),
	}, nil
}

// Root returns the absolute bundle root.
func (s *Store) Root() string {
	return s.root
}

// Host returns the embedded base bundle description.
func (s *Store) Host() bundle.HostInfo {
	return s.host
}

// ConfigPath returns the activation state file path.
func (s *Store) ConfigPath() string {
	return filepath.Join(s.root, ConfigFile)
}

// PathOf returns the directory of a version, or "" for the base version.
func (s *Store) PathOf(id string) (string, error) {
	if id == bundle.BaseID {
		return "", nil
	}
	if err := validate(id); err != nil {
		return "", err
	}
	return filepath.Join(s.root, id), nil
}

// Exists reports whether id is the base version or has a directory.
func (s *Store) Exists(id string) bool {
	if id == bundle.BaseID {
		return true
	}
	path, err := s.PathOf(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Installed reports whether id has a directory with a readable metadata record.
func (s *Store) Installed(id string) bool {
	if id == bundle.BaseID {
		return true
	}
	_, err := s.ReadMetadata(id)
	return err == nil
}

// List returns the base version followed by every installed version in
// directory order. Entries without readable metadata are logged and skipped.
// Active and Previous are left for the caller to annotate.
func (s *Store) List() ([]bundle.Version, error) {
	versions := []bundle.Version{s.host.Base()}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return versions, fmt.Errorf("read bundle root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || ignored(entry.Name()) {
			continue
		}
		id := entry.Name()

		md, err := s.ReadMetadata(id)
		if err != nil {
			s.logger.Warn("Skipping bundle version", zap.String("version", id), zap.Error(err))
			continue
		}

		size, err := s.DiskUsage(id)
		if err != nil {
			s.logger.Debug("Failed to compute bundle size", zap.String("version", id), zap.Error(err))
		}

		v := md.Version
		if v == "" {
			v = id
		}
		versions = append(versions, bundle.Version{
			ID:             id,
			Version:        v,
			Description:    md.Description,
			ReleaseDate:    md.ReleaseDate,
			MinHostVersion: md.MinHostVersion,
			HostVersion:    s.host.HostVersion,
			Good:           md.Good,
			Size:           size,
		})
	}

	return versions, nil
}

// Prepare makes sure an empty directory exists for id, clearing anything a
// previous save left behind.
func (s *Store) Prepare(id string) (string, error) {
	path, err := s.PathOf(id)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("%w: base version has no directory", bundle.ErrConflict)
	}

	if _, err := os.Lstat(path); err == nil {
		if err := s.Remove(id); err != nil {
			return "", fmt.Errorf("clear previous contents: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create version directory: %w", err)
	}
	return path, nil
}

func validate(id string) error {
	if err := utils.ValidateVersionID(id); err != nil {
		return fmt.Errorf("%w: %v", bundle.ErrInvalidVersion, err)
	}
	if ignored(id) {
		return fmt.Errorf("%w: %q is reserved", bundle.ErrInvalidVersion, id)
	}
	return nil
}

func ignored(name string) bool {
	for _, pattern := range ignorePatterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
