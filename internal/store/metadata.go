package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/shared/utils"
)

// ReadMetadata loads the metadata record of an installed version.
func (s *Store) ReadMetadata(id string) (bundle.Metadata, error) {
	var md bundle.Metadata

	path, err := s.PathOf(id)
	if err != nil {
		return md, err
	}
	if path == "" {
		return md, fmt.Errorf("%w: base version has no metadata", bundle.ErrConflict)
	}

	data, err := readLimited(filepath.Join(path, MetadataFile), utils.MaxMetadataSize)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return md, fmt.Errorf("%w: %s", bundle.ErrNotFound, id)
		}
		return md, fmt.Errorf("%w: %v", bundle.ErrCorruptMetadata, err)
	}

	if err := sonic.Unmarshal(data, &md); err != nil {
		return md, fmt.Errorf("%w: %v", bundle.ErrCorruptMetadata, err)
	}
	return md, nil
}

// WriteMetadata replaces the metadata record of a version as a whole.
func (s *Store) WriteMetadata(id string, md bundle.Metadata) error {
	path, err := s.PathOf(id)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: base version has no metadata", bundle.ErrConflict)
	}

	data, err := sonic.ConfigStd.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", bundle.ErrPersistence, err)
	}
	if err := utils.WriteFileAtomic(filepath.Join(path, MetadataFile), data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", bundle.ErrPersistence, err)
	}
	return nil
}

// ReadConfig loads the activation state. Missing or unparseable files yield
// the default state together with the reason.
func (s *Store) ReadConfig() (bundle.Config, error) {
	cfg := bundle.DefaultConfig()

	data, err := readLimited(s.ConfigPath(), utils.MaxMetadataSize)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}

	var loaded bundle.Config
	if err := sonic.Unmarshal(data, &loaded); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if loaded.ActiveVersion == "" {
		loaded.ActiveVersion = bundle.BaseID
	}
	return loaded, nil
}

// WriteConfig durably replaces the activation state file.
func (s *Store) WriteConfig(cfg bundle.Config) error {
	data, err := sonic.ConfigStd.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode config: %v", bundle.ErrPersistence, err)
	}
	if err := utils.WriteFileAtomic(s.ConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", bundle.ErrPersistence, err)
	}
	return nil
}

func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", filepath.Base(path), limit)
	}
	return data, nil
}
