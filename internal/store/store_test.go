package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
)

var testHost = bundle.HostInfo{
	BaseVersion: "2.3.1",
	HostVersion: "2.3.0",
	ReleaseDate: "2024-05-01",
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), testHost, nil)
	require.NoError(t, err)
	return s
}

func install(t *testing.T, s *Store, id string, files map[string]string) {
	t.Helper()
	dir, err := s.Prepare(id)
	require.NoError(t, err)
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	require.NoError(t, s.WriteMetadata(id, bundle.Metadata{Version: id, Description: "test " + id}))
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New("", testHost, nil)
	assert.Error(t, err)
}

func TestPathOf(t *testing.T) {
	s := newTestStore(t)

	path, err := s.PathOf(bundle.BaseID)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = s.PathOf("1.2.0")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "1.2.0"), path)

	for _, id := range []string{"", "..", "../x", ".trash-1", "a/b", "x.tmp"} {
		_, err := s.PathOf(id)
		assert.ErrorIs(t, err, bundle.ErrInvalidVersion, id)
	}
}

func TestListBaseFirst(t *testing.T) {
	s := newTestStore(t)

	versions, err := s.List()
	require.NoError(t, err)
	require.Len(t, versions, 1)

	base := versions[0]
	assert.Equal(t, bundle.BaseID, base.ID)
	assert.Equal(t, "2.3.1", base.Version)
	assert.Equal(t, "2.3.0", base.HostVersion)
	assert.True(t, base.Base)
	assert.True(t, base.Good)
}

func TestListSkipsCorruptAndBookkeeping(t *testing.T) {
	s := newTestStore(t)
	install(t, s, "1.2.0", map[string]string{"index.html": "<!DOCTYPE html><html></html>"})

	// No metadata.
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "1.3.0"), 0o755))
	// Unparseable metadata.
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "1.4.0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "1.4.0", MetadataFile), []byte("{not json"), 0o644))
	// Bookkeeping entries.
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), ".trash-1.0.0-x"), 0o755))
	require.NoError(t, s.WriteConfig(bundle.DefaultConfig()))

	versions, err := s.List()
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, bundle.BaseID, versions[0].ID)

	v := versions[1]
	assert.Equal(t, "1.2.0", v.ID)
	assert.Equal(t, "1.2.0", v.Version)
	assert.Equal(t, "test 1.2.0", v.Description)
	assert.Equal(t, "2.3.0", v.HostVersion)
	assert.False(t, v.Good)
	assert.False(t, v.Base)
	assert.Equal(t, int64(len("<!DOCTYPE html><html></html>"))+metadataSize(t, s, "1.2.0"), v.Size)
}

func metadataSize(t *testing.T, s *Store, id string) int64 {
	t.Helper()
	info, err := os.Stat(filepath.Join(s.Root(), id, MetadataFile))
	require.NoError(t, err)
	return info.Size()
}

func TestMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	install(t, s, "1.2.0", nil)

	md, err := s.ReadMetadata("1.2.0")
	require.NoError(t, err)
	assert.False(t, md.Good)

	md.Good = true
	require.NoError(t, s.WriteMetadata("1.2.0", md))

	md, err = s.ReadMetadata("1.2.0")
	require.NoError(t, err)
	assert.True(t, md.Good)
	assert.Equal(t, "1.2.0", md.Version)
}

func TestReadMetadataErrors(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ReadMetadata("9.9.9")
	assert.ErrorIs(t, err, bundle.ErrNotFound)

	_, err = s.ReadMetadata(bundle.BaseID)
	assert.ErrorIs(t, err, bundle.ErrConflict)

	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "1.0.0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "1.0.0", MetadataFile), []byte(`{"version": 12`), 0o644))
	_, err = s.ReadMetadata("1.0.0")
	assert.ErrorIs(t, err, bundle.ErrCorruptMetadata)
}

func TestConfigDefaults(t *testing.T) {
	s := newTestStore(t)

	cfg, err := s.ReadConfig()
	require.NoError(t, err)
	assert.Equal(t, bundle.DefaultConfig(), cfg)

	require.NoError(t, os.WriteFile(s.ConfigPath(), []byte("garbage"), 0o644))
	cfg, err = s.ReadConfig()
	assert.Error(t, err)
	assert.Equal(t, bundle.BaseID, cfg.ActiveVersion)

	want := bundle.Config{ActiveVersion: "1.2.0", PreviousActiveVersion: bundle.BaseID}
	require.NoError(t, s.WriteConfig(want))
	cfg, err = s.ReadConfig()
	require.NoError(t, err)
	assert.Equal(t, want, cfg)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	install(t, s, "1.2.0", map[string]string{
		"index.html":       "<html></html>",
		"assets/app.js":    "console.log(1)",
		"assets/img/a.png": "png",
	})

	require.NoError(t, s.Remove("1.2.0"))
	assert.False(t, s.Exists("1.2.0"))

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.ErrorIs(t, s.Remove("1.2.0"), bundle.ErrNotFound)
	assert.ErrorIs(t, s.Remove(bundle.BaseID), bundle.ErrConflict)
}

func TestRetireHidesVersionBeforePurge(t *testing.T) {
	s := newTestStore(t)
	install(t, s, "1.2.0", map[string]string{"index.html": "<html></html>"})

	trash, err := s.Retire("1.2.0")
	require.NoError(t, err)

	versions, err := s.List()
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	require.NoError(t, s.Purge(trash))
	_, err = os.Stat(trash)
	assert.True(t, os.IsNotExist(err))
}

func TestPurgeRefusesOutsideTrash(t *testing.T) {
	s := newTestStore(t)
	install(t, s, "1.2.0", nil)

	assert.Error(t, s.Purge(filepath.Join(s.Root(), "1.2.0")))
	assert.Error(t, s.Purge(t.TempDir()))
	assert.True(t, s.Exists("1.2.0"))
}

func TestSweep(t *testing.T) {
	s := newTestStore(t)
	install(t, s, "1.2.0", nil)

	trash := filepath.Join(s.Root(), ".trash-1.1.0-abc")
	require.NoError(t, os.MkdirAll(filepath.Join(trash, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(trash, "nested", "f"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), ".config.json.123.tmp"), []byte("x"), 0o644))

	removed, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.True(t, s.Exists("1.2.0"))

	_, err = os.Stat(trash)
	assert.True(t, os.IsNotExist(err))
}

func TestSweepRemovesIncompleteVersions(t *testing.T) {
	s := newTestStore(t)
	install(t, s, "1.2.0", nil)

	// Directories a failed save left without metadata.
	_, err := s.Prepare("1.3.0")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "1.3.0", "partial.js"), []byte("x"), 0o644))
	_, err = s.Prepare("1.4.0")
	require.NoError(t, err)

	// Corrupt metadata is reported by List, not swept.
	_, err = s.Prepare("1.5.0")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "1.5.0", MetadataFile), []byte("{"), 0o644))

	removed, err := s.Sweep("1.4.0")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.True(t, s.Installed("1.2.0"))
	assert.False(t, s.Exists("1.3.0"))
	assert.True(t, s.Exists("1.4.0"))
	assert.True(t, s.Exists("1.5.0"))
}

func TestPrepareClearsStaleFiles(t *testing.T) {
	s := newTestStore(t)
	install(t, s, "1.2.0", map[string]string{"stale.js": "old"})

	dir, err := s.Prepare("1.2.0")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = s.Prepare(bundle.BaseID)
	assert.ErrorIs(t, err, bundle.ErrConflict)
}

func TestCheckEntry(t *testing.T) {
	s := newTestStore(t)
	install(t, s, "1.2.0", map[string]string{"index.html": "<!DOCTYPE html><html><body>hi</body></html>"})
	install(t, s, "1.3.0", map[string]string{"index.html": "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"})

	assert.NoError(t, s.CheckEntry("1.2.0", "index.html"))
	assert.NoError(t, s.CheckEntry("1.2.0", ""))
	assert.NoError(t, s.CheckEntry(bundle.BaseID, "index.html"))

	assert.ErrorIs(t, s.CheckEntry("1.2.0", "missing.html"), bundle.ErrIncompatible)
	assert.ErrorIs(t, s.CheckEntry("1.2.0", "../1.3.0/index.html"), bundle.ErrIncompatible)
	assert.ErrorIs(t, s.CheckEntry("1.3.0", "index.html"), bundle.ErrIncompatible)
}

func TestDiskUsage(t *testing.T) {
	s := newTestStore(t)
	install(t, s, "1.2.0", map[string]string{"a": "12345", "b/c": "123"})

	size, err := s.DiskUsage("1.2.0")
	require.NoError(t, err)
	assert.Equal(t, int64(8)+metadataSize(t, s, "1.2.0"), size)

	size, err = s.DiskUsage(bundle.BaseID)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestInstalled(t *testing.T) {
	s := newTestStore(t)
	install(t, s, "1.2.0", nil)
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "1.3.0"), 0o755))

	assert.True(t, s.Installed(bundle.BaseID))
	assert.True(t, s.Installed("1.2.0"))
	assert.False(t, s.Installed("1.3.0"))
	assert.True(t, s.Exists("1.3.0"))
	assert.False(t, s.Installed("../etc"))
}
