package update

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/version"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/extract"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/shared/utils"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/store"
)

const pruneWorkers = 4

// Manager is the single owner of a bundle root.
type Manager struct {
	store     *store.Store
	extractor *extract.Extractor
	host      Host
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	entryFile string

	opMu sync.Mutex   // serializes Save, Use, Activate, Delete, MarkGood, Prune
	mu   sync.RWMutex // guards cfg and directory renames against listings
	once sync.Once
	cfg  bundle.Config // Protected by mu
}

// NewManager creates a manager over st. host may be nil when nothing serves
// the bundles, in which case activation only updates the config.
func NewManager(st *store.Store, extractor *extract.Extractor, host Host, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractor == nil {
		extractor = extract.New(extract.DefaultWorkers, logger)
	}
	return &Manager{
		store:     st,
		extractor: extractor,
		host:      host,
		logger:    logger.Named("update"),
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithEntryFile requires versions to contain an HTML entry file before they
// can be activated.
func (m *Manager) WithEntryFile(entry string) *Manager {
	m.entryFile = entry
	return m
}

// load reads the activation state once. A missing or corrupt file yields the
// default state; a dangling active version falls back to base in memory.
func (m *Manager) load() {
	m.once.Do(func() {
		cfg, err := m.store.ReadConfig()
		if err != nil {
			m.logger.Warn("Using default bundle config", zap.String("path", m.store.ConfigPath()), zap.Error(err))
		}
		if cfg.ActiveVersion != bundle.BaseID && !m.store.Installed(cfg.ActiveVersion) {
			m.logger.Warn("Active bundle version missing, serving base",
				zap.String("version", cfg.ActiveVersion))
			cfg.ActiveVersion = bundle.BaseID
		}

		m.mu.Lock()
		m.cfg = cfg
		m.mu.Unlock()

		if n, err := m.store.Sweep(cfg.ActiveVersion, cfg.PreviousActiveVersion); err != nil {
			m.logger.Warn("Bundle root sweep incomplete", zap.Int("removed", n), zap.Error(err))
		} else if n > 0 {
			m.logger.Info("Swept retired bundle versions", zap.Int("removed", n))
		}
	})
}

// Config returns a copy of the cached activation state.
func (m *Manager) Config() bundle.Config {
	m.load()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// List returns the base version followed by every installed version, each
// annotated with whether it is active or previous. Order beyond base-first
// follows the directory scan.
func (m *Manager) List() []bundle.Version {
	m.load()
	start := time.Now()

	m.mu.RLock()
	cfg := m.cfg
	versions, err := m.store.List()
	m.mu.RUnlock()

	if err != nil {
		m.logger.Warn("Bundle listing incomplete", zap.Error(err))
	}

	for i := range versions {
		versions[i].Active = versions[i].ID == cfg.ActiveVersion
		versions[i].Previous = versions[i].ID == cfg.PreviousActiveVersion
	}

	m.metrics.SetInstalled(len(versions) - 1)
	m.metrics.RecordOperation("list", statusOf(err), time.Since(start))
	return versions
}

// Status reports the activation state and whether the active version has
// been confirmed.
func (m *Manager) Status() bundle.Status {
	cfg := m.Config()
	status := bundle.Status{
		ActiveVersion:         cfg.ActiveVersion,
		PreviousActiveVersion: cfg.PreviousActiveVersion,
		Confirmed:             cfg.ActiveVersion == bundle.BaseID,
	}
	if !status.Confirmed {
		if md, err := m.store.ReadMetadata(cfg.ActiveVersion); err == nil {
			status.Confirmed = md.Good
		}
	}
	return status
}

// Save extracts payload into the directory named by id and records its
// metadata. The version is installed but not activated. Empty or invalid ids
// and nil payloads are logged no-ops. A payload without a file tree fails with
// ErrExtraction; the active and base versions are refused with ErrConflict.
func (m *Manager) Save(ctx context.Context, id string, payload *bundle.Payload) (err error) {
	m.load()
	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	defer func() { m.metrics.RecordOperation("save", statusOf(err), time.Since(start)) }()

	log := m.logger.With(zap.String("version", id))
	if id == "" || payload == nil {
		log.Warn("Ignoring save without version or payload")
		return nil
	}
	if id == bundle.BaseID || id == m.Config().ActiveVersion {
		log.Warn("Refusing to overwrite active or base version")
		return fmt.Errorf("%w: %s", bundle.ErrConflict, id)
	}
	if _, err := m.store.PathOf(id); err != nil {
		log.Warn("Ignoring save for invalid version", zap.Error(err))
		return nil
	}

	if payload.Files == nil {
		return fmt.Errorf("%w: payload has no file tree", bundle.ErrExtraction)
	}
	if err := utils.ValidateDescription(payload.Description); err != nil {
		return fmt.Errorf("%w: %v", bundle.ErrExtraction, err)
	}

	if m.store.Exists(id) {
		if err := m.retire(id); err != nil {
			return fmt.Errorf("%w: clear %s: %v", bundle.ErrExtraction, id, err)
		}
	}

	dir, err := m.store.Prepare(id)
	if err != nil {
		return fmt.Errorf("%w: %v", bundle.ErrExtraction, err)
	}

	stats, err := m.extractor.Extract(ctx, payload.Files, dir)
	if err != nil {
		return err
	}
	m.metrics.AddExtracted(stats.Files, stats.Bytes)

	if err := m.store.WriteMetadata(id, payload.Metadata(id)); err != nil {
		return err
	}

	log.Info("Bundle version installed",
		zap.Int64("files", stats.Files),
		zap.Int64("bytes", stats.Bytes),
	)
	return nil
}

// Use makes id the active version and tells the host to reload from it.
// Using the already active version is a no-op.
func (m *Manager) Use(id string) error {
	m.load()
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.use(id, true)
}

// UseDeferred makes id the active version without notifying the host. The
// host picks it up on Activate or its next start.
func (m *Manager) UseDeferred(id string) error {
	m.load()
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.use(id, false)
}

// Activate points the host at the current active version and reloads it.
func (m *Manager) Activate() (err error) {
	m.load()
	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	defer func() { m.metrics.RecordOperation("activate", statusOf(err), time.Since(start)) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notify(m.cfg.ActiveVersion)
}

// Rollback re-activates the previous version when it is still available.
func (m *Manager) Rollback() error {
	m.load()
	m.opMu.Lock()
	defer m.opMu.Unlock()

	prev := m.Config().PreviousActiveVersion
	if prev == "" {
		m.logger.Debug("No previous bundle version to roll back to")
		return nil
	}
	if !m.store.Installed(prev) {
		m.logger.Warn("Previous bundle version no longer installed", zap.String("version", prev))
		return nil
	}
	return m.use(prev, true)
}

func (m *Manager) use(id string, reload bool) (err error) {
	start := time.Now()
	defer func() { m.metrics.RecordOperation("use", statusOf(err), time.Since(start)) }()

	log := m.logger.With(zap.String("version", id))
	if id == "" {
		log.Warn("Ignoring use without version")
		return nil
	}

	if id == m.Config().ActiveVersion {
		return nil
	}
	if err := m.checkUsable(id); err != nil {
		if errors.Is(err, bundle.ErrIncompatible) {
			return err
		}
		log.Warn("Ignoring use of unavailable version", zap.Error(err))
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.cfg

	next := bundle.Config{ActiveVersion: id, PreviousActiveVersion: prev.ActiveVersion}
	m.cfg = next
	if err := m.store.WriteConfig(next); err != nil {
		m.cfg = prev
		return err
	}
	log.Info("Bundle version activated", zap.String("previous", prev.ActiveVersion), zap.Bool("reload", reload))

	if !reload {
		return nil
	}
	return m.notify(id)
}

// checkUsable verifies that id exists and that this host can serve it.
func (m *Manager) checkUsable(id string) error {
	if id == bundle.BaseID {
		return nil
	}

	md, err := m.store.ReadMetadata(id)
	if err != nil {
		return err
	}

	hostVersion := m.store.Host().HostVersion
	if md.MinHostVersion != "" && version.IsGreater(md.MinHostVersion, hostVersion) {
		return fmt.Errorf("%w: %s requires host %s, running %s",
			bundle.ErrIncompatible, id, md.MinHostVersion, hostVersion)
	}
	return m.store.CheckEntry(id, m.entryFile)
}

// notify must be called with mu held.
func (m *Manager) notify(id string) error {
	if m.host == nil {
		return nil
	}

	path, err := m.store.PathOf(id)
	if err != nil {
		return err
	}
	if err := m.host.SetActiveContentRoot(path); err != nil {
		return fmt.Errorf("set content root: %w", err)
	}
	if err := m.host.ReloadContent(); err != nil {
		return fmt.Errorf("reload content: %w", err)
	}
	m.metrics.RecordReload()
	return nil
}

// Delete removes an installed version. The active and base versions are never
// removed; unknown versions and removal failures are logged no-ops.
func (m *Manager) Delete(id string) error {
	m.load()
	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	status := "ok"
	defer func() { m.metrics.RecordOperation("delete", status, time.Since(start)) }()

	log := m.logger.With(zap.String("version", id))
	if id == "" || id == bundle.BaseID {
		status = "skipped"
		return nil
	}

	if err := m.retire(id); err != nil {
		status = "skipped"
		if errors.Is(err, bundle.ErrNotFound) || errors.Is(err, bundle.ErrConflict) {
			log.Debug("Bundle version not deleted", zap.Error(err))
		} else {
			log.Warn("Bundle version not deleted", zap.Error(err))
		}
		return nil
	}

	log.Info("Bundle version deleted")
	return nil
}

// retire moves id out of the listing under the state lock and then purges
// it. A failed purge is left for the next sweep.
func (m *Manager) retire(id string) error {
	trash, err := m.retireLocked(id)
	if err != nil {
		return err
	}
	if err := m.store.Purge(trash); err != nil {
		m.logger.Warn("Retired bundle version only partially removed",
			zap.String("version", id), zap.String("path", trash), zap.Error(err))
	}
	return nil
}

func (m *Manager) retireLocked(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == m.cfg.ActiveVersion {
		return "", fmt.Errorf("%w: %s", bundle.ErrConflict, id)
	}
	return m.store.Retire(id)
}

// MarkGood confirms the active version. Anything other than the active,
// non-base version is a no-op, as is confirming twice.
func (m *Manager) MarkGood(id string) (err error) {
	m.load()
	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	defer func() { m.metrics.RecordOperation("good", statusOf(err), time.Since(start)) }()

	if id == "" || id == bundle.BaseID || id != m.Config().ActiveVersion {
		return nil
	}

	md, err := m.store.ReadMetadata(id)
	if err != nil {
		m.logger.Warn("Cannot confirm bundle version", zap.String("version", id), zap.Error(err))
		return nil
	}
	if md.Good {
		return nil
	}

	md.Good = true
	if err := m.store.WriteMetadata(id, md); err != nil {
		return err
	}
	m.logger.Info("Bundle version confirmed", zap.String("version", id))
	return nil
}

// Prune deletes every installed version that is not base, active or
// previous, and sweeps leftovers from earlier partial removals. It returns
// the ids that were retired.
func (m *Manager) Prune() []string {
	m.load()
	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	cfg := m.Config()

	var retired []string
	var trash []string
	for _, v := range m.List() {
		if v.Base || v.ID == cfg.ActiveVersion || v.ID == cfg.PreviousActiveVersion {
			continue
		}
		path, err := m.retireLocked(v.ID)
		if err != nil {
			m.logger.Warn("Bundle version not pruned", zap.String("version", v.ID), zap.Error(err))
			continue
		}
		retired = append(retired, v.ID)
		trash = append(trash, path)
	}

	var g errgroup.Group
	g.SetLimit(pruneWorkers)
	for _, path := range trash {
		path := path
		g.Go(func() error {
			if err := m.store.Purge(path); err != nil {
				m.logger.Warn("Pruned bundle version only partially removed", zap.String("path", path), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if _, err := m.store.Sweep(cfg.ActiveVersion, cfg.PreviousActiveVersion); err != nil {
		m.logger.Warn("Bundle root sweep incomplete", zap.Error(err))
	}

	m.metrics.RecordOperation("prune", "ok", time.Since(start))
	if len(retired) > 0 {
		m.logger.Info("Pruned bundle versions", zap.Strings("versions", retired))
	}
	return retired
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
