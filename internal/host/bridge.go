package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/shared/utils"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/ws"
)

// Prefs is the persisted host state.
type Prefs struct {
	ServerBasePath string    `toml:"serverBasePath"`
	UpdatedAt      time.Time `toml:"updatedAt"`
}

// Broadcaster delivers reload events to renderers.
type Broadcaster interface {
	Broadcast(ev ws.Event) int
}

// Bridge is the host side of activation. It remembers which directory the
// renderer should load from and tells connected renderers to reload.
type Bridge struct {
	path   string
	hub    Broadcaster
	logger *zap.Logger

	mu    sync.RWMutex
	prefs Prefs // Protected by mu
}

// NewBridge loads the prefs file at path, if any. hub may be nil.
func NewBridge(path string, hub Broadcaster, logger *zap.Logger) (*Bridge, error) {
	if path == "" {
		return nil, fmt.Errorf("host prefs path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Bridge{
		path:   path,
		hub:    hub,
		logger: logger.Named("host"),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read host prefs: %w", err)
	default:
		if err := toml.Unmarshal(data, &b.prefs); err != nil {
			b.logger.Warn("Ignoring unreadable host prefs", zap.String("path", path), zap.Error(err))
			b.prefs = Prefs{}
		}
	}
	return b, nil
}

// ContentRoot returns the persisted content root; "" means the embedded base.
func (b *Bridge) ContentRoot() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.prefs.ServerBasePath
}

// SetActiveContentRoot persists path as the root to serve from.
func (b *Bridge) SetActiveContentRoot(path string) error {
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("content root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("content root %s is not a directory", path)
		}
	}

	next := Prefs{ServerBasePath: path, UpdatedAt: time.Now().UTC()}
	data, err := toml.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode host prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create host prefs directory: %w", err)
	}
	if err := utils.WriteFileAtomic(b.path, data, 0o644); err != nil {
		return fmt.Errorf("write host prefs: %w", err)
	}

	b.mu.Lock()
	b.prefs = next
	b.mu.Unlock()

	b.logger.Debug("Content root updated", zap.String("root", path))
	return nil
}

// ReloadContent tells renderers to load from the current content root.
func (b *Bridge) ReloadContent() error {
	root := b.ContentRoot()
	id := bundle.BaseID
	if root != "" {
		id = filepath.Base(root)
	}

	delivered := 0
	if b.hub != nil {
		delivered = b.hub.Broadcast(ws.Event{Type: ws.EventReload, Version: id, Root: root})
	}
	b.logger.Info("Reload requested", zap.String("version", id), zap.Int("renderers", delivered))
	return nil
}
