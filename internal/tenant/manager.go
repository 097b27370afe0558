package tenant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	gosync "sync"

	"github.com/fieldkit/salesync/internal/config"
	"github.com/fieldkit/salesync/pkg/db"
	"github.com/fieldkit/salesync/pkg/tenantctx"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNoActiveStore = errors.New("no_active_store")
	// ErrStoreOpen is returned by Delete when the target store is still
	// open; callers must Close first.
	ErrStoreOpen = errors.New("store_still_open")
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// Manager owns the lifecycle of the per-tenant store. Exactly one store
// handle is open at a time, addressed by (entity id, server origin);
// opening a different tenant closes the previous one first.
type Manager struct {
	mu      gosync.Mutex
	log     *zap.Logger
	dataDir string

	current *openStore
}

type openStore struct {
	key  tenantctx.Tenant
	conn *gorm.DB
}

func New(p Params) *Manager {
	return &Manager{
		log:     p.Log.Named("tenant.manager"),
		dataDir: p.Config.DataDir,
	}
}

// Open opens (creating on first use) the store bound to key and applies
// pending migrations. A store open for a different key is closed first.
func (m *Manager) Open(ctx context.Context, key tenantctx.Tenant) error {
	if key.EntityID == "" || key.ServerOrigin == "" {
		return fmt.Errorf("open store: %w", ErrNoActiveStore)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if m.current.key == key {
			return nil
		}
		if err := m.closeLocked(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(m.dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	path := m.storePath(key)
	conn, err := db.Open(path)
	if err != nil {
		return err
	}

	if err := Migrate(conn); err != nil {
		_ = db.Close(conn)
		return fmt.Errorf("migrate store %s: %w", path, err)
	}

	m.current = &openStore{key: key, conn: conn}
	m.log.Info("tenant store opened",
		zap.String("entity_id", key.EntityID),
		zap.String("server_origin", key.ServerOrigin),
	)
	return nil
}

// Close releases the open handle without deleting data. Idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *Manager) closeLocked() error {
	if m.current == nil {
		return nil
	}
	key := m.current.key
	err := db.Close(m.current.conn)
	m.current = nil
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	m.log.Info("tenant store closed", zap.String("entity_id", key.EntityID))
	return nil
}

// Delete permanently removes the tenant's store contents. The store must
// be closed first.
func (m *Manager) Delete(ctx context.Context, key tenantctx.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.key == key {
		return ErrStoreOpen
	}

	path := m.storePath(key)
	for _, name := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete store: %w", err)
		}
	}

	m.log.Info("tenant store deleted",
		zap.String("entity_id", key.EntityID),
		zap.String("server_origin", key.ServerOrigin),
	)
	return nil
}

// Handle returns the currently open store. When the context carries a
// tenant key that differs from the open one, the access is a programming
// error and fails with ErrNoActiveStore.
func (m *Manager) Handle(ctx context.Context) (*gorm.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, ErrNoActiveStore
	}
	if want, ok := tenantctx.FromContext(ctx); ok && want != m.current.key {
		return nil, ErrNoActiveStore
	}
	return m.current.conn, nil
}

// Current returns the key of the open store, if any.
func (m *Manager) Current() (tenantctx.Tenant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return tenantctx.Tenant{}, false
	}
	return m.current.key, true
}

func (m *Manager) storePath(key tenantctx.Tenant) string {
	name := slug.Make(key.EntityID + "-" + key.ServerOrigin)
	return filepath.Join(m.dataDir, name+".db")
}
