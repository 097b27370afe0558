package devicestate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/fieldkit/salesync/internal/clock"
	"github.com/fieldkit/salesync/internal/config"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// State is the device-level configuration layer: which entity is logged
// in, against which server, under which session id. It exists alongside
// the per-tenant AppConfig row; both must be cleared on logout.
type State struct {
	DeviceID     string    `json:"device_id"`
	LoggedIn     bool      `json:"logged_in"`
	SessionID    string    `json:"session_id,omitempty"`
	EntityID     string    `json:"entity_id,omitempty"`
	ServerOrigin string    `json:"server_origin,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock
}

// Service guards the device state behind an injected handle; components
// never read the file directly.
type Service struct {
	mu    gosync.RWMutex
	log   *zap.Logger
	clock clock.Clock
	path  string

	current State
}

// New loads the persisted device state, minting a device installation id
// on first run.
func New(p Params) (*Service, error) {
	s := &Service{
		log:   p.Log.Named("devicestate"),
		clock: p.Clock,
		path:  filepath.Join(p.Config.DataDir, "device.json"),
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) init() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.current = State{
			DeviceID:  uuid.NewString(),
			UpdatedAt: s.clock.Now(),
		}
		return s.persist()
	}
	if err != nil {
		return fmt.Errorf("read device state: %w", err)
	}

	if err := json.Unmarshal(data, &s.current); err != nil {
		return fmt.Errorf("parse device state: %w", err)
	}
	if s.current.DeviceID == "" {
		s.current.DeviceID = uuid.NewString()
		return s.persist()
	}
	return nil
}

// Get returns a copy of the current state.
func (s *Service) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set persists the active session keys and flips the logged-in flag.
func (s *Service) Set(sessionID, entityID, serverOrigin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.SessionID = sessionID
	s.current.EntityID = entityID
	s.current.ServerOrigin = serverOrigin
	s.current.LoggedIn = true
	s.current.UpdatedAt = s.clock.Now()
	return s.persist()
}

// SetLoggedIn flips only the logged-in flag so in-flight operations
// observe the logout before the session keys disappear.
func (s *Service) SetLoggedIn(loggedIn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.LoggedIn = loggedIn
	s.current.UpdatedAt = s.clock.Now()
	return s.persist()
}

// Clear removes every session key while keeping the device id.
func (s *Service) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.SessionID = ""
	s.current.EntityID = ""
	s.current.ServerOrigin = ""
	s.current.LoggedIn = false
	s.current.UpdatedAt = s.clock.Now()
	return s.persist()
}

// Teardown flushes the state to disk; used on shutdown.
func (s *Service) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

func (s *Service) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write device state: %w", err)
	}
	return nil
}
