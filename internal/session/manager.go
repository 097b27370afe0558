package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	gosync "sync"
	"time"

	"github.com/fieldkit/salesync/internal/clock"
	"github.com/fieldkit/salesync/internal/devicestate"
	storedomain "github.com/fieldkit/salesync/internal/store/domain"
	"github.com/fieldkit/salesync/internal/tenant"
	"github.com/fieldkit/salesync/internal/transport"
	"github.com/fieldkit/salesync/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// State is the session lifecycle position. A session only becomes usable
// in StateSessionConfirmed; every failure path lands back in
// StateLoggedOut, never in between.
type State string

const (
	StateLoggedOut        State = "logged_out"
	StateAuthenticating   State = "authenticating"
	StateSessionPending   State = "session_pending"
	StateSessionConfirmed State = "session_confirmed"
)

var (
	ErrSessionExpired    = errors.New("session_expired")
	ErrSessionMismatch   = errors.New("session_mismatch")
	ErrInvalidCredential = errors.New("invalid_credential")
)

// Credential is the decoded QR login blob.
type Credential struct {
	ServerOrigin string `json:"server_origin"`
	QRCodeData   string `json:"qr_code_data"`
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Device  *devicestate.Service
	Tenants *tenant.Manager
	Store   storedomain.Service
	Client  *transport.Client
}

// Manager runs the login handshake and owns the invalidate-on-mismatch
// policy.
type Manager struct {
	mu    gosync.Mutex
	state State

	log     *zap.Logger
	clock   clock.Clock
	device  *devicestate.Service
	tenants *tenant.Manager
	store   storedomain.Service
	client  *transport.Client

	logoutHooks []func(reason string)
}

func NewManager(p Params) *Manager {
	return &Manager{
		state:   StateLoggedOut,
		log:     p.Log.Named("session.manager"),
		clock:   p.Clock,
		device:  p.Device,
		tenants: p.Tenants,
		store:   p.Store,
		client:  p.Client,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Confirmed() bool {
	return m.State() == StateSessionConfirmed
}

// OnLogout registers a presentation-layer hook run at the end of every
// logout sequence, successful or not.
func (m *Manager) OnLogout(fn func(reason string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logoutHooks = append(m.logoutHooks, fn)
}

// ActiveSession returns the confirmed session keys the Sync Engine
// attaches to a batch.
func (m *Manager) ActiveSession() (sessionID, entityID, serverOrigin string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateSessionConfirmed {
		return "", "", "", ErrSessionExpired
	}
	state := m.device.Get()
	if !state.LoggedIn || state.SessionID == "" {
		return "", "", "", ErrSessionExpired
	}
	return state.SessionID, state.EntityID, state.ServerOrigin, nil
}

// Login executes the full handshake from a scanned credential blob. It
// either ends in StateSessionConfirmed with the tenant store open, or in
// StateLoggedOut with no trace of the attempt.
func (m *Manager) Login(ctx context.Context, payload []byte) (transport.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	credential, err := decodeCredential(payload)
	if err != nil {
		return transport.Entity{}, err
	}

	m.state = StateAuthenticating

	entity, err := m.client.CheckConnection(ctx, credential.ServerOrigin, credential.QRCodeData, m.device.Get().DeviceID, time.Time{})
	if err != nil {
		m.state = StateLoggedOut
		return transport.Entity{}, fmt.Errorf("check connection: %w", err)
	}
	if entity.EntityID == "" {
		m.state = StateLoggedOut
		return transport.Entity{}, ErrInvalidCredential
	}

	sessionID := mintSessionID()
	m.state = StateSessionPending

	key := tenantctx.Tenant{EntityID: entity.EntityID, ServerOrigin: credential.ServerOrigin}
	tctx := tenantctx.WithTenant(ctx, key)

	if err := m.establish(tctx, key, sessionID, credential.ServerOrigin, entity); err != nil {
		m.revertLocked(tctx, "login_failed")
		return transport.Entity{}, err
	}

	if err := m.client.ConfirmLogin(ctx, credential.ServerOrigin, sessionID, entity.EntityID); err != nil {
		m.revertLocked(tctx, "confirmation_failed")
		return transport.Entity{}, fmt.Errorf("confirm session: %w", err)
	}

	m.state = StateSessionConfirmed
	m.log.Info("session confirmed",
		zap.String("entity_id", entity.EntityID),
		zap.String("server_origin", credential.ServerOrigin),
	)
	return entity, nil
}

func (m *Manager) establish(ctx context.Context, key tenantctx.Tenant, sessionID, serverOrigin string, entity transport.Entity) error {
	if err := m.device.Set(sessionID, entity.EntityID, serverOrigin); err != nil {
		return fmt.Errorf("persist device session: %w", err)
	}

	if err := m.tenants.Open(ctx, key); err != nil {
		return fmt.Errorf("open tenant store: %w", err)
	}

	profile := datatypes.JSONMap{}
	for k, v := range entity.Profile {
		profile[k] = v
	}
	cfg := storedomain.AppConfig{
		SessionID:      &sessionID,
		EntityID:       entity.EntityID,
		CashierName:    entity.CashierName,
		CompanyName:    entity.CompanyName,
		CompanyAddress: entity.CompanyAddress,
		CompanyLogoURL: entity.CompanyLogoURL,
		ConnectionURL:  serverOrigin,
		Profile:        profile,
	}
	if err := m.store.SaveAppConfig(ctx, cfg); err != nil {
		return fmt.Errorf("persist app config: %w", err)
	}
	return nil
}

// Resume restores a confirmed session across process restarts when the
// device state still holds one.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.device.Get()
	if !state.LoggedIn || state.SessionID == "" || state.EntityID == "" {
		return nil
	}

	key := tenantctx.Tenant{EntityID: state.EntityID, ServerOrigin: state.ServerOrigin}
	if err := m.tenants.Open(ctx, key); err != nil {
		return fmt.Errorf("reopen tenant store: %w", err)
	}

	m.state = StateSessionConfirmed
	m.log.Info("session resumed", zap.String("entity_id", state.EntityID))
	return nil
}

// Heartbeat reports presence to the server under the active session.
func (m *Manager) Heartbeat(ctx context.Context) error {
	state := m.device.Get()
	if !state.LoggedIn {
		return ErrSessionExpired
	}
	_, err := m.client.CheckConnection(ctx, state.ServerOrigin, "", state.DeviceID, m.clock.Now())
	return err
}

// Logout is the user-initiated path.
func (m *Manager) Logout(ctx context.Context) {
	m.ForceLogout(ctx, "user_logout")
}

// ForceLogout tears the session down. The steps run in order and each is
// independently best-effort: a failing step is logged and the rest still
// execute, because a partially logged-in device is worse than a noisy
// cleanup.
func (m *Manager) ForceLogout(ctx context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revertLocked(ctx, reason)
}

func (m *Manager) revertLocked(ctx context.Context, reason string) {
	log := m.log.With(zap.String("reason", reason))

	steps := []struct {
		name string
		run  func() error
	}{
		{"mark_logged_out", func() error { return m.device.SetLoggedIn(false) }},
		{"clear_app_config", func() error { return m.store.ClearSession(ctx) }},
		{"clear_device_state", func() error { return m.device.Clear() }},
		{"close_tenant_store", func() error { return m.tenants.Close() }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			log.Warn("logout step failed", zap.String("step", step.name), zap.Error(err))
		}
	}

	m.state = StateLoggedOut
	for _, hook := range m.logoutHooks {
		hook(reason)
	}
	log.Info("logged out")
}

// WipeData logs out and deletes the tenant's store contents; used for
// explicit wipe and account-switch cleanup.
func (m *Manager) WipeData(ctx context.Context) error {
	key, open := m.tenants.Current()
	if !open {
		state := m.device.Get()
		key = tenantctx.Tenant{EntityID: state.EntityID, ServerOrigin: state.ServerOrigin}
	}

	m.ForceLogout(ctx, "wipe_data")

	if key.EntityID == "" {
		return nil
	}
	return m.tenants.Delete(ctx, key)
}

func decodeCredential(payload []byte) (Credential, error) {
	var credential Credential
	if err := json.Unmarshal(payload, &credential); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	credential.ServerOrigin = strings.TrimRight(strings.TrimSpace(credential.ServerOrigin), "/")
	if credential.ServerOrigin == "" || credential.QRCodeData == "" {
		return Credential{}, ErrInvalidCredential
	}
	return credential, nil
}

// mintSessionID produces the opaque 6-digit session identifier. It only
// lets the server tell this device's current login apart from a stale
// one; it is deliberately not a secret.
func mintSessionID() string {
	return fmt.Sprintf("%06d", 100000+rand.IntN(900000))
}
