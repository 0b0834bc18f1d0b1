package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mselser95/marketview/internal/api"
	"github.com/mselser95/marketview/internal/wallet"
	"github.com/mselser95/marketview/pkg/types"
)

// ErrDevLoginDisabled is returned by DevLogin when dev logins are turned off.
var ErrDevLoginDisabled = errors.New("dev login is disabled")

// errSuperseded is returned when a disconnect or identity switch happened
// while an operation was in flight.
var errSuperseded = errors.New("session changed while the request was in flight")

const devLoginKey = "dev-login"

// Config holds the manager configuration.
type Config struct {
	Backend         Backend
	Provider        Provider // Optional; nil disables provider logout and access-token verification
	Store           Store
	Policy          wallet.Policy
	SyncTimeout     time.Duration
	DevLoginEnabled bool
	Logger          *zap.Logger
}

// Manager is the single writer of the session and its bearer token.
// It is safe for concurrent use. Backend calls run outside the lock.
type Manager struct {
	backend         Backend
	provider        Provider
	store           Store
	policy          wallet.Policy
	syncTimeout     time.Duration
	devLoginEnabled bool
	logger          *zap.Logger

	mu         sync.Mutex
	session    Session
	provState  *ProviderState // Last authenticated provider observation
	hasSynced  bool
	syncing    bool
	devPending bool
	epoch      uint64 // Bumped on every disconnect or identity switch

	group singleflight.Group
}

// New creates a new session manager in the unauthenticated state.
func New(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Backend == nil {
		return nil, errors.New("backend cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	policy := cfg.Policy
	if len(policy.Order) == 0 {
		policy = wallet.PhantomFirst()
	}

	timeout := cfg.SyncTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	m := &Manager{
		backend:         cfg.Backend,
		provider:        cfg.Provider,
		store:           cfg.Store,
		policy:          policy,
		syncTimeout:     timeout,
		devLoginEnabled: cfg.DevLoginEnabled,
		logger:          cfg.Logger,
		session:         Session{State: StateUnauthenticated, UpdatedAt: time.Now()},
	}
	setStateGauge(StateUnauthenticated)

	return m, nil
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session
}

// Token returns the current bearer token. It implements api.TokenSource.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session.Token
}

// Restore loads a persisted session. A restored provider session counts as
// synced for its identity, so observing the same identity does not sync again.
func (m *Manager) Restore(ctx context.Context) error {
	stored, err := m.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if stored == nil || stored.Token == "" {
		return nil
	}

	m.mu.Lock()
	m.session = *stored
	m.hasSynced = true
	m.mu.Unlock()

	setStateGauge(stored.State)

	m.logger.Info("session-restored",
		zap.String("state", string(stored.State)),
		zap.String("user-id", stored.BackendUserID),
		zap.Bool("dev-user", stored.IsDevUser))

	return nil
}

// Observe reacts to an auth provider observation. An authenticated identity
// that has not been synced yet is synced exactly once; concurrent observers
// share the same backend call.
func (m *Manager) Observe(ctx context.Context, ps ProviderState) {
	if !ps.Ready {
		return
	}

	m.mu.Lock()

	if m.session.IsDevUser || m.devPending {
		m.mu.Unlock()
		return
	}

	if !ps.Authenticated || ps.User == nil || ps.User.ID == "" {
		cleared := m.session.State != StateUnauthenticated
		if cleared {
			m.resetLocked()
		}
		m.provState = nil
		m.mu.Unlock()

		if cleared {
			m.clearStore(ctx)
			m.logger.Info("session-cleared-provider-logged-out")
		}
		return
	}

	identity := ps.User.ID
	switched := false

	if m.session.IdentityID != identity {
		switched = m.session.IdentityID != "" || m.session.HasToken()
		m.resetLocked()
		m.session.State = StateUnsynced
		m.session.IdentityID = identity
		setStateGauge(StateUnsynced)
	}

	observed := ps
	m.provState = &observed

	if m.hasSynced || m.syncing {
		m.mu.Unlock()
		if switched {
			m.clearStore(ctx)
		}
		return
	}

	m.syncing = true
	epoch := m.epoch
	m.mu.Unlock()

	if switched {
		m.clearStore(ctx)
		m.logger.Info("session-identity-switched", zap.String("identity-id", identity))
	}

	m.syncShared(ctx, identity, epoch)
}

// RetrySync makes sure a token exists. It returns true immediately when one
// does, false when no provider identity is present, and otherwise runs (or
// joins) a sync and reports whether a token exists afterwards.
func (m *Manager) RetrySync(ctx context.Context) bool {
	m.mu.Lock()

	if m.session.HasToken() {
		m.mu.Unlock()
		return true
	}

	if m.session.IsDevUser || m.provState == nil || m.session.IdentityID == "" {
		m.mu.Unlock()
		return false
	}

	identity := m.session.IdentityID
	epoch := m.epoch
	m.syncing = true
	m.mu.Unlock()

	m.logger.Info("session-retry-sync", zap.String("identity-id", identity))

	return m.syncShared(ctx, identity, epoch)
}

// DevLogin provisions a demo user and switches the session to it. It is a
// no-op for an existing dev session. A provider session is only replaced,
// and the provider logged out, once the demo user and token were obtained.
func (m *Manager) DevLogin(ctx context.Context) error {
	if !m.devLoginEnabled {
		return ErrDevLoginDisabled
	}

	_, err, _ := m.group.Do(devLoginKey, func() (any, error) {
		return nil, m.devLogin(ctx)
	})

	return err
}

func (m *Manager) devLogin(ctx context.Context) error {
	m.mu.Lock()

	if m.session.IsDevUser {
		m.mu.Unlock()
		return nil
	}

	epoch := m.epoch
	m.devPending = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.devPending = false
		m.mu.Unlock()
	}()

	// The current session stays untouched until the demo user and its token
	// are both in hand.
	users, err := m.backend.CreateDemoUsers(ctx, 1)
	if err != nil {
		return fmt.Errorf("create demo user: %w", err)
	}

	if len(users) == 0 {
		return errors.New("create demo user: backend returned no users")
	}

	demo := users[0]

	token, err := m.backend.DemoToken(ctx, demo.ID)
	if err != nil {
		return fmt.Errorf("get demo token: %w", err)
	}

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		StaleResultsTotal.Inc()
		return errSuperseded
	}

	providerSession := !m.session.IsDevUser && (m.provState != nil || m.session.IdentityID != "")
	m.resetLocked()
	m.session = Session{
		State:         StateDevUser,
		BackendUserID: demo.ID,
		Email:         demo.Email,
		DisplayName:   demo.DisplayName,
		AvatarURL:     demo.AvatarURL,
		WalletAddress: wallet.DemoAddress(demo.ID),
		WalletType:    wallet.TypeNone,
		Token:         token,
		IsDevUser:     true,
		UpdatedAt:     time.Now(),
	}
	m.provState = nil
	m.hasSynced = true
	snapshot := m.session
	m.mu.Unlock()

	if providerSession && m.provider != nil {
		err = m.provider.Logout(ctx)
		if err != nil {
			m.logger.Warn("provider-logout-failed", zap.Error(err))
		}
	}

	setStateGauge(StateDevUser)
	DevLoginsTotal.Inc()
	m.persist(ctx, snapshot)

	m.logger.Info("session-dev-login",
		zap.String("user-id", demo.ID),
		zap.String("wallet", snapshot.WalletAddress))

	return nil
}

// Disconnect clears the session. Provider logout is only requested for
// provider sessions, and a logout failure does not block the local clear.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	providerSession := !m.session.IsDevUser && (m.provState != nil || m.session.IdentityID != "")
	wasConnected := m.session.State != StateUnauthenticated
	m.resetLocked()
	m.provState = nil
	m.mu.Unlock()

	m.clearStore(ctx)

	if providerSession && m.provider != nil {
		err := m.provider.Logout(ctx)
		if err != nil {
			m.logger.Warn("provider-logout-failed", zap.Error(err))
		}
	}

	if wasConnected {
		m.logger.Info("session-disconnected")
	}
}

// syncShared runs the sync for identity through the singleflight group so
// concurrent callers share one backend call. The sync itself is detached
// from the caller's cancellation and bounded by the sync timeout.
func (m *Manager) syncShared(ctx context.Context, identity string, epoch uint64) bool {
	key := fmt.Sprintf("%s#%d", identity, epoch)

	ch := m.group.DoChan(key, func() (any, error) {
		syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.syncTimeout)
		defer cancel()

		return m.runSync(syncCtx, identity, epoch), nil
	})

	select {
	case res := <-ch:
		ok, _ := res.Val.(bool)
		return ok
	case <-ctx.Done():
		return m.Snapshot().HasToken()
	}
}

// runSync performs verify + sync and applies the result unless the session
// changed in the meantime.
func (m *Manager) runSync(ctx context.Context, identity string, epoch uint64) bool {
	m.mu.Lock()
	var ps ProviderState
	if m.provState != nil {
		ps = *m.provState
	}
	m.mu.Unlock()

	if ps.User == nil || ps.User.ID != identity {
		m.finish(ctx, epoch, nil)
		return m.Snapshot().HasToken()
	}

	start := time.Now()
	SyncAttemptsTotal.Inc()

	user := ps.User
	local := Session{
		IdentityID:  identity,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}

	preferred, ok := wallet.SelectPreferred(user.Wallets, m.policy)
	if ok {
		local.WalletAddress = preferred.Address
		local.WalletType = wallet.Classify(preferred)
	}

	if m.provider != nil {
		accessToken, err := m.provider.AccessToken(ctx)
		if err != nil {
			m.logger.Warn("provider-access-token-failed", zap.Error(err))
		}

		if err == nil && accessToken != "" {
			verified, verifyErr := m.backend.Verify(ctx, accessToken)
			switch {
			case verifyErr == nil:
				m.applyPrimaryWallet(&local, verified, user.Wallets)
			case api.IsNetworkError(verifyErr):
				SyncDurationSeconds.Observe(time.Since(start).Seconds())
				return m.fail(ctx, epoch, local, FailureNetwork, verifyErr)
			default:
				m.logger.Warn("session-verify-failed",
					zap.String("identity-id", identity),
					zap.Error(verifyErr))
			}
		}
	}

	resp, err := m.backend.SyncUser(ctx, types.SyncRequest{
		PrivyID:       identity,
		WalletAddress: local.WalletAddress,
		Email:         local.Email,
		DisplayName:   local.DisplayName,
	})
	SyncDurationSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		kind := FailureBackend
		if api.IsNetworkError(err) {
			kind = FailureNetwork
		}
		return m.fail(ctx, epoch, local, kind, err)
	}

	synced := local
	synced.State = StateSynced
	synced.BackendUserID = resp.User.ID
	synced.Token = resp.Token
	synced.AvatarURL = resp.User.PreferredAvatar()
	if name := resp.User.PreferredName(); name != "" {
		synced.DisplayName = name
	}
	if resp.User.Email != "" {
		synced.Email = resp.User.Email
	}
	if synced.WalletAddress == "" {
		synced.WalletAddress = resp.User.WalletAddress
	}

	if !m.finish(ctx, epoch, &synced) {
		return false
	}

	m.logger.Info("session-synced",
		zap.String("identity-id", identity),
		zap.String("user-id", synced.BackendUserID),
		zap.String("wallet-type", string(synced.WalletType)))

	return true
}

// applyPrimaryWallet prefers the backend-declared primary wallet over the
// provider's preferred one.
func (m *Manager) applyPrimaryWallet(local *Session, verified *types.VerifyResponse, provided []wallet.Descriptor) {
	primary, ok := verified.PrimaryWallet()
	if !ok {
		return
	}

	local.WalletAddress = primary.Address
	local.WalletType = wallet.TypeNone

	for _, d := range provided {
		if strings.EqualFold(d.Address, primary.Address) {
			local.WalletType = wallet.Classify(d)
			return
		}
	}

	if t, known := wallet.ParseType(primary.WalletType); known {
		local.WalletType = t
	}
}

// fail records a failed sync. The previous token, if any, is kept.
func (m *Manager) fail(ctx context.Context, epoch uint64, local Session, kind FailureKind, cause error) bool {
	SyncFailuresTotal.WithLabelValues(string(kind)).Inc()

	failed := local
	failed.State = StateSyncFailed
	failed.FailureKind = kind
	failed.LastError = api.Message(cause)

	if m.finish(ctx, epoch, &failed) {
		m.logger.Warn("session-sync-failed",
			zap.String("identity-id", local.IdentityID),
			zap.String("kind", string(kind)),
			zap.Error(cause))
	}

	return m.Snapshot().HasToken()
}

// finish applies result if epoch is still current. A nil result only clears
// the in-flight flag. It reports whether the result was applied.
func (m *Manager) finish(ctx context.Context, epoch uint64, result *Session) bool {
	m.mu.Lock()

	if epoch != m.epoch {
		m.mu.Unlock()
		StaleResultsTotal.Inc()
		m.logger.Debug("session-sync-result-discarded", zap.Uint64("epoch", epoch))
		return false
	}

	m.syncing = false

	if result == nil {
		m.mu.Unlock()
		return false
	}

	m.hasSynced = true

	next := *result
	next.UpdatedAt = time.Now()
	if next.Token == "" {
		next.Token = m.session.Token
	}
	m.session = next
	snapshot := m.session
	m.mu.Unlock()

	setStateGauge(snapshot.State)

	if snapshot.State == StateSynced {
		m.persist(ctx, snapshot)
	}

	return true
}

// resetLocked returns the session to unauthenticated and invalidates any
// in-flight result. The caller must hold m.mu.
func (m *Manager) resetLocked() {
	m.session = Session{State: StateUnauthenticated, UpdatedAt: time.Now()}
	m.hasSynced = false
	m.syncing = false
	m.epoch++
	setStateGauge(StateUnauthenticated)
}

func (m *Manager) persist(ctx context.Context, s Session) {
	err := m.store.Set(context.WithoutCancel(ctx), s)
	if err != nil {
		m.logger.Warn("session-persist-failed", zap.Error(err))
	}
}

func (m *Manager) clearStore(ctx context.Context) {
	err := m.store.Clear(context.WithoutCancel(ctx))
	if err != nil {
		m.logger.Warn("session-store-clear-failed", zap.Error(err))
	}
}

func setStateGauge(current State) {
	for _, s := range []State{StateUnauthenticated, StateUnsynced, StateSynced, StateSyncFailed, StateDevUser} {
		value := 0.0
		if s == current {
			value = 1
		}
		StateGauge.WithLabelValues(string(s)).Set(value)
	}
}
