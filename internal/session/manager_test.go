package session

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/marketview/internal/wallet"
	"github.com/mselser95/marketview/pkg/types"
)

type fakeBackend struct {
	verifyCalls atomic.Int32
	syncCalls   atomic.Int32
	demoCalls   atomic.Int32
	tokenCalls  atomic.Int32

	mu         sync.Mutex
	verifyResp *types.VerifyResponse
	verifyErr  error
	syncErr    error
	demoErr    error
	lastSync   types.SyncRequest

	syncStarted chan struct{} // Receives once per SyncUser call when set
	syncGate    chan struct{} // SyncUser blocks until closed when set
}

func (b *fakeBackend) Verify(_ context.Context, _ string) (*types.VerifyResponse, error) {
	b.verifyCalls.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.verifyErr != nil {
		return nil, b.verifyErr
	}
	if b.verifyResp != nil {
		return b.verifyResp, nil
	}
	return &types.VerifyResponse{}, nil
}

func (b *fakeBackend) SyncUser(ctx context.Context, req types.SyncRequest) (*types.SyncResponse, error) {
	b.syncCalls.Add(1)

	if b.syncStarted != nil {
		b.syncStarted <- struct{}{}
	}
	if b.syncGate != nil {
		select {
		case <-b.syncGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastSync = req
	if b.syncErr != nil {
		return nil, b.syncErr
	}

	return &types.SyncResponse{
		User:  types.APIUser{ID: "backend-" + req.PrivyID, DisplayName: "Backend Name", AvatarURL: "https://img/a.png"},
		Token: "token-" + req.PrivyID,
	}, nil
}

func (b *fakeBackend) CreateDemoUsers(_ context.Context, count int) ([]types.DemoUser, error) {
	b.demoCalls.Add(1)

	b.mu.Lock()
	demoErr := b.demoErr
	b.mu.Unlock()
	if demoErr != nil {
		return nil, demoErr
	}

	users := make([]types.DemoUser, 0, count)
	for range count {
		users = append(users, types.DemoUser{ID: "demo-1", DisplayName: "Demo Trader"})
	}
	return users, nil
}

func (b *fakeBackend) DemoToken(_ context.Context, userID string) (string, error) {
	b.tokenCalls.Add(1)
	return "demo-token-" + userID, nil
}

func (b *fakeBackend) setSyncErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.syncErr = err
}

func (b *fakeBackend) lastSyncRequest() types.SyncRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSync
}

type fakeProvider struct {
	accessToken string
	logouts     atomic.Int32
	logoutErr   error
}

func (p *fakeProvider) AccessToken(_ context.Context) (string, error) {
	return p.accessToken, nil
}

func (p *fakeProvider) Logout(_ context.Context) error {
	p.logouts.Add(1)
	return p.logoutErr
}

func networkErr() error {
	return &url.Error{Op: "Post", URL: "http://backend/users/sync", Err: errors.New("connection refused")}
}

func backendErr(message string) error {
	return &types.APIError{Status: 500, Message: message}
}

func authenticated(id string, wallets ...wallet.Descriptor) ProviderState {
	return ProviderState{
		Ready:         true,
		Authenticated: true,
		User: &ProviderUser{
			ID:          id,
			Email:       id + "@example.com",
			DisplayName: "Local " + id,
			Wallets:     wallets,
		},
	}
}

func newTestManager(t *testing.T, backend *fakeBackend, provider Provider, store Store) *Manager {
	t.Helper()

	if store == nil {
		store = NewMemoryStore()
	}

	m, err := New(&Config{
		Backend:         backend,
		Provider:        provider,
		Store:           store,
		Policy:          wallet.PhantomFirst(),
		SyncTimeout:     2 * time.Second,
		DevLoginEnabled: true,
		Logger:          zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	return m
}

func TestNew_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil-config", cfg: nil},
		{name: "nil-backend", cfg: &Config{Store: NewMemoryStore(), Logger: logger}},
		{name: "nil-store", cfg: &Config{Backend: &fakeBackend{}, Logger: logger}},
		{name: "nil-logger", cfg: &Config{Backend: &fakeBackend{}, Store: NewMemoryStore()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestObserve_SyncsOnce(t *testing.T) {
	backend := &fakeBackend{}
	store := NewMemoryStore()
	m := newTestManager(t, backend, nil, store)

	state := authenticated("did:privy:alice", wallet.Descriptor{Address: "0xEmbedded", ClientType: "privy"})

	m.Observe(context.Background(), state)
	m.Observe(context.Background(), state)
	m.Observe(context.Background(), state)

	assert.Equal(t, int32(1), backend.syncCalls.Load())

	s := m.Snapshot()
	assert.Equal(t, StateSynced, s.State)
	assert.Equal(t, "token-did:privy:alice", s.Token)
	assert.Equal(t, "backend-did:privy:alice", s.BackendUserID)
	assert.Equal(t, "Backend Name", s.DisplayName)
	assert.Equal(t, "0xEmbedded", s.WalletAddress)
	assert.Equal(t, wallet.TypePrivyEmbedded, s.WalletType)
	assert.Equal(t, s.Token, m.Token())

	stored, err := store.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, s.Token, stored.Token)
}

func TestObserve_ConcurrentObserversShareOneSync(t *testing.T) {
	backend := &fakeBackend{syncGate: make(chan struct{})}
	m := newTestManager(t, backend, nil, nil)

	state := authenticated("did:privy:bob")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Observe(context.Background(), state)
		}()
	}

	// Let the single sync proceed once every observer has had a chance to run.
	time.Sleep(50 * time.Millisecond)
	close(backend.syncGate)
	wg.Wait()

	assert.Equal(t, int32(1), backend.syncCalls.Load())
	assert.Equal(t, StateSynced, m.Snapshot().State)
}

func TestObserve_NotReadyIgnored(t *testing.T) {
	backend := &fakeBackend{}
	m := newTestManager(t, backend, nil, nil)

	state := authenticated("did:privy:alice")
	state.Ready = false

	m.Observe(context.Background(), state)

	assert.Equal(t, int32(0), backend.syncCalls.Load())
	assert.Equal(t, StateUnauthenticated, m.Snapshot().State)
}

func TestObserve_NetworkFailure(t *testing.T) {
	backend := &fakeBackend{}
	backend.setSyncErr(networkErr())
	m := newTestManager(t, backend, nil, nil)

	state := authenticated("did:privy:carol",
		wallet.Descriptor{Address: "0xMeta", ClientType: "metamask"},
		wallet.Descriptor{Address: "PhantomAddr", ClientType: "phantom"},
	)

	m.Observe(context.Background(), state)

	s := m.Snapshot()
	assert.Equal(t, StateSyncFailed, s.State)
	assert.Equal(t, FailureNetwork, s.FailureKind)
	assert.False(t, s.HasToken())
	assert.Equal(t, "did:privy:carol@example.com", s.Email)
	assert.Equal(t, "Local did:privy:carol", s.DisplayName)
	assert.Equal(t, "PhantomAddr", s.WalletAddress)
	assert.Equal(t, wallet.TypePhantom, s.WalletType)

	// hasSynced is set, so further observations do not retry.
	m.Observe(context.Background(), state)
	assert.Equal(t, int32(1), backend.syncCalls.Load())

	backend.setSyncErr(nil)

	ok := m.RetrySync(context.Background())
	assert.True(t, ok)
	assert.Equal(t, int32(2), backend.syncCalls.Load())
	assert.Equal(t, StateSynced, m.Snapshot().State)
	assert.Empty(t, m.Snapshot().FailureKind)
}

func TestObserve_BackendFailure(t *testing.T) {
	backend := &fakeBackend{}
	backend.setSyncErr(backendErr("Invalid wallet address"))
	m := newTestManager(t, backend, nil, nil)

	m.Observe(context.Background(), authenticated("did:privy:dave"))

	s := m.Snapshot()
	assert.Equal(t, StateSyncFailed, s.State)
	assert.Equal(t, FailureBackend, s.FailureKind)
	assert.Equal(t, "Invalid wallet address", s.LastError)
	assert.False(t, s.HasToken())
	assert.True(t, s.Connected())
}

func TestObserve_PrimaryWalletFromVerify(t *testing.T) {
	backend := &fakeBackend{
		verifyResp: &types.VerifyResponse{
			Wallets: []types.BackendWallet{
				{Address: "0xphantomish", WalletType: "phantom"},
				{Address: "0xMETA", WalletType: "metamask", IsPrimary: true},
			},
		},
	}
	provider := &fakeProvider{accessToken: "privy-access"}
	m := newTestManager(t, backend, provider, nil)

	m.Observe(context.Background(), authenticated("did:privy:erin",
		wallet.Descriptor{Address: "PhantomAddr", ClientType: "phantom"},
		wallet.Descriptor{Address: "0xmeta", ClientType: "metamask"},
	))

	assert.Equal(t, int32(1), backend.verifyCalls.Load())
	assert.Equal(t, "0xMETA", backend.lastSyncRequest().WalletAddress)

	s := m.Snapshot()
	assert.Equal(t, "0xMETA", s.WalletAddress)
	assert.Equal(t, wallet.TypeMetaMask, s.WalletType)
}

func TestObserve_VerifyBackendErrorFallsBackToPreferred(t *testing.T) {
	backend := &fakeBackend{verifyErr: backendErr("token expired")}
	provider := &fakeProvider{accessToken: "privy-access"}
	m := newTestManager(t, backend, provider, nil)

	m.Observe(context.Background(), authenticated("did:privy:fay",
		wallet.Descriptor{Address: "0xCoin", ClientType: "coinbase_wallet"},
		wallet.Descriptor{Address: "0xEmb", ClientType: "privy"},
	))

	assert.Equal(t, int32(1), backend.syncCalls.Load())
	assert.Equal(t, "0xCoin", backend.lastSyncRequest().WalletAddress)
	assert.Equal(t, StateSynced, m.Snapshot().State)
}

func TestObserve_VerifyNetworkErrorFailsSync(t *testing.T) {
	backend := &fakeBackend{verifyErr: networkErr()}
	provider := &fakeProvider{accessToken: "privy-access"}
	m := newTestManager(t, backend, provider, nil)

	m.Observe(context.Background(), authenticated("did:privy:gus"))

	assert.Equal(t, int32(0), backend.syncCalls.Load())
	assert.Equal(t, StateSyncFailed, m.Snapshot().State)
	assert.Equal(t, FailureNetwork, m.Snapshot().FailureKind)
}

func TestObserve_UnauthenticatedClearsLocally(t *testing.T) {
	backend := &fakeBackend{}
	provider := &fakeProvider{}
	store := NewMemoryStore()
	m := newTestManager(t, backend, provider, store)

	m.Observe(context.Background(), authenticated("did:privy:hal"))
	require.True(t, m.Snapshot().HasToken())

	m.Observe(context.Background(), ProviderState{Ready: true, Authenticated: false})

	s := m.Snapshot()
	assert.Equal(t, StateUnauthenticated, s.State)
	assert.False(t, s.HasToken())
	assert.Equal(t, int32(0), provider.logouts.Load())

	stored, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestObserve_IdentitySwitch(t *testing.T) {
	backend := &fakeBackend{}
	m := newTestManager(t, backend, nil, nil)

	m.Observe(context.Background(), authenticated("did:privy:ivy"))
	require.Equal(t, "token-did:privy:ivy", m.Token())

	m.Observe(context.Background(), authenticated("did:privy:jon"))

	assert.Equal(t, int32(2), backend.syncCalls.Load())
	assert.Equal(t, "token-did:privy:jon", m.Token())
	assert.Equal(t, "did:privy:jon", m.Snapshot().IdentityID)
}

func TestObserve_StaleResultDropped(t *testing.T) {
	backend := &fakeBackend{
		syncStarted: make(chan struct{}, 1),
		syncGate:    make(chan struct{}),
	}
	m := newTestManager(t, backend, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Observe(context.Background(), authenticated("did:privy:kim"))
	}()

	<-backend.syncStarted
	m.Disconnect(context.Background())
	close(backend.syncGate)
	<-done

	s := m.Snapshot()
	assert.Equal(t, StateUnauthenticated, s.State)
	assert.False(t, s.HasToken())
}

func TestRetrySync(t *testing.T) {
	t.Run("token-present", func(t *testing.T) {
		backend := &fakeBackend{}
		m := newTestManager(t, backend, nil, nil)
		m.Observe(context.Background(), authenticated("did:privy:lee"))

		assert.True(t, m.RetrySync(context.Background()))
		assert.Equal(t, int32(1), backend.syncCalls.Load())
	})

	t.Run("unauthenticated", func(t *testing.T) {
		backend := &fakeBackend{}
		m := newTestManager(t, backend, nil, nil)

		assert.False(t, m.RetrySync(context.Background()))
		assert.Equal(t, int32(0), backend.syncCalls.Load())
	})

	t.Run("still-failing", func(t *testing.T) {
		backend := &fakeBackend{}
		backend.setSyncErr(backendErr("down"))
		m := newTestManager(t, backend, nil, nil)
		m.Observe(context.Background(), authenticated("did:privy:max"))

		assert.False(t, m.RetrySync(context.Background()))
		assert.Equal(t, int32(2), backend.syncCalls.Load())
	})
}

func TestDevLogin(t *testing.T) {
	backend := &fakeBackend{}
	store := NewMemoryStore()
	m := newTestManager(t, backend, nil, store)

	require.NoError(t, m.DevLogin(context.Background()))

	s := m.Snapshot()
	assert.Equal(t, StateDevUser, s.State)
	assert.True(t, s.IsDevUser)
	assert.Equal(t, "demo-token-demo-1", s.Token)
	assert.Equal(t, "demo-1", s.BackendUserID)
	assert.Equal(t, wallet.DemoAddress("demo-1"), s.WalletAddress)

	// Already a dev user: nothing new is provisioned.
	require.NoError(t, m.DevLogin(context.Background()))
	assert.Equal(t, int32(1), backend.demoCalls.Load())

	// Provider observations are ignored while in dev mode.
	m.Observe(context.Background(), authenticated("did:privy:ned"))
	assert.Equal(t, int32(0), backend.syncCalls.Load())
	assert.Equal(t, StateDevUser, m.Snapshot().State)

	stored, err := store.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsDevUser)
}

func TestDevLogin_FromProviderSession(t *testing.T) {
	backend := &fakeBackend{}
	provider := &fakeProvider{}
	m := newTestManager(t, backend, provider, nil)

	m.Observe(context.Background(), authenticated("did:privy:oli"))
	require.Equal(t, StateSynced, m.Snapshot().State)

	require.NoError(t, m.DevLogin(context.Background()))

	assert.Equal(t, int32(1), provider.logouts.Load())
	assert.Equal(t, StateDevUser, m.Snapshot().State)
	assert.Empty(t, m.Snapshot().IdentityID)
}

func TestDevLogin_FailureKeepsProviderSession(t *testing.T) {
	backend := &fakeBackend{}
	provider := &fakeProvider{}
	store := NewMemoryStore()
	m := newTestManager(t, backend, provider, store)

	m.Observe(context.Background(), authenticated("did:privy:pia"))
	before := m.Snapshot()
	require.Equal(t, StateSynced, before.State)

	backend.mu.Lock()
	backend.demoErr = backendErr("demo users unavailable")
	backend.mu.Unlock()

	err := m.DevLogin(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create demo user")

	after := m.Snapshot()
	assert.Equal(t, StateSynced, after.State)
	assert.Equal(t, before.Token, after.Token)
	assert.Equal(t, "did:privy:pia", after.IdentityID)
	assert.False(t, after.IsDevUser)
	assert.Equal(t, int32(0), provider.logouts.Load())

	stored, err := store.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, before.Token, stored.Token)

	// The session keeps tracking the provider after the failed attempt.
	m.Observe(context.Background(), authenticated("did:privy:pia"))
	assert.Equal(t, int32(1), backend.syncCalls.Load())
}

func TestDevLogin_Disabled(t *testing.T) {
	m, err := New(&Config{
		Backend: &fakeBackend{},
		Store:   NewMemoryStore(),
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	err = m.DevLogin(context.Background())
	require.ErrorIs(t, err, ErrDevLoginDisabled)
}

func TestDisconnect(t *testing.T) {
	t.Run("dev-user-skips-provider-logout", func(t *testing.T) {
		provider := &fakeProvider{}
		m := newTestManager(t, &fakeBackend{}, provider, nil)
		require.NoError(t, m.DevLogin(context.Background()))

		m.Disconnect(context.Background())

		assert.Equal(t, int32(0), provider.logouts.Load())
		assert.Equal(t, StateUnauthenticated, m.Snapshot().State)
		assert.Empty(t, m.Token())
	})

	t.Run("provider-session-logs-out", func(t *testing.T) {
		provider := &fakeProvider{logoutErr: errors.New("provider unreachable")}
		backend := &fakeBackend{}
		m := newTestManager(t, backend, provider, nil)
		m.Observe(context.Background(), authenticated("did:privy:pam"))

		m.Disconnect(context.Background())

		assert.Equal(t, int32(1), provider.logouts.Load())
		assert.Equal(t, StateUnauthenticated, m.Snapshot().State)
		assert.Empty(t, m.Token())

		// A fresh observation syncs again.
		m.Observe(context.Background(), authenticated("did:privy:pam"))
		assert.Equal(t, int32(2), backend.syncCalls.Load())
	})
}

func TestRestore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), Session{
		State:         StateSynced,
		IdentityID:    "did:privy:quinn",
		BackendUserID: "u-quinn",
		Token:         "persisted-token",
	}))

	backend := &fakeBackend{}
	m := newTestManager(t, backend, nil, store)

	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, "persisted-token", m.Token())

	m.Observe(context.Background(), authenticated("did:privy:quinn"))
	assert.Equal(t, int32(0), backend.syncCalls.Load())
	assert.Equal(t, "persisted-token", m.Token())

	m.Observe(context.Background(), authenticated("did:privy:rae"))
	assert.Equal(t, int32(1), backend.syncCalls.Load())
	assert.Equal(t, "token-did:privy:rae", m.Token())
}

func TestRestore_Empty(t *testing.T) {
	m := newTestManager(t, &fakeBackend{}, nil, nil)

	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, StateUnauthenticated, m.Snapshot().State)
}
