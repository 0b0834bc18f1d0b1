// Package authprovider relays the external wallet-auth provider's state
// between the UI and the session manager. The provider SDK lives in the UI;
// the daemon only sees what the UI pushes and asks the UI to log out.
package authprovider

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Relay implements session.Provider on top of state pushed by the UI.
type Relay struct {
	mu          sync.Mutex
	accessToken string
	logoutEpoch uint64
	waiters     []chan struct{}
	logger      *zap.Logger
}

// NewRelay creates an empty relay.
func NewRelay(logger *zap.Logger) *Relay {
	return &Relay{logger: logger}
}

// SetAccessToken records the provider access token last pushed by the UI.
func (r *Relay) SetAccessToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accessToken = token
}

// AccessToken returns the last pushed access token.
func (r *Relay) AccessToken(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.accessToken, nil
}

// Logout drops the access token and bumps the logout epoch. The UI watches
// the epoch and performs the actual provider logout.
func (r *Relay) Logout(_ context.Context) error {
	r.mu.Lock()
	r.accessToken = ""
	r.logoutEpoch++
	epoch := r.logoutEpoch
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}

	LogoutsRequestedTotal.Inc()
	r.logger.Info("provider-logout-requested", zap.Uint64("logout-epoch", epoch))

	return nil
}

// LogoutEpoch returns the number of logouts requested so far.
func (r *Relay) LogoutEpoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.logoutEpoch
}

// WaitLogout blocks until the logout epoch moves past since or ctx is done,
// and returns the current epoch. It backs the UI's long-poll.
func (r *Relay) WaitLogout(ctx context.Context, since uint64) uint64 {
	r.mu.Lock()
	if r.logoutEpoch > since {
		epoch := r.logoutEpoch
		r.mu.Unlock()
		return epoch
	}
	ch := make(chan struct{})
	r.waiters = append(r.waiters, ch)
	r.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
	}

	return r.LogoutEpoch()
}
