// Package session owns the authenticated session: it reacts to auth
// provider state, syncs the user with the backend and holds the bearer
// token used for trading.
package session

import (
	"context"
	"time"

	"github.com/mselser95/marketview/internal/wallet"
	"github.com/mselser95/marketview/pkg/types"
)

// State is the session state discriminant.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateUnsynced        State = "unsynced"
	StateSynced          State = "synced"
	StateSyncFailed      State = "sync_failed"
	StateDevUser         State = "dev_user"
)

// FailureKind classifies a failed sync.
type FailureKind string

const (
	FailureNetwork FailureKind = "network"
	FailureBackend FailureKind = "backend"
)

// Session is a point-in-time copy of the session.
type Session struct {
	State         State       `json:"state"`
	FailureKind   FailureKind `json:"failureKind,omitempty"`
	LastError     string      `json:"lastError,omitempty"`
	IdentityID    string      `json:"identityId,omitempty"`
	BackendUserID string      `json:"backendUserId,omitempty"`
	Email         string      `json:"email,omitempty"`
	DisplayName   string      `json:"displayName,omitempty"`
	AvatarURL     string      `json:"avatarUrl,omitempty"`
	WalletAddress string      `json:"walletAddress,omitempty"`
	WalletType    wallet.Type `json:"walletType,omitempty"`
	Token         string      `json:"-"`
	IsDevUser     bool        `json:"isDevUser"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// HasToken reports whether a bearer token is held.
func (s Session) HasToken() bool {
	return s.Token != ""
}

// Connected reports whether a user is present, either through the provider
// or as a dev user.
func (s Session) Connected() bool {
	return s.State != StateUnauthenticated
}

// ProviderUser is the identity reported by the auth provider.
type ProviderUser struct {
	ID          string              `json:"id"`
	Email       string              `json:"email,omitempty"`
	DisplayName string              `json:"displayName,omitempty"`
	Wallets     []wallet.Descriptor `json:"wallets,omitempty"`
}

// ProviderState is one observation of the auth provider.
type ProviderState struct {
	Ready         bool          `json:"ready"`
	Authenticated bool          `json:"authenticated"`
	User          *ProviderUser `json:"user,omitempty"`
}

// Provider is the part of the auth provider the manager calls into.
type Provider interface {
	// AccessToken returns the provider's access token, or "" when none is available.
	AccessToken(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
}

// Backend is the subset of the backend API used for session management.
type Backend interface {
	Verify(ctx context.Context, accessToken string) (*types.VerifyResponse, error)
	SyncUser(ctx context.Context, req types.SyncRequest) (*types.SyncResponse, error)
	CreateDemoUsers(ctx context.Context, count int) ([]types.DemoUser, error)
	DemoToken(ctx context.Context, userID string) (string, error)
}

// Store persists the session across restarts.
type Store interface {
	// Get returns the stored session, or nil when nothing is stored.
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}
