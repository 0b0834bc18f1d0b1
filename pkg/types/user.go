package types

import "time"

// APIUser is a user record as returned by the backend.
type APIUser struct {
	ID            string    `json:"id"`
	PrivyID       string    `json:"privyId,omitempty"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	Email         string    `json:"email,omitempty"`
	DisplayName   string    `json:"displayName,omitempty"`
	Name          string    `json:"name,omitempty"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PreferredName returns the display name, falling back to the verify-style name field.
func (u *APIUser) PreferredName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

// PreferredAvatar returns the avatar URL, falling back to the verify-style avatar field.
func (u *APIUser) PreferredAvatar() string {
	if u.AvatarURL != "" {
		return u.AvatarURL
	}
	return u.Avatar
}

// BackendWallet is a wallet known to the backend for a user.
type BackendWallet struct {
	Address    string `json:"address"`
	WalletType string `json:"walletType"`
	ChainType  string `json:"chainType"`
	IsPrimary  bool   `json:"isPrimary"`
}

// VerifyRequest is the body of POST /auth/verify.
type VerifyRequest struct {
	AccessToken string `json:"accessToken"`
}

// VerifyResponse is the response of POST /auth/verify.
type VerifyResponse struct {
	User    APIUser         `json:"user"`
	Wallets []BackendWallet `json:"wallets"`
}

// PrimaryWallet returns the backend-declared primary wallet, if any.
func (v *VerifyResponse) PrimaryWallet() (BackendWallet, bool) {
	for _, w := range v.Wallets {
		if w.IsPrimary && w.Address != "" {
			return w, true
		}
	}
	return BackendWallet{}, false
}

// SyncRequest is the body of POST /users/sync.
type SyncRequest struct {
	PrivyID       string `json:"privyId,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
}

// SyncResponse is the response of POST /users/sync.
type SyncResponse struct {
	User  APIUser `json:"user"`
	Token string  `json:"token"`
}

// DemoUsersRequest is the body of POST /users/demo.
type DemoUsersRequest struct {
	Count int `json:"count"`
}

// DemoUser is a synthetic account provisioned for demo logins.
type DemoUser struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// TokenResponse is the response of POST /users/demo-token/:id.
type TokenResponse struct {
	Token string `json:"token"`
}
