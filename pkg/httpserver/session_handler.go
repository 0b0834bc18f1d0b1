package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/marketview/internal/session"
)

// SessionResponse is the session as exposed to the UI. The token never leaves the daemon.
type SessionResponse struct {
	session.Session
	HasToken    bool   `json:"hasToken"`
	Connected   bool   `json:"connected"`
	LogoutEpoch uint64 `json:"logoutEpoch"`
}

// logoutPollTimeout stays below the server's write timeout.
const logoutPollTimeout = 25 * time.Second

// LogoutResponse answers a logout long-poll.
type LogoutResponse struct {
	LogoutEpoch uint64 `json:"logoutEpoch"`
}

type providerRequest struct {
	Ready         bool                  `json:"ready"`
	Authenticated bool                  `json:"authenticated"`
	AccessToken   string                `json:"accessToken"`
	User          *session.ProviderUser `json:"user" validate:"required_if=Authenticated true"`
}

func (h *handler) sessionResponse() SessionResponse {
	snap := h.session.Snapshot()

	resp := SessionResponse{
		Session:   snap,
		HasToken:  snap.HasToken(),
		Connected: snap.Connected(),
	}

	if h.provider != nil {
		resp.LogoutEpoch = h.provider.LogoutEpoch()
	}

	return resp
}

// handleSession handles GET /api/session.
func (h *handler) handleSession(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sessionResponse())
}

// handleProvider handles POST /api/session/provider: one provider observation
// pushed by the UI.
func (h *handler) handleProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Authenticated && req.User.ID == "" {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: []string{"User.ID"}})
		return
	}

	if h.provider != nil {
		token := ""
		if req.Authenticated {
			token = req.AccessToken
		}
		h.provider.SetAccessToken(token)
	}

	h.session.Observe(r.Context(), session.ProviderState{
		Ready:         req.Ready,
		Authenticated: req.Authenticated,
		User:          req.User,
	})

	h.writeJSON(w, http.StatusOK, h.sessionResponse())
}

// handleDevLogin handles POST /api/session/dev-login.
func (h *handler) handleDevLogin(w http.ResponseWriter, r *http.Request) {
	err := h.session.DevLogin(r.Context())
	if errors.Is(err, session.ErrDevLoginDisabled) {
		h.writeError(w, "dev login is disabled", http.StatusForbidden)
		return
	}
	if err != nil {
		h.logger.Warn("dev-login-failed", zap.Error(err))
		h.writeBackendError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.sessionResponse())
}

// handleDisconnect handles POST /api/session/disconnect.
func (h *handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	h.session.Disconnect(r.Context())
	h.writeJSON(w, http.StatusOK, h.sessionResponse())
}

// handleRetrySync handles POST /api/session/retry-sync.
func (h *handler) handleRetrySync(w http.ResponseWriter, r *http.Request) {
	h.session.RetrySync(r.Context())
	h.writeJSON(w, http.StatusOK, h.sessionResponse())
}

// handleLogoutWait handles GET /api/session/logout?since=N. It returns as
// soon as the logout epoch passes N, or with the unchanged epoch when the
// poll times out, so the UI can log the provider out and poll again.
func (h *handler) handleLogoutWait(w http.ResponseWriter, r *http.Request) {
	var since uint64

	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.writeError(w, "since must be a non-negative integer", http.StatusBadRequest)
			return
		}
		since = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), logoutPollTimeout)
	defer cancel()

	epoch := h.provider.WaitLogout(ctx, since)

	h.writeJSON(w, http.StatusOK, LogoutResponse{LogoutEpoch: epoch})
}
