package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mselser95/marketview/internal/api"
	"github.com/mselser95/marketview/internal/authprovider"
	"github.com/mselser95/marketview/internal/session"
	"github.com/mselser95/marketview/internal/storage"
	"github.com/mselser95/marketview/internal/wallet"
	"github.com/mselser95/marketview/pkg/config"
)

// cliEnv is what the one-shot commands share: config, logger, a backend
// client and the session restored from the configured store.
type cliEnv struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   *api.Client
	sessions *session.Manager
	store    session.Store
}

func newCLIEnv(ctx context.Context) (*cliEnv, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	client, err := api.New(&api.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		RateLimit: cfg.APIRateLimit,
		RateBurst: cfg.APIRateBurst,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	policy, err := wallet.ResolvePolicy(cfg.WalletPolicy, cfg.WalletPreferenceOrder, cfg.WalletPolicyFile)
	if err != nil {
		return nil, fmt.Errorf("resolve wallet policy: %w", err)
	}

	var store session.Store
	if cfg.SessionStore == "memory" {
		store = session.NewMemoryStore()
	} else {
		store, err = storage.NewSQLiteSessionStore(cfg.SessionDBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
	}

	sessions, err := session.New(&session.Config{
		Backend:         client,
		Provider:        authprovider.NewRelay(logger),
		Store:           store,
		Policy:          policy,
		SyncTimeout:     cfg.SessionSyncTimeout,
		DevLoginEnabled: cfg.DevLoginEnabled,
		Logger:          logger,
	})
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("create session manager: %w", err)
	}

	client.SetTokenSource(sessions)

	if err := sessions.Restore(ctx); err != nil {
		logger.Warn("session-restore-failed", zap.Error(err))
	}

	return &cliEnv{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		sessions: sessions,
		store:    store,
	}, nil
}

func (e *cliEnv) Close() {
	closeStore(e.store)
	_ = e.logger.Sync()
}

// requireSession fails when no backend token is held.
func (e *cliEnv) requireSession() error {
	if !e.sessions.Snapshot().HasToken() {
		return errors.New("no backend session, run \"marketview dev-login\" or connect through the daemon first")
	}
	return nil
}

func closeStore(store session.Store) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}
