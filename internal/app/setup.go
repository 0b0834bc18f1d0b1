package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mselser95/marketview/internal/api"
	"github.com/mselser95/marketview/internal/authprovider"
	"github.com/mselser95/marketview/internal/discovery"
	"github.com/mselser95/marketview/internal/gate"
	"github.com/mselser95/marketview/internal/markets"
	"github.com/mselser95/marketview/internal/pricefeed"
	"github.com/mselser95/marketview/internal/session"
	"github.com/mselser95/marketview/internal/storage"
	"github.com/mselser95/marketview/internal/wallet"
	"github.com/mselser95/marketview/pkg/cache"
	"github.com/mselser95/marketview/pkg/config"
	"github.com/mselser95/marketview/pkg/healthprobe"
	"github.com/mselser95/marketview/pkg/httpserver"
	"github.com/mselser95/marketview/pkg/websocket"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (app *App, err error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	var cleanup []func()
	defer func() {
		if err != nil {
			cancel()
			for _, fn := range cleanup {
				fn()
			}
		}
	}()

	healthChecker := healthprobe.New()

	apiClient, err := setupAPIClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup api client: %w", err)
	}

	policy, err := wallet.ResolvePolicy(cfg.WalletPolicy, cfg.WalletPreferenceOrder, cfg.WalletPolicyFile)
	if err != nil {
		return nil, fmt.Errorf("resolve wallet policy: %w", err)
	}

	store, err := setupSessionStore(cfg, logger, healthChecker)
	if err != nil {
		return nil, fmt.Errorf("setup session store: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		cleanup = append(cleanup, func() { _ = c.Close() })
	}

	relay := authprovider.NewRelay(logger)

	sessionMgr, err := session.New(&session.Config{
		Backend:         apiClient,
		Provider:        relay,
		Store:           store,
		Policy:          policy,
		SyncTimeout:     cfg.SessionSyncTimeout,
		DevLoginEnabled: cfg.DevLoginEnabled,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setup session manager: %w", err)
	}

	// Every backend call carries whatever token the session currently holds.
	apiClient.SetTokenSource(sessionMgr)

	marketCache, err := setupCache(logger)
	if err != nil {
		return nil, fmt.Errorf("setup cache: %w", err)
	}
	cleanup = append(cleanup, marketCache.Close)

	catalog, err := markets.NewCatalog(&markets.Config{
		Source:       apiClient,
		Cache:        marketCache,
		MarketTTL:    cfg.MarketCacheTTL,
		ListTTL:      cfg.MarketListCacheTTL,
		OrderbookTTL: cfg.OrderbookCacheTTL,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setup catalog: %w", err)
	}

	wsManager := setupWebSocketManager(cfg, logger)
	healthChecker.Register("websocket", func(context.Context) error {
		if !wsManager.Connected() {
			return errors.New("not connected")
		}
		return nil
	})

	priceFeed, err := pricefeed.New(&pricefeed.Config{
		Messages:   wsManager.MessageChan(),
		Subscriber: wsManager,
		Sink:       catalog,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setup price feed: %w", err)
	}

	var trending *discovery.Service
	if opts.WatchTrending {
		trending, err = discovery.New(&discovery.Config{
			Source:       catalog,
			Watcher:      priceFeed,
			PollInterval: cfg.TrendingPollInterval,
			MaxMarkets:   cfg.TrendingMaxMarkets,
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("setup discovery: %w", err)
		}
	}

	journal, err := setupJournal(ctx, cfg, logger, opts)
	if err != nil {
		return nil, fmt.Errorf("setup journal: %w", err)
	}
	cleanup = append(cleanup, func() { _ = journal.Close() })

	submitter, err := gate.New(&gate.Config{
		Session: sessionMgr,
		Trader:  apiClient,
		Journal: journal,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setup submitter: %w", err)
	}

	httpServer, err := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Session:       sessionMgr,
		Provider:      relay,
		Submitter:     submitter,
		Markets:       catalog,
		Prices:        priceFeed,
	})
	if err != nil {
		return nil, fmt.Errorf("setup http server: %w", err)
	}

	return &App{
		cfg:           cfg,
		opts:          opts,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		apiClient:     apiClient,
		relay:         relay,
		sessionStore:  store,
		sessionMgr:    sessionMgr,
		marketCache:   marketCache,
		catalog:       catalog,
		wsManager:     wsManager,
		priceFeed:     priceFeed,
		discovery:     trending,
		journal:       journal,
		submitter:     submitter,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupAPIClient(cfg *config.Config, logger *zap.Logger) (*api.Client, error) {
	return api.New(&api.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		RateLimit: cfg.APIRateLimit,
		RateBurst: cfg.APIRateBurst,
		Logger:    logger,
	})
}

func setupSessionStore(cfg *config.Config, logger *zap.Logger, hc *healthprobe.HealthChecker) (session.Store, error) {
	if cfg.SessionStore == "memory" {
		logger.Info("session-store-memory")
		return session.NewMemoryStore(), nil
	}

	store, err := storage.NewSQLiteSessionStore(cfg.SessionDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open sqlite session store: %w", err)
	}

	hc.Register("session-store", store.Ping)

	return store, nil
}

func setupCache(logger *zap.Logger) (*cache.RistrettoCache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		Name:        "markets",
		MaxItems:    2000, // markets, list pages and orderbooks
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupWebSocketManager(cfg *config.Config, logger *zap.Logger) *websocket.Manager {
	return websocket.New(websocket.Config{
		URL:                   cfg.WSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		Logger:                logger,
	})
}

func setupJournal(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts *Options) (storage.Journal, error) {
	switch cfg.JournalMode {
	case "postgres":
		pgJournal, err := storage.NewPostgresJournal(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres journal: %w", err)
		}
		return pgJournal, nil
	case "none":
		return storage.NopJournal{}, nil
	default:
		out := opts.JournalOut
		if out == nil {
			out = os.Stdout
		}
		return storage.NewConsoleJournal(out, logger), nil
	}
}
