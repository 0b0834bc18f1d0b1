// Package app wires the daemon's components together and runs them.
package app

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/mselser95/marketview/internal/api"
	"github.com/mselser95/marketview/internal/authprovider"
	"github.com/mselser95/marketview/internal/discovery"
	"github.com/mselser95/marketview/internal/gate"
	"github.com/mselser95/marketview/internal/markets"
	"github.com/mselser95/marketview/internal/pricefeed"
	"github.com/mselser95/marketview/internal/session"
	"github.com/mselser95/marketview/internal/storage"
	"github.com/mselser95/marketview/pkg/cache"
	"github.com/mselser95/marketview/pkg/config"
	"github.com/mselser95/marketview/pkg/healthprobe"
	"github.com/mselser95/marketview/pkg/httpserver"
	"github.com/mselser95/marketview/pkg/websocket"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	opts          *Options
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	apiClient     *api.Client
	relay         *authprovider.Relay
	sessionStore  session.Store
	sessionMgr    *session.Manager
	marketCache   *cache.RistrettoCache
	catalog       *markets.Catalog
	wsManager     *websocket.Manager
	priceFeed     *pricefeed.Feed
	discovery     *discovery.Service // Nil unless trending markets are watched
	journal       storage.Journal
	submitter     *gate.Submitter
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	WatchMarkets  []string  // Markets to subscribe to at startup
	WatchTrending bool      // Keep the trending markets subscribed
	JournalOut    io.Writer // Console journal output; stdout when nil
}
