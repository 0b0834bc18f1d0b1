package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	err := a.Start()
	if err != nil {
		return err
	}

	return a.waitForShutdown()
}

// Start starts every component and marks the application ready.
func (a *App) Start() error {
	a.logger.Info("application-starting",
		zap.String("api-url", a.cfg.APIBaseURL),
		zap.String("journal-mode", a.cfg.JournalMode),
		zap.String("session-store", a.cfg.SessionStore),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("ws-url", a.cfg.WSURL))

	return nil
}

func (a *App) startComponents() error {
	err := a.sessionMgr.Restore(a.ctx)
	if err != nil {
		// A broken store only costs the user a fresh login.
		a.logger.Warn("session-restore-failed", zap.Error(err))
	}

	a.wg.Add(1)
	go a.runHTTPServer()

	err = a.wsManager.Start()
	if err != nil {
		return fmt.Errorf("start websocket manager: %w", err)
	}

	err = a.priceFeed.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start price feed: %w", err)
	}

	a.wg.Add(1)
	go a.logPriceUpdates()

	a.watchMarkets()

	if a.discovery != nil {
		a.wg.Add(1)
		go a.runDiscovery()
	}

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
