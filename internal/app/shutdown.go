package app

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// The socket closes its message channel, which ends the price feed loop.
	err = a.wsManager.Close()
	if err != nil {
		a.logger.Error("websocket-manager-close-error", zap.Error(err))
	}

	err = a.priceFeed.Close()
	if err != nil {
		a.logger.Error("price-feed-close-error", zap.Error(err))
	}

	err = a.journal.Close()
	if err != nil {
		a.logger.Error("journal-close-error", zap.Error(err))
	}

	if closer, ok := a.sessionStore.(io.Closer); ok {
		err = closer.Close()
		if err != nil {
			a.logger.Error("session-store-close-error", zap.Error(err))
		}
	}

	a.marketCache.Close()

	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}
