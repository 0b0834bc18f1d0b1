package app

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// watchMarkets subscribes the price feed to the configured markets.
func (a *App) watchMarkets() {
	ids := a.opts.WatchMarkets
	if len(ids) == 0 {
		return
	}

	err := a.priceFeed.Watch(ids...)
	if err != nil {
		a.logger.Error("watch-markets-failed",
			zap.Int("count", len(ids)),
			zap.Error(err))
		return
	}

	a.logger.Info("watching-markets", zap.Int("count", len(ids)))
}

// runDiscovery keeps the trending markets subscribed until shutdown.
func (a *App) runDiscovery() {
	defer a.wg.Done()

	err := a.discovery.Run(a.ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("discovery-error", zap.Error(err))
	}
}

// logPriceUpdates drains the feed's update channel.
func (a *App) logPriceUpdates() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case update, ok := <-a.priceFeed.Updates():
			if !ok {
				return
			}

			a.logger.Debug("live-price",
				zap.String("market-id", update.MarketID),
				zap.Float64("yes-price", update.YesPrice),
				zap.Float64("no-price", update.NoPrice))
		}
	}
}
