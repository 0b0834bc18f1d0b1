// Package discovery keeps the price feed subscribed to the trending markets.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/marketview/pkg/types"
)

const defaultPollInterval = 2 * time.Minute

// Source lists the trending markets. The market catalog implements it.
type Source interface {
	Trending(ctx context.Context) ([]types.Market, error)
}

// Watcher subscribes to live prices. The price feed implements it.
type Watcher interface {
	Watch(marketIDs ...string) error
	Unwatch(marketIDs ...string) error
}

// Config holds discovery service configuration.
type Config struct {
	Source       Source
	Watcher      Watcher
	PollInterval time.Duration
	MaxMarkets   int // 0 means no limit
	Logger       *zap.Logger
}

// Service polls the trending list and watches markets as they enter it and
// unwatches them as they leave.
type Service struct {
	source       Source
	watcher      Watcher
	pollInterval time.Duration
	maxMarkets   int
	logger       *zap.Logger
	watched      map[string]time.Time // Market ID -> when it was first watched
	mu           sync.RWMutex
}

// New creates a new discovery service.
func New(cfg *Config) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Source == nil {
		return nil, errors.New("source cannot be nil")
	}

	if cfg.Watcher == nil {
		return nil, errors.New("watcher cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &Service{
		source:       cfg.Source,
		watcher:      cfg.Watcher,
		pollInterval: interval,
		maxMarkets:   cfg.MaxMarkets,
		logger:       cfg.Logger,
		watched:      make(map[string]time.Time),
	}, nil
}

// Run polls until ctx is done. The first poll happens immediately.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("discovery-service-starting",
		zap.Duration("poll-interval", s.pollInterval),
		zap.Int("max-markets", s.maxMarkets))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	err := s.Poll(ctx)
	if err != nil {
		s.logger.Error("initial-poll-failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("discovery-service-stopping")
			return ctx.Err()
		case <-ticker.C:
			err := s.Poll(ctx)
			if err != nil {
				s.logger.Error("poll-failed", zap.Error(err))
			}
		}
	}
}

// Poll fetches the trending list once and reconciles the watched set.
func (s *Service) Poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		PollDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	markets, err := s.source.Trending(ctx)
	if err != nil {
		PollErrorsTotal.Inc()
		return fmt.Errorf("fetch trending markets: %w", err)
	}

	current := s.selectMarkets(markets)
	added, removed := s.diff(current)

	if len(added) > 0 {
		err = s.watcher.Watch(added...)
		if err != nil {
			PollErrorsTotal.Inc()
			return fmt.Errorf("watch markets: %w", err)
		}

		now := time.Now()
		s.mu.Lock()
		for _, id := range added {
			s.watched[id] = now
		}
		s.mu.Unlock()

		NewMarketsTotal.Add(float64(len(added)))
		s.logger.Info("trending-markets-added", zap.Strings("market-ids", added))
	}

	if len(removed) > 0 {
		s.mu.Lock()
		for _, id := range removed {
			delete(s.watched, id)
		}
		s.mu.Unlock()

		err = s.watcher.Unwatch(removed...)
		if err != nil {
			s.logger.Warn("unwatch-markets-failed",
				zap.Strings("market-ids", removed),
				zap.Error(err))
		}

		DroppedMarketsTotal.Add(float64(len(removed)))
		s.logger.Info("trending-markets-dropped", zap.Strings("market-ids", removed))
	}

	s.mu.RLock()
	MarketsWatched.Set(float64(len(s.watched)))
	s.mu.RUnlock()

	s.logger.Debug("poll-complete",
		zap.Int("trending", len(markets)),
		zap.Int("added", len(added)),
		zap.Int("removed", len(removed)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// selectMarkets keeps binary markets in list order, up to maxMarkets.
// Multi-outcome markets are skipped since they cannot be traded.
func (s *Service) selectMarkets(markets []types.Market) []string {
	ids := make([]string, 0, len(markets))
	seen := make(map[string]bool, len(markets))

	for i := range markets {
		market := &markets[i]

		if market.ID == "" || seen[market.ID] {
			continue
		}

		if market.IsMultiOutcome() {
			s.logger.Debug("skipping-multi-outcome-market",
				zap.String("market-id", market.ID))
			continue
		}

		seen[market.ID] = true
		ids = append(ids, market.ID)

		if s.maxMarkets > 0 && len(ids) == s.maxMarkets {
			break
		}
	}

	return ids
}

// diff returns the markets to watch and to unwatch, each sorted.
func (s *Service) diff(current []string) (added, removed []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keep := make(map[string]bool, len(current))
	for _, id := range current {
		keep[id] = true
		if _, exists := s.watched[id]; !exists {
			added = append(added, id)
		}
	}

	for id := range s.watched {
		if !keep[id] {
			removed = append(removed, id)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)

	return added, removed
}

// Watched returns the IDs of the markets currently watched, sorted.
func (s *Service) Watched() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.watched))
	for id := range s.watched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}
