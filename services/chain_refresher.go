package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"optionchain-board/interfaces"

	"github.com/sirupsen/logrus"
)

const subscriberBuffer = 4

// ChainRefresher re-samples a feed on a timer and rebuilds the chain rows
type ChainRefresher struct {
	feed     interfaces.MarketFeed
	interval time.Duration
	logger   *logrus.Logger

	// refreshMu serializes sample+build+publish so views are published in order
	refreshMu sync.Mutex

	mu          sync.RWMutex
	latest      *interfaces.ChainView
	subscribers map[chan *interfaces.ChainView]struct{}
	stopped     bool
}

// NewChainRefresher creates a refresher for the given feed
func NewChainRefresher(feed interfaces.MarketFeed, interval time.Duration, logger *logrus.Logger) *ChainRefresher {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &ChainRefresher{
		feed:        feed,
		interval:    interval,
		logger:      logger,
		subscribers: make(map[chan *interfaces.ChainView]struct{}),
	}
}

// Interval returns the refresh period
func (r *ChainRefresher) Interval() time.Duration {
	return r.interval
}

// Run refreshes immediately and then on every tick until ctx is cancelled
func (r *ChainRefresher) Run(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = false
	r.mu.Unlock()

	r.logger.WithField("interval", r.interval.String()).Info("Chain refresher started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.WithError(err).Warn("Chain refresh failed, keeping previous view")
		}

		select {
		case <-ctx.Done():
			r.logger.Info("Chain refresher stopped")
			r.closeSubscribers()
			return nil
		case <-ticker.C:
		}
	}
}

// Refresh samples the feed once, rebuilds the rows and publishes the view.
// It returns the view that is current afterwards; a sample older than the
// current view is not published.
func (r *ChainRefresher) Refresh(ctx context.Context) (*interfaces.ChainView, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	snap, err := r.feed.Sample(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sample feed: %w", err)
	}

	basis := MaxOpenInterest(snap.Puts, snap.Calls)
	rows, err := BuildChainRows(snap.Ladder, snap.Puts, snap.Calls, basis)
	if err != nil {
		return nil, fmt.Errorf("failed to build chain rows: %w", err)
	}

	view := &interfaces.ChainView{
		Underlying: snap.Underlying,
		Timestamp:  snap.Timestamp,
		Basis:      basis,
		Rows:       rows,
	}

	if current := r.publish(view); current != view {
		r.logger.WithFields(logrus.Fields{
			"sample_time":  view.Timestamp,
			"current_time": current.Timestamp,
		}).Debug("Discarding chain sample older than current view")
		return current, nil
	}

	r.logger.WithFields(logrus.Fields{
		"underlying": view.Underlying,
		"rows":       len(rows),
		"basis":      basis,
	}).Debug("Chain refreshed")

	return view, nil
}

// Latest returns the most recent view, or nil before the first refresh
func (r *ChainRefresher) Latest() *interfaces.ChainView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Subscribe registers for new views. The returned func unsubscribes and
// closes the channel; the channel is also closed when Run stops, and is
// returned already closed if Run has stopped.
func (r *ChainRefresher) Subscribe() (<-chan *interfaces.ChainView, func()) {
	ch := make(chan *interfaces.ChainView, subscriberBuffer)

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if _, ok := r.subscribers[ch]; ok {
				delete(r.subscribers, ch)
				close(ch)
			}
		})
	}
}

// publish stores view as latest unless it is older than the current one,
// and returns whichever view is current afterwards
func (r *ChainRefresher) publish(view *interfaces.ChainView) *interfaces.ChainView {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.latest != nil && view.Timestamp.Before(r.latest.Timestamp) {
		return r.latest
	}

	r.latest = view
	for ch := range r.subscribers {
		select {
		case ch <- view:
		default:
			r.logger.Debug("Subscriber is behind, dropping chain view")
		}
	}
	return view
}

func (r *ChainRefresher) closeSubscribers() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	for ch := range r.subscribers {
		delete(r.subscribers, ch)
		close(ch)
	}
}
