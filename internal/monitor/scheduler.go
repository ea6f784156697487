// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

// Package monitor implements the periodic price polling cycle: fetch the
// current listing state for every tracked product, append price history,
// and fire target-price alerts exactly once.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigia-app/vigia/internal/config"
	"github.com/vigia-app/vigia/internal/logging"
	"github.com/vigia-app/vigia/internal/marketplace"
	"github.com/vigia-app/vigia/internal/metrics"
	"github.com/vigia-app/vigia/internal/models"
	"github.com/vigia-app/vigia/internal/notify"
)

// Store is the persistence surface the monitor needs. *database.DB
// satisfies it.
type Store interface {
	ListAllProducts(ctx context.Context) ([]models.Product, error)
	UpdateListing(ctx context.Context, id int64, name string, price float64, stock int, thumbnail string) error
	AppendPriceSample(ctx context.Context, productID int64, price float64, stock int) (*models.PriceSample, error)
	ListUnfiredForProduct(ctx context.Context, productID int64) ([]models.Alert, error)
	TryMarkFired(ctx context.Context, alertID int64) (bool, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Scheduler runs the polling cycle on a fixed interval. Cycles never
// overlap: a tick that arrives while a cycle is still running is dropped
// and counted, not queued.
type Scheduler struct {
	cfg      config.MonitorConfig
	store    Store
	api      marketplace.API
	notifier notify.Notifier

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// inCycle guards against overlapping cycles; cycleWG lets Stop wait
	// for an in-flight cycle to drain.
	inCycle atomic.Bool
	cycleWG sync.WaitGroup
}

// NewScheduler creates a monitor scheduler. It does not start polling
// until Start is called.
func NewScheduler(cfg config.MonitorConfig, store Store, api marketplace.API, notifier notify.Notifier) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		api:      api,
		notifier: notifier,
	}
}

// Start launches the polling loop. Starting an already-started scheduler
// is an error.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("monitor scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run()

	logging.Info().
		Dur("interval", s.cfg.Interval).
		Int("concurrency", s.cfg.Concurrency).
		Msg("Monitor scheduler started")
	return nil
}

// Stop halts the loop and waits for any in-flight cycle to finish.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	s.cycleWG.Wait()
	logging.Info().Msg("Monitor scheduler stopped")
}

func (s *Scheduler) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick starts a cycle unless one is still running, in which case the
// tick is dropped.
func (s *Scheduler) tick() {
	if !s.inCycle.CompareAndSwap(false, true) {
		metrics.MonitorCyclesDropped.Inc()
		logging.Warn().Msg("Monitor tick dropped, previous cycle still running")
		return
	}

	s.cycleWG.Add(1)
	go func() {
		defer s.cycleWG.Done()
		defer s.inCycle.Store(false)
		s.RunCycle(context.Background())
	}()
}

// RunCycle executes one full polling cycle: snapshot the product set,
// poll each product through a bounded worker pool, and wait for all
// polls to finish. It is exported so a manual refresh endpoint or a test
// can drive a cycle directly.
func (s *Scheduler) RunCycle(ctx context.Context) {
	start := time.Now()

	// Products added after this point are picked up next cycle.
	products, err := s.store.ListAllProducts(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Monitor cycle aborted, could not list products")
		return
	}

	logging.Debug().Int("products", len(products)).Msg("Monitor cycle started")

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range products {
		p := products[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.pollProduct(ctx, p)
		}()
	}
	wg.Wait()

	metrics.MonitorCyclesTotal.Inc()
	metrics.MonitorCycleDuration.Observe(time.Since(start).Seconds())
	logging.Info().
		Int("products", len(products)).
		Dur("duration", time.Since(start)).
		Msg("Monitor cycle completed")
}

// pollProduct runs one refresh inside a cycle, recording the outcome.
func (s *Scheduler) pollProduct(ctx context.Context, p models.Product) {
	if err := s.RefreshProduct(ctx, p); err != nil {
		s.recordPollFailure(p, err)
		return
	}
	metrics.MonitorPollsTotal.WithLabelValues("success").Inc()
}

// RefreshProduct fetches the listing and, on success, applies the update
// strictly in order: listing fields, then history sample, then alert
// evaluation. Any fetch failure leaves stored data untouched and is
// returned to the caller. The manual refresh endpoint calls this
// directly.
func (s *Scheduler) RefreshProduct(ctx context.Context, p models.Product) error {
	pollCtx := ctx
	if s.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, s.cfg.PollTimeout)
		defer cancel()
	}

	item, err := s.api.GetItem(pollCtx, p.UserID, p.ExternalID)
	if err != nil {
		return err
	}

	if err := s.store.UpdateListing(pollCtx, p.ID, item.Title, item.Price, item.AvailableQuantity, item.Thumbnail); err != nil {
		return fmt.Errorf("failed to update listing after poll: %w", err)
	}

	if _, err := s.store.AppendPriceSample(pollCtx, p.ID, item.Price, item.AvailableQuantity); err != nil {
		return fmt.Errorf("failed to append price sample: %w", err)
	}

	// Notifications describe the listing as just observed, not the
	// cycle-start snapshot.
	p.Name = item.Title
	p.Price = item.Price
	p.Stock = item.AvailableQuantity

	s.evaluateAlerts(pollCtx, p, item.Price)
	return nil
}

func (s *Scheduler) recordPollFailure(p models.Product, err error) {
	outcome := "error"
	switch {
	case errors.Is(err, marketplace.ErrAuthenticationRequired):
		outcome = "auth_required"
	case errors.Is(err, marketplace.ErrUnreachable):
		outcome = "unreachable"
	default:
		var rle *marketplace.RateLimitError
		if errors.As(err, &rle) {
			outcome = "rate_limited"
		}
	}

	metrics.MonitorPollsTotal.WithLabelValues(outcome).Inc()
	logging.Warn().
		Err(err).
		Int64("product_id", p.ID).
		Int64("user_id", p.UserID).
		Str("external_id", p.ExternalID).
		Str("outcome", outcome).
		Msg("Product poll skipped")
}

// evaluateAlerts fires every armed alert whose target the current price
// reached. The fired flag is claimed atomically before the notification
// goes out, so delivery is at-most-once; a failed send is logged and the
// alert stays fired.
func (s *Scheduler) evaluateAlerts(ctx context.Context, p models.Product, currentPrice float64) {
	alerts, err := s.store.ListUnfiredForProduct(ctx, p.ID)
	if err != nil {
		logging.Error().Err(err).Int64("product_id", p.ID).Msg("Failed to list alerts for product")
		return
	}

	for _, a := range alerts {
		if currentPrice > a.TargetPrice {
			continue
		}

		won, err := s.store.TryMarkFired(ctx, a.ID)
		if err != nil {
			logging.Error().Err(err).Int64("alert_id", a.ID).Msg("Failed to claim alert")
			continue
		}
		if !won {
			continue
		}

		metrics.AlertsFiredTotal.Inc()
		logging.Info().
			Int64("alert_id", a.ID).
			Int64("product_id", p.ID).
			Float64("current_price", currentPrice).
			Float64("target_price", a.TargetPrice).
			Msg("Alert fired")

		user, err := s.store.GetUserByID(ctx, a.UserID)
		if err != nil {
			logging.Error().Err(err).Int64("alert_id", a.ID).Int64("user_id", a.UserID).
				Msg("Alert fired but owner lookup failed, notification skipped")
			continue
		}

		if err := s.notifier.SendPriceAlert(ctx, notify.PriceAlert{
			Email:        user.Email,
			Name:         user.Name,
			Product:      p,
			CurrentPrice: currentPrice,
			TargetPrice:  a.TargetPrice,
		}); err != nil {
			// The alert remains fired: at-most-once beats a duplicate
			// email on every subsequent cycle.
			logging.Error().Err(err).Int64("alert_id", a.ID).Msg("Alert notification failed")
		}
	}
}
