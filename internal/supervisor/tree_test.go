// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// blockingService runs until its context is canceled.
type blockingService struct {
	name   string
	serves atomic.Int32
}

func (s *blockingService) Serve(ctx context.Context) error {
	s.serves.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingService) String() string { return s.name }

func TestTreeDefaultsAppliedForZeroConfig(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{})

	assert.Equal(t, 5.0, tree.config.FailureThreshold)
	assert.Equal(t, 30.0, tree.config.FailureDecay)
	assert.Equal(t, 15*time.Second, tree.config.FailureBackoff)
	assert.Equal(t, 10*time.Second, tree.config.ShutdownTimeout)
}

func TestTreeStartsAndStopsGracefully(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{
		FailureBackoff:  100 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})

	background := &blockingService{name: "mock-background"}
	api := &blockingService{name: "mock-api"}
	tree.AddBackgroundService(background)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool {
		return background.serves.Load() == 1 && api.serves.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected terminal error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("supervisor tree did not stop after cancellation")
	}
}

func TestTreeRestartsCrashedService(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{
		FailureBackoff:  50 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})

	crashes := &crashingService{failures: 2}
	tree.AddBackgroundService(crashes)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	// The service fails twice, gets restarted, then blocks.
	require.Eventually(t, func() bool { return crashes.serves.Load() >= 3 }, 3*time.Second, 5*time.Millisecond)
}

type crashingService struct {
	failures int32
	serves   atomic.Int32
}

func (s *crashingService) Serve(ctx context.Context) error {
	n := s.serves.Add(1)
	if n <= s.failures {
		return errors.New("simulated crash")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *crashingService) String() string { return "crasher" }
