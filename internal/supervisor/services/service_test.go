// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHTTPServer struct {
	mu        sync.Mutex
	serveErr  error
	started   chan struct{}
	stop      chan struct{}
	shutdowns int
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{started: make(chan struct{}), stop: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	close(m.started)
	if m.serveErr != nil {
		return m.serveErr
	}
	<-m.stop
	return nil
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.mu.Lock()
	m.shutdowns++
	m.mu.Unlock()
	close(m.stop)
	return nil
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	srv := newMockHTTPServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.started
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after cancellation")
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 1, srv.shutdowns)
}

func TestHTTPServiceReturnsServerError(t *testing.T) {
	srv := newMockHTTPServer()
	srv.serveErr = errors.New("bind: address already in use")
	svc := NewHTTPServerService(srv, time.Second)

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
}

type mockMonitor struct {
	startErr error
	started  atomic.Int32
	stopped  atomic.Int32
}

func (m *mockMonitor) Start() error {
	if m.startErr != nil {
		return m.startErr
	}
	m.started.Add(1)
	return nil
}

func (m *mockMonitor) Stop() { m.stopped.Add(1) }

func TestMonitorServiceLifecycle(t *testing.T) {
	mon := &mockMonitor{}
	svc := NewMonitorService(mon)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	require.Eventually(t, func() bool { return mon.started.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after cancellation")
	}
	assert.Equal(t, int32(1), mon.stopped.Load())
}

func TestMonitorServiceStartFailure(t *testing.T) {
	mon := &mockMonitor{startErr: errors.New("already running")}
	svc := NewMonitorService(mon)

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
	assert.Equal(t, int32(0), mon.stopped.Load())
}

type mockCleaner struct {
	calls atomic.Int32
}

func (m *mockCleaner) CleanupExpired() int {
	m.calls.Add(1)
	return 1
}

func TestSessionReaperSweeps(t *testing.T) {
	cleaner := &mockCleaner{}
	svc := NewSessionReaperService(cleaner, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	require.Eventually(t, func() bool { return cleaner.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop after cancellation")
	}
}

func TestServiceNames(t *testing.T) {
	assert.Equal(t, "http-server", NewHTTPServerService(newMockHTTPServer(), 0).String())
	assert.Equal(t, "price-monitor", NewMonitorService(&mockMonitor{}).String())
	assert.Equal(t, "session-reaper", NewSessionReaperService(&mockCleaner{}, 0).String())
}
