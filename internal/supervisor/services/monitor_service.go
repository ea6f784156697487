// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package services

import (
	"context"
	"fmt"
)

// MonitorManager matches the price monitor's Start/Stop lifecycle.
// Satisfied by *monitor.Scheduler.
type MonitorManager interface {
	Start() error
	Stop()
}

// MonitorService runs the price monitor under supervision: Start spawns
// the polling loop, the service blocks until cancellation, and Stop
// waits for any in-flight cycle to drain.
type MonitorService struct {
	manager MonitorManager
}

// NewMonitorService wraps the monitor scheduler.
func NewMonitorService(manager MonitorManager) *MonitorService {
	return &MonitorService{manager: manager}
}

// Serve implements suture.Service. A failed Start returns immediately so
// suture can apply its backoff policy.
func (s *MonitorService) Serve(ctx context.Context) error {
	if err := s.manager.Start(); err != nil {
		return fmt.Errorf("price monitor start failed: %w", err)
	}

	<-ctx.Done()

	s.manager.Stop()
	return ctx.Err()
}

func (s *MonitorService) String() string { return "price-monitor" }
