// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

package services

import (
	"context"
	"time"

	"github.com/vigia-app/vigia/internal/logging"
)

// SessionCleaner matches the pending-authorization store's cleanup
// method. Satisfied by *oauth.SessionStore.
type SessionCleaner interface {
	CleanupExpired() int
}

// SessionReaperService periodically evicts expired pending marketplace
// authorizations. Entries are also rejected lazily on use; the reaper
// just keeps abandoned flows from accumulating in memory.
type SessionReaperService struct {
	cleaner  SessionCleaner
	interval time.Duration
}

// NewSessionReaperService sweeps cleaner every interval; values <= 0
// fall back to one minute.
func NewSessionReaperService(cleaner SessionCleaner, interval time.Duration) *SessionReaperService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SessionReaperService{cleaner: cleaner, interval: interval}
}

// Serve implements suture.Service.
func (s *SessionReaperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.cleaner.CleanupExpired(); n > 0 {
				logging.Debug().Int("evicted", n).Msg("Expired pending authorizations removed")
			}
		}
	}
}

func (s *SessionReaperService) String() string { return "session-reaper" }
