// Package lock provides a keyed, expiring advisory lock backed by shared
// persistent storage. It serializes cron-style reconciliation sweeps across
// process instances; failing to acquire is the normal "someone else is
// already running" outcome, not an error.
package lock

import (
	"context"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// Service implements the acquire/release protocol over a locks row per key.
// Every acquisition is a single conditional write against the row's
// updated_at version stamp, so two instances racing on the same key cannot
// both win.
type Service struct {
	sql     infra.SQLExecutor
	timeout time.Duration
	logger  infra.Logger
	now     func() time.Time
}

func New(sql infra.SQLExecutor, timeout time.Duration, logger infra.Logger) *Service {
	return &Service{sql: sql, timeout: timeout, logger: logger, now: time.Now}
}

// Timeout returns the configured expiry shared by all lock keys.
func (s *Service) Timeout() time.Duration {
	return s.timeout
}

// TryAcquire attempts to take the lock for key on behalf of holderID.
// Returns false when another live holder has it. A holder whose lockedAt is
// older than the timeout is treated as crashed and the lock is reclaimed.
func (s *Service) TryAcquire(ctx context.Context, key, holderID string) (bool, error) {
	var (
		isLocked  bool
		lockedBy  *string
		lockedAt  *time.Time
		updatedAt time.Time
	)
	row := s.sql.QueryRow(ctx, sqlinline.QSelectLock, key)
	if err := row.Scan(&isLocked, &lockedBy, &lockedAt, &updatedAt); err != nil {
		if infra.IsNoRows(err) {
			return s.insert(ctx, key, holderID)
		}
		return false, fmt.Errorf("read lock %q: %w", key, err)
	}

	if isLocked {
		if lockedAt == nil || s.now().Sub(*lockedAt) <= s.timeout {
			return false, nil
		}
		staleHolder := ""
		if lockedBy != nil {
			staleHolder = *lockedBy
		}
		s.logger.Warn().
			Str("key", key).
			Str("stale_holder", staleHolder).
			Time("locked_at", *lockedAt).
			Msg("lock: reclaiming expired lock")
	}

	// Free or expired. The version-stamp condition makes the write lose
	// cleanly if anybody touched the row since our read.
	tag, err := s.sql.Exec(ctx, sqlinline.QAcquireLock, key, holderID, updatedAt)
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Renew refreshes lockedAt for a lock this holder currently owns, pushing
// the expiry out. Returns false when the lock is no longer ours.
func (s *Service) Renew(ctx context.Context, key, holderID string) (bool, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QRenewLock, key, holderID)
	if err != nil {
		return false, fmt.Errorf("renew lock %q: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release unlocks key, conditioned on holderID still being the holder, so a
// process cannot release a lock it lost to expiry.
func (s *Service) Release(ctx context.Context, key, holderID string) error {
	tag, err := s.sql.Exec(ctx, sqlinline.QReleaseLock, key, holderID)
	if err != nil {
		return fmt.Errorf("release lock %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotLockHolder
	}
	return nil
}

func (s *Service) insert(ctx context.Context, key, holderID string) (bool, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QInsertLock, key, holderID)
	if err != nil {
		return false, fmt.Errorf("create lock %q: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}
