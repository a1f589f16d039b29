// Package ledger maintains the append-only credit transaction log. A user's
// balance is derived by summation; entries are never mutated or deleted.
//
// Every mutation takes an infra.DBTX so the caller can bind it to the same
// transaction as the job-status write it accompanies: a job is never marked
// REFUNDED without its refund entry committing, and vice versa.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

type Ledger struct {
	logger infra.Logger
}

func New(logger infra.Logger) *Ledger {
	return &Ledger{logger: logger}
}

// Debit appends the single negative entry for a job start. cents is the
// positive price; the stored amount is its negation. A second debit for the
// same job is rejected with domain.ErrDuplicateOperation.
func (l *Ledger) Debit(ctx context.Context, db infra.DBTX, userID, jobID string, cents int64) error {
	if cents <= 0 {
		return fmt.Errorf("ledger: debit amount must be positive, got %d", cents)
	}
	runner := infra.NewSQLRunner(db, l.logger)
	tag, err := runner.Exec(ctx, sqlinline.QInsertDebit, uuid.NewString(), userID, jobID, -cents)
	if err != nil {
		return fmt.Errorf("ledger: debit job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateOperation
	}
	return nil
}

// Refund appends the positive refund entry for a job, only if none exists
// yet. Returns false with a nil error when the job was already refunded; a
// re-run refund sweep is an idempotent no-op, not a failure.
func (l *Ledger) Refund(ctx context.Context, db infra.DBTX, userID, jobID string, cents int64) (bool, error) {
	if cents <= 0 {
		return false, fmt.Errorf("ledger: refund amount must be positive, got %d", cents)
	}
	runner := infra.NewSQLRunner(db, l.logger)
	tag, err := runner.Exec(ctx, sqlinline.QInsertRefund, uuid.NewString(), userID, jobID, cents)
	if err != nil {
		return false, fmt.Errorf("ledger: refund job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		l.logger.Debug().Str("job_id", jobID).Msg("ledger: refund already recorded")
		return false, nil
	}
	return true, nil
}

// TopUp appends a positive entry not tied to any job.
func (l *Ledger) TopUp(ctx context.Context, db infra.DBTX, userID string, cents int64) error {
	if cents <= 0 {
		return fmt.Errorf("ledger: top-up amount must be positive, got %d", cents)
	}
	runner := infra.NewSQLRunner(db, l.logger)
	if _, err := runner.Exec(ctx, sqlinline.QInsertTopUp, uuid.NewString(), userID, cents); err != nil {
		return fmt.Errorf("ledger: top up user %s: %w", userID, err)
	}
	return nil
}

// Balance sums all entries for a user.
func (l *Ledger) Balance(ctx context.Context, db infra.DBTX, userID string) (int64, error) {
	runner := infra.NewSQLRunner(db, l.logger)
	var balance int64
	if err := runner.QueryRow(ctx, sqlinline.QSelectBalance, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("ledger: balance for user %s: %w", userID, err)
	}
	return balance, nil
}

// ListTransactions returns the most recent entries for a user.
func (l *Ledger) ListTransactions(ctx context.Context, db infra.DBTX, userID string, limit int) ([]domain.CreditTransaction, error) {
	runner := infra.NewSQLRunner(db, l.logger)
	rows, err := runner.Query(ctx, sqlinline.QListTransactions, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.CreditTransaction
	for rows.Next() {
		var tx domain.CreditTransaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.JobID, &tx.Kind, &tx.Amount, &tx.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
