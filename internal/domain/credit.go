package domain

import "time"

// CreditEntryKind tags why a ledger entry exists.
type CreditEntryKind string

const (
	CreditEntryDebit  CreditEntryKind = "JOB_DEBIT"
	CreditEntryRefund CreditEntryKind = "JOB_REFUND"
	CreditEntryTopUp  CreditEntryKind = "TOP_UP"
)

// CreditTransaction is one immutable ledger entry. Amount is in signed minor
// units: negative for a job-start debit, positive for a refund or top-up.
// A user's balance is the sum of all their entries; entries are never mutated
// or deleted.
type CreditTransaction struct {
	ID        string
	UserID    string
	JobID     *string
	Kind      CreditEntryKind
	Amount    int64
	CreatedAt time.Time
}
