package biblioteca

import (
	"context"
	"strings"
)

// Ledger is the read surface over loan records. Every listing orders active
// loans before returned ones, newest first inside each group. Mutations go
// through the Coordinator only.
type Ledger struct {
	store LoanReader
}

// NewLedger creates a Ledger over the given loan reader.
func NewLedger(store LoanReader) *Ledger {
	return &Ledger{store: store}
}

// GetLoan returns the loan or an error matching ErrNotFound.
func (l *Ledger) GetLoan(ctx context.Context, id LoanID) (Loan, error) {
	if strings.TrimSpace(id.String()) == "" {
		return Loan{}, NewValidationError("loanId", "must not be empty")
	}

	return l.store.GetLoan(ctx, id)
}

// ListAll returns every loan on record.
func (l *Ledger) ListAll(ctx context.Context) ([]Loan, error) {
	return l.store.ListLoans(ctx)
}

// ListByAdmin returns the loans issued by one admin.
func (l *Ledger) ListByAdmin(ctx context.Context, adminID string) ([]Loan, error) {
	if strings.TrimSpace(adminID) == "" {
		return nil, NewValidationError("adminId", "must not be empty")
	}

	return l.store.ListLoansByAdmin(ctx, adminID)
}
