package biblioteca

import "time"

// LoanID is the generated identifier of a loan record (UUIDv7, assigned by the
// storage engine on creation).
type LoanID string

func (id LoanID) String() string {
	return string(id)
}

// LoanStatus is the lifecycle state of a loan. The only legal transition is
// LoanActive -> LoanReturned; returned is terminal.
type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
)

// Known reports whether the status is one of the two legal values. Anything
// else read from storage marks a corrupt record.
func (s LoanStatus) Known() bool {
	return s == LoanActive || s == LoanReturned
}

// Identity is an opaque external principal supplied by the identity provider.
// The catalog records it verbatim and never validates or mutates it.
type Identity struct {
	ID    string
	Name  string
	Email string
}

// Borrower identifies the person a loan is issued to.
type Borrower struct {
	Name       string
	NationalID NationalID
}

// Loan is a single circulation record. BookTitle, Admin and Borrower are
// point-in-time snapshots taken at creation and never refreshed afterwards.
//
// Loans are created only by Coordinator.CreateLoan and mutated only by
// Coordinator.ReturnBook; they are never deleted.
type Loan struct {
	ID         LoanID
	BookID     BookID
	BookTitle  string
	Admin      Identity
	Borrower   Borrower
	LoanedAt   time.Time
	DueAt      time.Time
	Status     LoanStatus
	ReturnedAt *time.Time
	CreatedAt  time.Time
}

// Active reports whether the loan still holds a copy.
func (l Loan) Active() bool {
	return l.Status == LoanActive
}
