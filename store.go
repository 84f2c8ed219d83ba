package biblioteca

import (
	"context"
	"errors"
)

// MaxBatchGetKeys is the documented upper bound on the number of keys a
// single GetBooksByIDs call may carry. Engines reject larger key sets;
// callers batch (see Favorites.List).
const MaxBatchGetKeys = 30

// Storage-operation errors shared by the engines. Engines join these with the
// underlying driver error so callers can match the failure stage while the
// root cause stays reachable through errors.Is/As.
var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrInvalidTablePrefix    = errors.New("table prefix must be a plain sql identifier")
	ErrBuildingQueryFailed   = errors.New("building sql query failed")
	ErrQueryingStoreFailed   = errors.New("querying the store failed")
	ErrExecutingStoreFailed  = errors.New("executing the store statement failed")
	ErrScanningRowFailed     = errors.New("scanning a store row failed")
	ErrBeginTxFailed         = errors.New("beginning the transaction failed")
	ErrCommitFailed          = errors.New("committing the transaction failed")
)

// BookReader is the read surface over book records.
type BookReader interface {
	// GetBook returns the book or an error matching ErrNotFound.
	GetBook(ctx context.Context, id BookID) (Book, error)

	// GetBooksByIDs resolves up to MaxBatchGetKeys keys in one call. Found
	// books come back in request-key order; missing keys are skipped, not
	// errors. More than MaxBatchGetKeys keys is an error matching
	// ErrValidation.
	GetBooksByIDs(ctx context.Context, ids []BookID) ([]Book, error)

	// ListBooks returns up to limit books ordered by title ascending, ties
	// broken by record creation order. limit <= 0 means no limit.
	ListBooks(ctx context.Context, limit int) ([]Book, error)
}

// BookWriter is the mutation surface over book records used by the Registry.
// Counter arithmetic belongs to the Coordinator and the Registry stock
// policy; engines persist whatever counters the given book carries.
type BookWriter interface {
	// PutBook upserts the record and returns the stored state with
	// server-assigned timestamps filled in.
	PutBook(ctx context.Context, b Book) (Book, error)

	// TouchBook updates the last-accessed timestamp only. Returns an error
	// matching ErrNotFound for an unknown id.
	TouchBook(ctx context.Context, id BookID) error
}

// LoanReader is the read surface over loan records. All listings order
// active loans before returned ones, and inside each status group by record
// creation time descending.
type LoanReader interface {
	GetLoan(ctx context.Context, id LoanID) (Loan, error)
	ListLoans(ctx context.Context) ([]Loan, error)
	ListLoansByAdmin(ctx context.Context, adminID string) ([]Loan, error)
}

// FavoriteStore persists (user, book) favorite pairs.
type FavoriteStore interface {
	// PutFavorite upserts the pair; re-adding overwrites the favorited
	// timestamp with the current server time.
	PutFavorite(ctx context.Context, f Favorite) error

	// DeleteFavorite removes the pair; an absent pair is a no-op success.
	DeleteFavorite(ctx context.Context, userID string, id BookID) error

	// ListFavorites returns the user's favorites ordered by favorited time
	// descending.
	ListFavorites(ctx context.Context, userID string) ([]Favorite, error)
}

// InventoryTx is the view of the store inside one atomic transaction. All
// reads observe the transaction's snapshot; all writes become visible only on
// commit. Timestamps (LoanedAt, ReturnedAt, last-accessed) are assigned by
// the engine at write time, not by the caller.
type InventoryTx interface {
	GetBook(ctx context.Context, id BookID) (Book, error)

	// PutBook upserts the full record inside the transaction. Used by the
	// Registry so its read-merge-write runs under the same isolation as the
	// Coordinator's counter updates.
	PutBook(ctx context.Context, b Book) (Book, error)

	UpdateAvailableQuantity(ctx context.Context, id BookID, available int) error
	TouchBook(ctx context.Context, id BookID) error
	GetLoan(ctx context.Context, id LoanID) (Loan, error)

	// CreateLoan inserts the loan with status active, assigning the ID and
	// the LoanedAt/CreatedAt timestamps.
	CreateLoan(ctx context.Context, l Loan) (LoanID, error)

	// MarkLoanReturned sets status returned and the returned timestamp.
	MarkLoanReturned(ctx context.Context, id LoanID) error
}

// TransactionalStore executes fn as one all-or-nothing unit with serializable
// isolation for the read-then-write patterns of the Coordinator. fn returning
// an error, or the context being canceled before commit, leaves zero
// observable change. A serialization failure at commit surfaces as an error
// matching ErrConflict so callers can retry.
type TransactionalStore interface {
	RunInTransaction(ctx context.Context, fn func(tx InventoryTx) error) error
}

// RegistryStore is everything the Registry needs from an engine.
type RegistryStore interface {
	BookReader
	BookWriter
	TransactionalStore
}

// BookSearcher is an optional engine capability: a store that can push the
// catalog search down to the backend. Engines without it are served by the
// client-side fallback in Search (see search.go).
type BookSearcher interface {
	SearchBooks(ctx context.Context, q SearchQuery) ([]Book, error)
}
