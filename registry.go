package biblioteca

import (
	"context"
	"errors"
	"strings"
)

// Operation names and log messages for Registry outcomes.
const (
	registerBookOp = "register_book"
	ensureBookOp   = "ensure_book"

	logMsgBookRegistered = "book registered"
	logMsgBookUpdated    = "book record updated"
	logMsgStubCreated    = "stub book created"
	logAttrISBN          = "isbn"
	logAttrQuantity      = "quantity"
)

// RegisterBook is the input of Registry.Register. A nil Quantity registers or
// refreshes descriptive data without touching stock.
type RegisterBook struct {
	ISBN     string
	Quantity *int
}

// Registry owns the canonical book records: registration from the external
// bibliographic lookup, the descriptive-merge policy, the stock policy, and
// the lazy stub creation favoriting relies on.
type Registry struct {
	store            RegistryStore
	lookup           BibliographicLookup
	logger           Logger
	contextualLogger ContextualLogger
	retryOptions     []RetryOption
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry) error

// WithRegistryLogger attaches a logger for registration outcomes.
func WithRegistryLogger(logger Logger) RegistryOption {
	return func(r *Registry) error {
		r.logger = logger

		return nil
	}
}

// WithRegistryContextualLogger attaches a context-aware logger, preferred
// over the plain logger when both are set.
func WithRegistryContextualLogger(logger ContextualLogger) RegistryOption {
	return func(r *Registry) error {
		r.contextualLogger = logger

		return nil
	}
}

// WithRegistryRetryOptions sets a custom retry configuration for the
// conflict retries around registration transactions.
func WithRegistryRetryOptions(opts ...RetryOption) RegistryOption {
	return func(r *Registry) error {
		r.retryOptions = opts

		return nil
	}
}

// NewRegistry creates a Registry over the given store and bibliographic lookup.
func NewRegistry(store RegistryStore, lookup BibliographicLookup, opts ...RegistryOption) (*Registry, error) {
	registry := &Registry{
		store:  store,
		lookup: lookup,
	}

	for _, opt := range opts {
		if err := opt(registry); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// Register resolves the ISBN through the bibliographic lookup and creates or
// updates the book record.
//
// A new record takes the full descriptive data; when a quantity is supplied
// the available counter starts at that quantity. An existing record gets a
// non-destructive descriptive merge (omitted incoming fields keep the stored
// value, counters are never part of the merge) and, when a quantity is
// supplied, the stock policy: the available counter moves by the quantity
// delta, clamped to [0, quantity], so active-loan accounting survives a
// restock.
//
// Lookup misses surface as an error matching ErrNotFound, lookup failures as
// ErrUpstream; in both cases nothing is written.
func (r *Registry) Register(ctx context.Context, cmd RegisterBook) (Book, error) {
	if strings.TrimSpace(cmd.ISBN) == "" {
		return Book{}, NewValidationError("isbn", "must not be empty")
	}

	if cmd.Quantity != nil && *cmd.Quantity < 0 {
		return Book{}, NewValidationError("quantity", "must not be negative")
	}

	record, err := r.lookup.ByISBN(ctx, cmd.ISBN)
	if err != nil {
		return Book{}, err
	}

	ctx = WithStrongConsistency(ctx)

	var result Book
	var created bool

	err = RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		return r.store.RunInTransaction(retryCtx, func(tx InventoryTx) error {
			book, err := r.upsertFromRecord(retryCtx, tx, record, cmd.Quantity, &created)
			if err != nil {
				return err
			}

			result = book

			return nil
		})
	}, r.retryOptionsFor(registerBookOp)...)

	if err != nil {
		return Book{}, err
	}

	msg := logMsgBookUpdated
	if created {
		msg = logMsgBookRegistered
	}

	args := []any{logAttrBookID, result.ID.String(), logAttrISBN, cmd.ISBN}
	if cmd.Quantity != nil {
		args = append(args, logAttrQuantity, *cmd.Quantity)
	}

	r.logInfo(ctx, msg, args...)

	return result, nil
}

// upsertFromRecord applies the merge and stock policies inside the transaction.
func (r *Registry) upsertFromRecord(
	ctx context.Context,
	tx InventoryTx,
	record BibliographicRecord,
	quantity *int,
	created *bool,
) (Book, error) {
	book := record.Book()

	stored, err := tx.GetBook(ctx, record.OLID)

	switch {
	case err == nil:
		book = mergeDescriptive(stored, book)
	case isNotFound(err):
		*created = true
	default:
		return Book{}, err
	}

	if quantity != nil {
		book = applyQuantity(book, *quantity)
	}

	return tx.PutBook(ctx, book)
}

// Ensure lazily creates a stub record for an unknown book and refreshes the
// last-accessed timestamp of a known one. Stubs carry descriptive fields only;
// favoriting must never set stock, so incoming counters are stripped.
func (r *Registry) Ensure(ctx context.Context, b Book) (Book, error) {
	if strings.TrimSpace(b.ID.String()) == "" {
		return Book{}, NewValidationError("bookId", "must not be empty")
	}

	ctx = WithStrongConsistency(ctx)

	var result Book
	var created bool

	err := RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		return r.store.RunInTransaction(retryCtx, func(tx InventoryTx) error {
			stored, err := tx.GetBook(retryCtx, b.ID)

			switch {
			case err == nil:
				if err := tx.TouchBook(retryCtx, b.ID); err != nil {
					return err
				}

				result = stored

				return nil
			case isNotFound(err):
				created = true

				stub, err := tx.PutBook(retryCtx, b.WithoutCounters())
				if err != nil {
					return err
				}

				result = stub

				return nil
			default:
				return err
			}
		})
	}, r.retryOptionsFor(ensureBookOp)...)

	if err != nil {
		return Book{}, err
	}

	if created {
		r.logInfo(ctx, logMsgStubCreated, logAttrBookID, b.ID.String())
	}

	return result, nil
}

// Touch refreshes the last-accessed timestamp without touching anything else.
func (r *Registry) Touch(ctx context.Context, id BookID) error {
	if strings.TrimSpace(id.String()) == "" {
		return NewValidationError("bookId", "must not be empty")
	}

	return r.store.TouchBook(ctx, id)
}

// GetBook returns the record or an error matching ErrNotFound.
func (r *Registry) GetBook(ctx context.Context, id BookID) (Book, error) {
	return r.store.GetBook(ctx, id)
}

// ListBooks returns all records ordered by title ascending, ties broken by
// insertion order.
func (r *Registry) ListBooks(ctx context.Context) ([]Book, error) {
	return r.store.ListBooks(ctx, 0)
}

func (r *Registry) retryOptionsFor(operation string) []RetryOption {
	options := make([]RetryOption, 0, len(r.retryOptions)+1)

	if r.logger != nil {
		options = append(options, WithRetryLogger(r.logger, operation))
	}

	return append(options, r.retryOptions...)
}

func (r *Registry) logInfo(ctx context.Context, msg string, args ...any) {
	if r.contextualLogger != nil {
		r.contextualLogger.InfoContext(ctx, msg, args...)

		return
	}

	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

// isNotFound reports whether err is a miss rather than a storage fault.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
