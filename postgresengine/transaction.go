package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/ramonpiresone/biblioteca"
	"github.com/ramonpiresone/biblioteca/postgresengine/internal/adapters"
)

// RunInTransaction executes fn against one serializable transaction. fn
// returning an error rolls everything back and surfaces that error unchanged.
// A serialization failure, whether inside fn or at commit, surfaces as an
// error matching biblioteca.ErrConflict so the retry layer can react.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx biblioteca.InventoryTx) error) error {
	start := time.Now()
	ctx, span := s.startSpan(ctx, operationTransaction, nil)

	err := s.runInTransaction(ctx, fn)
	s.observe(ctx, span, operationTransaction, start, err)

	if err != nil {
		return err
	}

	s.logOperation(ctx, logMsgTransactionCommitted, logAttrDurationMS, toMilliseconds(time.Since(start)))

	return nil
}

func (s *Store) runInTransaction(ctx context.Context, fn func(tx biblioteca.InventoryTx) error) error {
	dbTx, beginErr := s.db.BeginSerializableTx(ctx)
	if beginErr != nil {
		s.logError(ctx, logMsgBeginTxFailed, beginErr)

		return errors.Join(biblioteca.ErrBeginTxFailed, beginErr)
	}

	if fnErr := fn(&inventoryTx{store: s, tx: dbTx}); fnErr != nil {
		s.rollback(ctx, dbTx)

		if errors.Is(fnErr, biblioteca.ErrConflict) {
			s.noteTransactionConflict(ctx, fnErr)
		}

		return fnErr
	}

	if commitErr := dbTx.Commit(ctx); commitErr != nil {
		if isSerializationFailure(commitErr) {
			conflictErr := errors.Join(biblioteca.ErrConflict, commitErr)
			s.noteTransactionConflict(ctx, conflictErr)

			return conflictErr
		}

		s.logError(ctx, logMsgCommitFailed, commitErr)

		return errors.Join(biblioteca.ErrCommitFailed, commitErr)
	}

	return nil
}

// noteTransactionConflict logs and counts one lost serialization race. The
// retry layer treats these as transient, so they log at info, not error.
func (s *Store) noteTransactionConflict(ctx context.Context, err error) {
	s.logOperation(ctx, logMsgTransactionConflict, logAttrError, err.Error())
	s.recordTransactionConflict(ctx)
}

func (s *Store) rollback(ctx context.Context, tx adapters.DBTx) {
	if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
		s.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
	}
}

// inventoryTx adapts one open database transaction to the inventory
// transaction interface, reusing the store's builders and scanners.
type inventoryTx struct {
	store *Store
	tx    adapters.DBTx
}

var _ biblioteca.InventoryTx = (*inventoryTx)(nil)

func (t *inventoryTx) GetBook(ctx context.Context, id biblioteca.BookID) (biblioteca.Book, error) {
	return t.store.getBookVia(ctx, t.tx, id)
}

func (t *inventoryTx) PutBook(ctx context.Context, b biblioteca.Book) (biblioteca.Book, error) {
	return t.store.putBookVia(ctx, t.tx, b)
}

func (t *inventoryTx) UpdateAvailableQuantity(ctx context.Context, id biblioteca.BookID, available int) error {
	return t.store.updateAvailableQuantityVia(ctx, t.tx, id, available)
}

func (t *inventoryTx) TouchBook(ctx context.Context, id biblioteca.BookID) error {
	return t.store.touchBookVia(ctx, t.tx, id)
}

func (t *inventoryTx) GetLoan(ctx context.Context, id biblioteca.LoanID) (biblioteca.Loan, error) {
	return t.store.getLoanVia(ctx, t.tx, id)
}

func (t *inventoryTx) CreateLoan(ctx context.Context, l biblioteca.Loan) (biblioteca.LoanID, error) {
	return t.store.createLoanVia(ctx, t.tx, l)
}

func (t *inventoryTx) MarkLoanReturned(ctx context.Context, id biblioteca.LoanID) error {
	return t.store.markLoanReturnedVia(ctx, t.tx, id)
}
