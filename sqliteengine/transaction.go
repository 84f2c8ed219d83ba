package sqliteengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ramonpiresone/biblioteca"
)

// RunInTransaction executes fn against one transaction. fn returning an error
// rolls everything back and surfaces that error unchanged. SQLite rejects
// conflicting writers with a busy error instead of failing at commit the way
// a serializable MVCC engine does, and those surface as errors matching
// biblioteca.ErrConflict so the retry layer can react either way.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx biblioteca.InventoryTx) error) error {
	start := time.Now()

	err := s.inWriteTx(ctx, func(dbTx *sql.Tx) error {
		return fn(&inventoryTx{store: s, tx: dbTx})
	})
	if err != nil {
		return err
	}

	s.logOperation(ctx, logMsgTransactionDone, logAttrDurationMS, toMilliseconds(time.Since(start)))

	return nil
}

// inWriteTx wraps a multi-statement write in one transaction. Conflicts are
// logged at info, not error, whether fn lost a lock race or the commit did.
func (s *Store) inWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	dbTx, beginErr := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if beginErr != nil {
		s.logError(ctx, logMsgBeginTxFailed, beginErr)

		return errors.Join(biblioteca.ErrBeginTxFailed, beginErr)
	}

	if fnErr := fn(dbTx); fnErr != nil {
		s.rollback(ctx, dbTx)

		if errors.Is(fnErr, biblioteca.ErrConflict) {
			s.logOperation(ctx, logMsgWriteConflict, logAttrError, fnErr.Error())
		}

		return fnErr
	}

	if commitErr := dbTx.Commit(); commitErr != nil {
		if isBusyError(commitErr) {
			conflictErr := errors.Join(biblioteca.ErrConflict, commitErr)
			s.logOperation(ctx, logMsgWriteConflict, logAttrError, conflictErr.Error())

			return conflictErr
		}

		s.logError(ctx, logMsgCommitFailed, commitErr)

		return errors.Join(biblioteca.ErrCommitFailed, commitErr)
	}

	return nil
}

func (s *Store) rollback(ctx context.Context, tx *sql.Tx) {
	if rollbackErr := tx.Rollback(); rollbackErr != nil {
		s.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
	}
}

// inventoryTx adapts one open database transaction to the inventory
// transaction interface, reusing the store's builders and scanners.
type inventoryTx struct {
	store *Store
	tx    *sql.Tx
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
