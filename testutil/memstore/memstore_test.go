package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonpiresone/biblioteca"
	"github.com/ramonpiresone/biblioteca/testutil/fixtures"
	"github.com/ramonpiresone/biblioteca/testutil/memstore"
)

func Test_RunInTransaction_CommitsStagedWritesAtomically(t *testing.T) {
	// setup
	store := memstore.NewStore()
	ctx := context.Background()

	book := fixtures.GivenStockedBook(t, 2)

	var loanID biblioteca.LoanID

	// act
	err := store.RunInTransaction(ctx, func(tx biblioteca.InventoryTx) error {
		if _, err := tx.PutBook(ctx, book); err != nil {
			return err
		}

		var txErr error
		loanID, txErr = tx.CreateLoan(ctx, biblioteca.Loan{
			BookID: book.ID,
			Status: biblioteca.LoanActive,
		})

		return txErr
	})

	// assert
	require.NoError(t, err)

	stored, err := store.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.Title, stored.Title)

	loan, err := store.GetLoan(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, loan.BookID)
	assert.False(t, loan.LoanedAt.IsZero())
	assert.False(t, loan.CreatedAt.IsZero())
}

func Test_RunInTransaction_ErrorDiscardsStagedWrites(t *testing.T) {
	// setup
	store := memstore.NewStore()
	ctx := context.Background()

	book := fixtures.GivenBook(t)
	boom := errors.New("boom")

	// act
	err := store.RunInTransaction(ctx, func(tx biblioteca.InventoryTx) error {
		if _, err := tx.PutBook(ctx, book); err != nil {
			return err
		}

		return boom
	})

	// assert
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.TransactionCount())

	_, err = store.GetBook(ctx, book.ID)
	assert.True(t, errors.Is(err, biblioteca.ErrNotFound), "aborted writes must not be visible")
}

func Test_RunInTransaction_InjectedConflictDiscardsStagedWrites(t *testing.T) {
	// setup
	store := memstore.NewStore()
	ctx := context.Background()

	book := fixtures.GivenBook(t)
	store.FailConflicts(1)

	// act
	err := store.RunInTransaction(ctx, func(tx biblioteca.InventoryTx) error {
		_, txErr := tx.PutBook(ctx, book)

		return txErr
	})

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrConflict))

	_, err = store.GetBook(ctx, book.ID)
	assert.True(t, errors.Is(err, biblioteca.ErrNotFound))

	// the injection is consumed, the next transaction commits
	err = store.RunInTransaction(ctx, func(tx biblioteca.InventoryTx) error {
		_, txErr := tx.PutBook(ctx, book)

		return txErr
	})
	require.NoError(t, err)

	_, err = store.GetBook(ctx, book.ID)
	assert.NoError(t, err)
}

func Test_GetBooksByIDs_EnforcesTheBatchLimit(t *testing.T) {
	// setup
	store := memstore.NewStore()
	ctx := context.Background()

	overLimit := make([]biblioteca.BookID, biblioteca.MaxBatchGetKeys+1)
	for i := range overLimit {
		overLimit[i] = fixtures.GivenUniqueOLID(t)
	}

	// act
	_, err := store.GetBooksByIDs(ctx, overLimit)

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrValidation))

	// exactly at the limit is fine
	_, err = store.GetBooksByIDs(ctx, overLimit[:biblioteca.MaxBatchGetKeys])
	assert.NoError(t, err)
}

func Test_GetBooksByIDs_KeepsRequestOrder_SkipsMissing_Dedupes(t *testing.T) {
	// setup
	store := memstore.NewStore()
	ctx := context.Background()

	first := fixtures.GivenBook(t)
	second := fixtures.GivenBook(t)

	for _, b := range []biblioteca.Book{first, second} {
		_, err := store.PutBook(ctx, b)
		require.NoError(t, err, "error in arranging test data")
	}

	// act
	books, err := store.GetBooksByIDs(ctx, []biblioteca.BookID{
		second.ID,
		"OL0MISSINGM",
		first.ID,
		second.ID, // duplicate
	})

	// assert
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, second.ID, books[0].ID)
	assert.Equal(t, first.ID, books[1].ID)
}

func Test_PutBook_KeepsCreatedAtAcrossUpdates(t *testing.T) {
	// setup
	clock := fixtures.NewTickingClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), time.Second)
	store := memstore.NewStore(memstore.WithClock(clock.Now))
	ctx := context.Background()

	book := fixtures.GivenBook(t)

	created, err := store.PutBook(ctx, book)
	require.NoError(t, err, "error in arranging test data")

	// act
	created.Title = "Renamed"
	updated, err := store.PutBook(ctx, created)

	// assert
	require.NoError(t, err)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, updated.LastAccessedAt.After(created.LastAccessedAt))
}

func Test_ReadsReturnClones_NotAliases(t *testing.T) {
	// setup
	store := memstore.NewStore()
	ctx := context.Background()

	book := fixtures.GivenStockedBook(t, 3)
	_, err := store.PutBook(ctx, book)
	require.NoError(t, err, "error in arranging test data")

	// act: mutate everything reachable from the returned copy
	loaded, err := store.GetBook(ctx, book.ID)
	require.NoError(t, err)

	loaded.Authors[0] = "Mutated"
	*loaded.AvailableQuantity = 0

	// assert
	reloaded, err := store.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.Authors[0], reloaded.Authors[0])
	assert.Equal(t, 3, *reloaded.AvailableQuantity)
}

func Test_RunInTransaction_RefusesCanceledContext(t *testing.T) {
	// setup
	store := memstore.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	book := fixtures.GivenBook(t)

	// act
	err := store.RunInTransaction(ctx, func(tx biblioteca.InventoryTx) error {
		_, txErr := tx.PutBook(ctx, book)

		return txErr
	})

	// assert
	require.ErrorIs(t, err, context.Canceled)

	_, err = store.GetBook(context.Background(), book.ID)
	assert.True(t, errors.Is(err, biblioteca.ErrNotFound))
}
