package biblioteca_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonpiresone/biblioteca"
	"github.com/ramonpiresone/biblioteca/testutil/fixtures"
	"github.com/ramonpiresone/biblioteca/testutil/memstore"
)

func Test_CreateLoan_HappyPath(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)
	ctx := context.Background()

	// arrange
	book := givenStoredBook(t, store, fixtures.GivenStockedBook(t, 3))
	cmd := fixtures.GivenCreateLoan(t, book.ID)

	// act
	loanID, err := coordinator.CreateLoan(ctx, cmd)

	// assert
	require.NoError(t, err)
	assert.NotEmpty(t, loanID)

	stored := getBook(t, store, book.ID)
	assert.Equal(t, 2, available(t, stored))

	loan, err := store.GetLoan(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, biblioteca.LoanActive, loan.Status)
	assert.Equal(t, book.ID, loan.BookID)
	assert.Equal(t, book.Title, loan.BookTitle)
	assert.Equal(t, cmd.Admin, loan.Admin)
	assert.Equal(t, cmd.Borrower, loan.Borrower)
	assert.False(t, loan.LoanedAt.IsZero())
	assert.True(t, cmd.DueAt.Equal(loan.DueAt))
	assert.Nil(t, loan.ReturnedAt)
}

func Test_CreateLoan_Then_ReturnBook_RestoresAvailabilityExactly(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)
	ctx := context.Background()

	book := givenStoredBook(t, store, fixtures.GivenStockedBook(t, 3))

	// act
	loanID, err := coordinator.CreateLoan(ctx, fixtures.GivenCreateLoan(t, book.ID))
	require.NoError(t, err)
	assert.Equal(t, 2, available(t, getBook(t, store, book.ID)))

	err = coordinator.ReturnBook(ctx, loanID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, available(t, getBook(t, store, book.ID)))

	loan, err := store.GetLoan(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, biblioteca.LoanReturned, loan.Status)
	require.NotNil(t, loan.ReturnedAt)
	assert.False(t, loan.ReturnedAt.IsZero())
}

func Test_CreateLoan_When_NoCopiesAvailable(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)
	ctx := context.Background()

	book := givenStoredBook(t, store, fixtures.GivenStockedBook(t, 0))

	// act
	loanID, err := coordinator.CreateLoan(ctx, fixtures.GivenCreateLoan(t, book.ID))

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrUnavailable))
	assert.Empty(t, loanID)
	assert.Equal(t, 0, available(t, getBook(t, store, book.ID)))

	loans, err := store.ListLoans(ctx)
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func Test_CreateLoan_When_BookIsStubWithoutStock(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)
	ctx := context.Background()

	stub := givenStoredBook(t, store, fixtures.GivenBook(t))

	// act
	_, err := coordinator.CreateLoan(ctx, fixtures.GivenCreateLoan(t, stub.ID))

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrUnavailable))
}

func Test_CreateLoan_When_BookDoesNotExist(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)

	// act
	_, err := coordinator.CreateLoan(context.Background(), fixtures.GivenCreateLoan(t, "OL404M"))

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrNotFound))
}

func Test_CreateLoan_When_InputInvalid_FailsBeforeAnyStorageAccess(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)
	ctx := context.Background()

	book := givenStoredBook(t, store, fixtures.GivenStockedBook(t, 3))

	testCases := []struct {
		name   string
		mutate func(cmd *biblioteca.CreateLoan)
	}{
		{name: "missing admin identity", mutate: func(cmd *biblioteca.CreateLoan) { cmd.Admin.ID = " " }},
		{name: "borrower name too short", mutate: func(cmd *biblioteca.CreateLoan) { cmd.Borrower.Name = "Jo" }},
		{name: "borrower name too long", mutate: func(cmd *biblioteca.CreateLoan) { cmd.Borrower.Name = strings.Repeat("a", 101) }},
		{name: "invalid national id", mutate: func(cmd *biblioteca.CreateLoan) { cmd.Borrower.NationalID = "529.982.247-24" }},
		{name: "no book selected", mutate: func(cmd *biblioteca.CreateLoan) { cmd.BookID = "" }},
		{name: "missing due date", mutate: func(cmd *biblioteca.CreateLoan) { cmd.DueAt = time.Time{} }},
		{name: "due date in the past", mutate: func(cmd *biblioteca.CreateLoan) { cmd.DueAt = time.Now().AddDate(0, 0, -1) }},
		{name: "due date beyond horizon", mutate: func(cmd *biblioteca.CreateLoan) { cmd.DueAt = time.Now().AddDate(0, 0, 61) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			cmd := fixtures.GivenCreateLoan(t, book.ID)
			tc.mutate(&cmd)

			// act
			loanID, err := coordinator.CreateLoan(ctx, cmd)

			// assert
			require.Error(t, err)
			assert.True(t, errors.Is(err, biblioteca.ErrValidation))
			assert.Empty(t, loanID)
		})
	}

	// no storage transaction may have been opened by any rejected command
	assert.Equal(t, 0, store.TransactionCount())
	assert.Equal(t, 3, available(t, getBook(t, store, book.ID)))
}

func Test_CreateLoan_NoOversell_UnderConcurrency(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)
	ctx := context.Background()

	const copies = 3
	const attempts = 20

	book := givenStoredBook(t, store, fixtures.GivenStockedBook(t, copies))

	commands := make([]biblioteca.CreateLoan, attempts)
	for i := range commands {
		commands[i] = fixtures.GivenCreateLoan(t, book.ID)
	}

	var successes atomic.Int32
	var unavailable atomic.Int32
	var unexpected atomic.Int32

	// act
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)

		go func(cmd biblioteca.CreateLoan) {
			defer wg.Done()

			_, err := coordinator.CreateLoan(ctx, cmd)

			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, biblioteca.ErrUnavailable):
				unavailable.Add(1)
			default:
				unexpected.Add(1)
			}
		}(commands[i])
	}
	wg.Wait()

	// assert
	assert.Equal(t, int32(copies), successes.Load())
	assert.Equal(t, int32(attempts-copies), unavailable.Load())
	assert.Equal(t, int32(0), unexpected.Load())

	stored := getBook(t, store, book.ID)
	assert.Equal(t, 0, available(t, stored))
	assert.Equal(t, copies, activeLoanCount(t, store))
	assertCounterInvariant(t, stored, activeLoanCount(t, store))
}

func Test_ReturnBook_IsIdempotent_IncrementsAvailabilityOnlyOnce(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)
	ctx := context.Background()

	book := givenStoredBook(t, store, fixtures.GivenStockedBook(t, 3))

	loanID, err := coordinator.CreateLoan(ctx, fixtures.GivenCreateLoan(t, book.ID))
	require.NoError(t, err)

	// act
	require.NoError(t, coordinator.ReturnBook(ctx, loanID))
	require.NoError(t, coordinator.ReturnBook(ctx, loanID))

	// assert
	assert.Equal(t, 3, available(t, getBook(t, store, book.ID)))

	loan, err := store.GetLoan(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, biblioteca.LoanReturned, loan.Status)
}

func Test_ReturnBook_When_LoanIDEmpty(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)

	// act
	err := coordinator.ReturnBook(context.Background(), "  ")

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrValidation))
	assert.Equal(t, 0, store.TransactionCount())
}

func Test_ReturnBook_When_LoanDoesNotExist(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)

	// act
	err := coordinator.ReturnBook(context.Background(), "0198b5e3-0000-7000-8000-000000000000")

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrNotFound))
}

func Test_ReturnBook_When_StoredStatusIsCorrupt(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)
	ctx := context.Background()

	book := givenStoredBook(t, store, fixtures.GivenStockedBook(t, 3))

	// arrange a loan record carrying a status outside the lifecycle
	var loanID biblioteca.LoanID
	err := store.RunInTransaction(ctx, func(tx biblioteca.InventoryTx) error {
		var txErr error
		loanID, txErr = tx.CreateLoan(ctx, biblioteca.Loan{
			BookID: book.ID,
			Status: biblioteca.LoanStatus("lost"),
		})

		return txErr
	})
	require.NoError(t, err)

	// act
	err = coordinator.ReturnBook(ctx, loanID)

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrValidation))
}

func Test_ReturnBook_ClampsAvailabilityAtQuantity(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)
	ctx := context.Background()

	book := givenStoredBook(t, store, fixtures.GivenStockedBook(t, 3))

	loanID, err := coordinator.CreateLoan(ctx, fixtures.GivenCreateLoan(t, book.ID))
	require.NoError(t, err)

	// arrange drifted counters: available already back at quantity although
	// the loan is still active
	drifted := getBook(t, store, book.ID)
	full := 3
	drifted.AvailableQuantity = &full
	_, err = store.PutBook(ctx, drifted)
	require.NoError(t, err)

	// act
	err = coordinator.ReturnBook(ctx, loanID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, available(t, getBook(t, store, book.ID)))
}

func Test_CreateLoan_RetriesSerializationConflictsTransparently(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store,
		biblioteca.WithRetryOptions(biblioteca.WithBaseDelay(time.Millisecond)))
	ctx := context.Background()

	book := givenStoredBook(t, store, fixtures.GivenStockedBook(t, 3))
	store.FailConflicts(2)

	// act
	loanID, err := coordinator.CreateLoan(ctx, fixtures.GivenCreateLoan(t, book.ID))

	// assert
	require.NoError(t, err)
	assert.NotEmpty(t, loanID)
	assert.Equal(t, 3, store.TransactionCount())
	assert.Equal(t, 2, available(t, getBook(t, store, book.ID)))
}

func Test_CreateLoan_SurfacesConflictWhenRetriesExhausted(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store,
		biblioteca.WithRetryOptions(
			biblioteca.WithMaxAttempts(3),
			biblioteca.WithBaseDelay(time.Millisecond)))
	ctx := context.Background()

	book := givenStoredBook(t, store, fixtures.GivenStockedBook(t, 3))
	store.FailConflicts(5)

	// act
	_, err := coordinator.CreateLoan(ctx, fixtures.GivenCreateLoan(t, book.ID))

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrConflict))
	assert.Equal(t, 3, store.TransactionCount())
	assert.Equal(t, 3, available(t, getBook(t, store, book.ID)))
}

func Test_CreateLoan_With_CanceledContext_LeavesNoObservableChange(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store)

	book := givenStoredBook(t, store, fixtures.GivenStockedBook(t, 3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	_, err := coordinator.CreateLoan(ctx, fixtures.GivenCreateLoan(t, book.ID))

	// assert
	require.Error(t, err)
	assert.Equal(t, 3, available(t, getBook(t, store, book.ID)))

	loans, listErr := store.ListLoans(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, loans)
}

func Test_CoordinatorOptions_RejectInvalidConfiguration(t *testing.T) {
	store := memstore.NewStore()

	_, err := biblioteca.NewCoordinator(store, biblioteca.WithLoanHorizon(0))

	require.Error(t, err)
	assert.ErrorIs(t, err, biblioteca.ErrInvalidLoanHorizon)
}

func Test_CreateLoan_HonorsCustomLoanHorizon(t *testing.T) {
	// setup
	store := memstore.NewStore()
	coordinator := newCoordinator(t, store, biblioteca.WithLoanHorizon(7*24*time.Hour))
	ctx := context.Background()

	book := givenStoredBook(t, store, fixtures.GivenStockedBook(t, 3))

	cmd := fixtures.GivenCreateLoan(t, book.ID)
	cmd.DueAt = time.Now().AddDate(0, 0, 14)

	// act
	_, err := coordinator.CreateLoan(ctx, cmd)

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrValidation))
}

func newCoordinator(t testing.TB, store biblioteca.TransactionalStore, opts ...biblioteca.CoordinatorOption) *biblioteca.Coordinator {
	t.Helper()

	coordinator, err := biblioteca.NewCoordinator(store, opts...)
	require.NoError(t, err, "error in arranging test setup")

	return coordinator
}

func givenStoredBook(t testing.TB, store *memstore.Store, b biblioteca.Book) biblioteca.Book {
	t.Helper()

	stored, err := store.PutBook(context.Background(), b)
	require.NoError(t, err, "error in arranging test data")

	return stored
}

func getBook(t testing.TB, store *memstore.Store, id biblioteca.BookID) biblioteca.Book {
	t.Helper()

	book, err := store.GetBook(context.Background(), id)
	require.NoError(t, err)

	return book
}

func available(t testing.TB, b biblioteca.Book) int {
	t.Helper()

	value, defined := b.Available()
	require.True(t, defined, "book availability should be defined")

	return value
}

func activeLoanCount(t testing.TB, store *memstore.Store) int {
	t.Helper()

	loans, err := store.ListLoans(context.Background())
	require.NoError(t, err)

	count := 0
	for _, loan := range loans {
		if loan.Active() {
			count++
		}
	}

	return count
}

// assertCounterInvariant checks quantity - available == active loan count.
func assertCounterInvariant(t testing.TB, b biblioteca.Book, activeLoans int) {
	t.Helper()

	require.NotNil(t, b.Quantity)
	require.NotNil(t, b.AvailableQuantity)
	assert.Equal(t, *b.Quantity-*b.AvailableQuantity, activeLoans)
	assert.GreaterOrEqual(t, *b.AvailableQuantity, 0)
	assert.LessOrEqual(t, *b.AvailableQuantity, *b.Quantity)
}
