package biblioteca_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonpiresone/biblioteca"
	"github.com/ramonpiresone/biblioteca/testutil/fixtures"
	"github.com/ramonpiresone/biblioteca/testutil/memstore"
	"github.com/ramonpiresone/biblioteca/testutil/testdoubles"
)

func Test_FavoriteAdd_CreatesStubForUnknownBook(t *testing.T) {
	// setup
	store := memstore.NewStore()
	favorites := newFavorites(t, store, store, newRegistry(t, store, newLookupStub()))
	ctx := context.Background()

	userID := fixtures.GivenUniqueUserID(t)
	incoming := fixtures.GivenStockedBook(t, 9)

	// act
	err := favorites.Add(ctx, userID, incoming)

	// assert
	require.NoError(t, err)

	stored := getBook(t, store, incoming.ID)
	assert.Equal(t, incoming.Title, stored.Title)
	assert.Nil(t, stored.Quantity, "favoriting must never set stock")
	assert.Nil(t, stored.AvailableQuantity)

	listed, err := favorites.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, incoming.ID, listed[0].ID)
}

func Test_FavoriteAdd_WhenBookKnown_KeepsRecordAndRefreshesLastAccess(t *testing.T) {
	// setup
	clock := fixtures.NewTickingClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), time.Second)
	store := memstore.NewStore(memstore.WithClock(clock.Now))
	favorites := newFavorites(t, store, store, newRegistry(t, store, newLookupStub()))
	ctx := context.Background()

	seeded := givenStoredBook(t, store, fixtures.GivenStockedBook(t, 4))
	accessedBefore := getBook(t, store, seeded.ID).LastAccessedAt

	// act
	err := favorites.Add(ctx, fixtures.GivenUniqueUserID(t), seeded)

	// assert
	require.NoError(t, err)

	stored := getBook(t, store, seeded.ID)
	assert.Equal(t, 4, available(t, stored), "favoriting a known book keeps its stock")
	assert.True(t, stored.LastAccessedAt.After(accessedBefore))
}

func Test_FavoriteAdd_IsIdempotent_RefreshingFavoritedAt(t *testing.T) {
	// setup
	clock := fixtures.NewTickingClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), time.Second)
	store := memstore.NewStore(memstore.WithClock(clock.Now))
	favorites := newFavorites(t, store, store, newRegistry(t, store, newLookupStub()))
	ctx := context.Background()

	userID := fixtures.GivenUniqueUserID(t)
	book := fixtures.GivenBook(t)

	// act
	require.NoError(t, favorites.Add(ctx, userID, book))

	first := favoritedAt(t, store, userID, book.ID)

	require.NoError(t, favorites.Add(ctx, userID, book))

	// assert
	entries, err := store.ListFavorites(ctx, userID)
	require.NoError(t, err)
	require.Len(t, entries, 1, "re-adding must not duplicate the favorite")
	assert.True(t, entries[0].FavoritedAt.After(first))
}

func Test_FavoriteAdd_ValidatesInput(t *testing.T) {
	// setup
	store := memstore.NewStore()
	favorites := newFavorites(t, store, store, newRegistry(t, store, newLookupStub()))
	ctx := context.Background()

	// act + assert
	err := favorites.Add(ctx, "  ", fixtures.GivenBook(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrValidation))

	err = favorites.Add(ctx, fixtures.GivenUniqueUserID(t), biblioteca.Book{Title: "No Identifier"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrValidation))
}

func Test_FavoriteRemove_DeletesTheFavorite(t *testing.T) {
	// setup
	store := memstore.NewStore()
	favorites := newFavorites(t, store, store, newRegistry(t, store, newLookupStub()))
	ctx := context.Background()

	userID := fixtures.GivenUniqueUserID(t)
	book := fixtures.GivenBook(t)
	require.NoError(t, favorites.Add(ctx, userID, book), "error in arranging test data")

	// act
	err := favorites.Remove(ctx, userID, book.ID)

	// assert
	require.NoError(t, err)

	listed, err := favorites.List(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func Test_FavoriteRemove_WhenAbsent_IsNoOpSuccess(t *testing.T) {
	// setup
	store := memstore.NewStore()
	favorites := newFavorites(t, store, store, newRegistry(t, store, newLookupStub()))

	// act
	err := favorites.Remove(context.Background(), fixtures.GivenUniqueUserID(t), "OL999M")

	// assert
	assert.NoError(t, err)
}

func Test_FavoriteList_OrdersByMostRecentlyFavorited(t *testing.T) {
	// setup
	clock := fixtures.NewTickingClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), time.Second)
	store := memstore.NewStore(memstore.WithClock(clock.Now))
	favorites := newFavorites(t, store, store, newRegistry(t, store, newLookupStub()))
	ctx := context.Background()

	userID := fixtures.GivenUniqueUserID(t)

	first := fixtures.GivenBook(t)
	second := fixtures.GivenBook(t)
	third := fixtures.GivenBook(t)

	for _, b := range []biblioteca.Book{first, second, third} {
		require.NoError(t, favorites.Add(ctx, userID, b), "error in arranging test data")
	}

	// act
	listed, err := favorites.List(ctx, userID)

	// assert
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, third.ID, listed[0].ID)
	assert.Equal(t, second.ID, listed[1].ID)
	assert.Equal(t, first.ID, listed[2].ID)
}

func Test_FavoriteList_ResolvesBooksInBoundedBatches(t *testing.T) {
	// setup
	clock := fixtures.NewTickingClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), time.Millisecond)
	store := memstore.NewStore(memstore.WithClock(clock.Now))
	reader := &countingBookReader{Store: store}
	favorites := newFavorites(t, store, reader, newRegistry(t, store, newLookupStub()))
	ctx := context.Background()

	userID := fixtures.GivenUniqueUserID(t)

	const total = 70

	added := make([]biblioteca.BookID, 0, total)
	for i := 0; i < total; i++ {
		b := fixtures.GivenBook(t)
		require.NoError(t, favorites.Add(ctx, userID, b), "error in arranging test data")
		added = append(added, b.ID)
	}

	// act
	listed, err := favorites.List(ctx, userID)

	// assert
	require.NoError(t, err)
	require.Len(t, listed, total)

	// most recently favorited first, regardless of batch boundaries
	for i, b := range listed {
		assert.Equal(t, added[total-1-i], b.ID)
	}

	assert.Equal(t, []int{30, 30, 10}, reader.batchSizes())
}

func Test_FavoriteList_SkipsFavoritesPointingAtMissingBooks(t *testing.T) {
	// setup
	store := memstore.NewStore()
	logger := testdoubles.NewLoggerSpy()
	favorites := newFavorites(t, store, store, newRegistry(t, store, newLookupStub()),
		biblioteca.WithFavoritesLogger(logger))
	ctx := context.Background()

	userID := fixtures.GivenUniqueUserID(t)

	kept := fixtures.GivenBook(t)
	require.NoError(t, favorites.Add(ctx, userID, kept), "error in arranging test data")

	// arrange a favorite whose book record vanished, bypassing Add
	err := store.PutFavorite(ctx, biblioteca.Favorite{UserID: userID, BookID: "OL0DELETEDM"})
	require.NoError(t, err, "error in arranging test data")

	// act
	listed, err := favorites.List(ctx, userID)

	// assert
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, kept.ID, listed[0].ID)
	assert.True(t, logger.HasRecord("warn", "favorite points at a missing book record"))
}

func Test_FavoriteList_WhenUserHasNone_ReturnsEmptySlice(t *testing.T) {
	// setup
	store := memstore.NewStore()
	favorites := newFavorites(t, store, store, newRegistry(t, store, newLookupStub()))

	// act
	listed, err := favorites.List(context.Background(), fixtures.GivenUniqueUserID(t))

	// assert
	require.NoError(t, err)
	assert.NotNil(t, listed)
	assert.Empty(t, listed)
}

func Test_FavoriteList_ValidatesUserID(t *testing.T) {
	store := memstore.NewStore()
	favorites := newFavorites(t, store, store, newRegistry(t, store, newLookupStub()))

	_, err := favorites.List(context.Background(), " ")

	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrValidation))
}

func newFavorites(
	t testing.TB,
	store biblioteca.FavoriteStore,
	books biblioteca.BookReader,
	registry *biblioteca.Registry,
	opts ...biblioteca.FavoritesOption,
) *biblioteca.Favorites {
	t.Helper()

	favorites, err := biblioteca.NewFavorites(store, books, registry, opts...)
	require.NoError(t, err, "error in arranging test setup")

	return favorites
}

func favoritedAt(t testing.TB, store *memstore.Store, userID string, id biblioteca.BookID) time.Time {
	t.Helper()

	entries, err := store.ListFavorites(context.Background(), userID)
	require.NoError(t, err)

	for _, entry := range entries {
		if entry.BookID == id {
			return entry.FavoritedAt
		}
	}

	t.Fatalf("favorite for book %s not found", id)

	return time.Time{}
}

// countingBookReader records the size of every multi-get batch.
type countingBookReader struct {
	*memstore.Store
	mu      sync.Mutex
	batches []int
}

func (r *countingBookReader) GetBooksByIDs(ctx context.Context, ids []biblioteca.BookID) ([]biblioteca.Book, error) {
	r.mu.Lock()
	r.batches = append(r.batches, len(ids))
	r.mu.Unlock()

	return r.Store.GetBooksByIDs(ctx, ids)
}

func (r *countingBookReader) batchSizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]int(nil), r.batches...)
}
