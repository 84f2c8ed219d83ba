package biblioteca_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonpiresone/biblioteca"
	"github.com/ramonpiresone/biblioteca/testutil/fixtures"
	"github.com/ramonpiresone/biblioteca/testutil/memstore"
)

func Test_SearchFind_MatchesTitleSubstringCaseInsensitively(t *testing.T) {
	// setup
	store := memstore.NewStore()
	search := newSearch(t, store)
	ctx := context.Background()

	seedTitledBook(t, store, "The Pragmatic Programmer", "9780135957059")
	seedTitledBook(t, store, "Programming Pearls", "9780201657883")
	seedTitledBook(t, store, "Clean Architecture", "9780134494166")

	// act
	books, err := search.Find(ctx, biblioteca.SearchQuery{Text: "pROgRam"})

	// assert
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Programming Pearls", books[0].Title)
	assert.Equal(t, "The Pragmatic Programmer", books[1].Title)
}

func Test_SearchFind_MatchesISBNSubstring(t *testing.T) {
	// setup
	store := memstore.NewStore()
	search := newSearch(t, store)
	ctx := context.Background()

	wanted := seedTitledBook(t, store, "The Pragmatic Programmer", "9780135957059")
	seedTitledBook(t, store, "Clean Architecture", "9780134494166")

	// act
	books, err := search.Find(ctx, biblioteca.SearchQuery{Text: "0135957"})

	// assert
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, wanted.ID, books[0].ID)
}

func Test_SearchFind_WithEmptyText_ReturnsEverythingInTitleOrder(t *testing.T) {
	// setup
	store := memstore.NewStore()
	search := newSearch(t, store)
	ctx := context.Background()

	seedTitledBook(t, store, "Refactoring", "9780134757599")
	seedTitledBook(t, store, "Domain-Driven Design", "9780321125217")

	// act
	books, err := search.Find(ctx, biblioteca.SearchQuery{})

	// assert
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Domain-Driven Design", books[0].Title)
	assert.Equal(t, "Refactoring", books[1].Title)
}

func Test_SearchFind_OnlyAvailable_ExcludesExhaustedAndUndefinedStock(t *testing.T) {
	// setup
	store := memstore.NewStore()
	search := newSearch(t, store)
	ctx := context.Background()

	inStock := seedStockedTitledBook(t, store, "Go in Action", "9781617291784", 2)
	exhausted := seedStockedTitledBook(t, store, "Go in Practice", "9781633430075", 0)

	// a stub record never counts as available
	stub := fixtures.GivenBook(t)
	stub.Title = "Go Web Programming"
	givenStoredBook(t, store, stub)

	// act
	books, err := search.Find(ctx, biblioteca.SearchQuery{Text: "go", OnlyAvailable: true})

	// assert
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, inStock.ID, books[0].ID)
	assert.NotEqual(t, exhausted.ID, books[0].ID)
}

func Test_SearchFind_AppliesLimitAfterFiltering(t *testing.T) {
	// setup
	store := memstore.NewStore()
	search := newSearch(t, store)
	ctx := context.Background()

	seedTitledBook(t, store, "Effective Go A", "9780000000011")
	seedTitledBook(t, store, "Effective Go B", "9780000000012")
	seedTitledBook(t, store, "Effective Go C", "9780000000013")

	// act
	books, err := search.Find(ctx, biblioteca.SearchQuery{Text: "effective", Limit: 2})

	// assert
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Effective Go A", books[0].Title)
	assert.Equal(t, "Effective Go B", books[1].Title)
}

func Test_SearchFind_PushesQueryDownWhenTheStoreCanSearch(t *testing.T) {
	// setup
	pushdown := &searcherStoreStub{result: []biblioteca.Book{{ID: "OL1M", Title: "Backend Match"}}}
	search := newSearch(t, pushdown)
	ctx := context.Background()

	query := biblioteca.SearchQuery{Text: "match", Limit: 5, OnlyAvailable: true}

	// act
	books, err := search.Find(ctx, query)

	// assert
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, biblioteca.BookID("OL1M"), books[0].ID)
	assert.Equal(t, query, pushdown.gotQuery, "the full query reaches the backend")
	assert.Equal(t, 0, pushdown.listCalls, "pushdown must not fall back to listing")
}

func Test_FilterBooks_TableCases(t *testing.T) {
	two := 2
	zero := 0

	catalog := []biblioteca.Book{
		{ID: "OL1M", Title: "Alpha", ISBNs: []string{"9781111111111"}, Quantity: &two, AvailableQuantity: &two},
		{ID: "OL2M", Title: "Beta", ISBNs: []string{"9782222222222"}, Quantity: &two, AvailableQuantity: &zero},
		{ID: "OL3M", Title: "Gamma", ISBNs: []string{"9783333333333"}},
	}

	testCases := []struct {
		name    string
		query   biblioteca.SearchQuery
		wantIDs []biblioteca.BookID
	}{
		{
			name:    "empty query matches all in given order",
			query:   biblioteca.SearchQuery{},
			wantIDs: []biblioteca.BookID{"OL1M", "OL2M", "OL3M"},
		},
		{
			name:    "title substring",
			query:   biblioteca.SearchQuery{Text: "alph"},
			wantIDs: []biblioteca.BookID{"OL1M"},
		},
		{
			name:    "isbn substring",
			query:   biblioteca.SearchQuery{Text: "2222"},
			wantIDs: []biblioteca.BookID{"OL2M"},
		},
		{
			name:    "no match",
			query:   biblioteca.SearchQuery{Text: "delta"},
			wantIDs: []biblioteca.BookID{},
		},
		{
			name:    "surrounding whitespace is ignored",
			query:   biblioteca.SearchQuery{Text: "  beta  "},
			wantIDs: []biblioteca.BookID{"OL2M"},
		},
		{
			name:    "only available excludes exhausted and undefined",
			query:   biblioteca.SearchQuery{OnlyAvailable: true},
			wantIDs: []biblioteca.BookID{"OL1M"},
		},
		{
			name:    "limit cuts after filtering",
			query:   biblioteca.SearchQuery{Limit: 2},
			wantIDs: []biblioteca.BookID{"OL1M", "OL2M"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			matches := biblioteca.FilterBooks(catalog, tc.query)

			// assert
			gotIDs := make([]biblioteca.BookID, 0, len(matches))
			for _, b := range matches {
				gotIDs = append(gotIDs, b.ID)
			}

			assert.Equal(t, tc.wantIDs, gotIDs)
		})
	}
}

func Test_SearchOptions_RejectInvalidFetchLimit(t *testing.T) {
	store := memstore.NewStore()

	_, err := biblioteca.NewSearch(store, biblioteca.WithSearchFetchLimit(0))

	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrValidation))
}

func newSearch(t testing.TB, store biblioteca.BookReader, opts ...biblioteca.SearchOption) *biblioteca.Search {
	t.Helper()

	search, err := biblioteca.NewSearch(store, opts...)
	require.NoError(t, err, "error in arranging test setup")

	return search
}

func seedTitledBook(t testing.TB, store *memstore.Store, title string, isbn string) biblioteca.Book {
	t.Helper()

	b := fixtures.GivenBook(t)
	b.Title = title
	b.ISBNs = []string{isbn}

	return givenStoredBook(t, store, b)
}

func seedStockedTitledBook(t testing.TB, store *memstore.Store, title string, isbn string, quantity int) biblioteca.Book {
	t.Helper()

	b := fixtures.GivenStockedBook(t, quantity)
	b.Title = title
	b.ISBNs = []string{isbn}

	return givenStoredBook(t, store, b)
}

// searcherStoreStub implements BookReader plus the optional BookSearcher
// capability and records what reaches the backend.
type searcherStoreStub struct {
	result    []biblioteca.Book
	gotQuery  biblioteca.SearchQuery
	listCalls int
}

func (s *searcherStoreStub) SearchBooks(_ context.Context, q biblioteca.SearchQuery) ([]biblioteca.Book, error) {
	s.gotQuery = q

	return s.result, nil
}

func (s *searcherStoreStub) GetBook(_ context.Context, id biblioteca.BookID) (biblioteca.Book, error) {
	return biblioteca.Book{}, biblioteca.NewNotFoundError("book", id.String())
}

func (s *searcherStoreStub) GetBooksByIDs(_ context.Context, _ []biblioteca.BookID) ([]biblioteca.Book, error) {
	return nil, nil
}

func (s *searcherStoreStub) ListBooks(_ context.Context, _ int) ([]biblioteca.Book, error) {
	s.listCalls++

	return nil, nil
}
