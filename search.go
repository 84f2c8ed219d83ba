package biblioteca

import (
	"context"
	"strings"
)

// defaultSearchFetchLimit bounds the fallback fetch when the store cannot
// push substring matching down to the backend.
const defaultSearchFetchLimit = 500

// SearchQuery describes one catalog search.
type SearchQuery struct {
	// Text matches case-insensitively as a substring of the title or of any
	// ISBN. Empty text matches every book.
	Text string

	// Limit caps the result count; zero or negative means no cap.
	Limit int

	// OnlyAvailable excludes books whose available counter is undefined or
	// not positive.
	OnlyAvailable bool
}

// Search is the read-only query surface over the book records: substring
// title/ISBN matching with an optional availability filter, ordered by title
// ascending with ties broken by insertion order. It has no side effects.
//
// Stores that implement BookSearcher get the query pushed down; for stores
// that can only do exact or prefix lookups the component falls back to a
// bounded fetch filtered client-side.
type Search struct {
	store      BookReader
	fetchLimit int
}

// SearchOption configures a Search component.
type SearchOption func(*Search) error

// WithSearchFetchLimit overrides the bounded-fetch size of the client-side
// fallback. Default: 500.
func WithSearchFetchLimit(limit int) SearchOption {
	return func(s *Search) error {
		if limit <= 0 {
			return NewValidationError("fetchLimit", "must be positive")
		}

		s.fetchLimit = limit

		return nil
	}
}

// NewSearch creates a Search component over the given book reader.
func NewSearch(store BookReader, opts ...SearchOption) (*Search, error) {
	search := &Search{
		store:      store,
		fetchLimit: defaultSearchFetchLimit,
	}

	for _, opt := range opts {
		if err := opt(search); err != nil {
			return nil, err
		}
	}

	return search, nil
}

// Find executes the query.
func (s *Search) Find(ctx context.Context, q SearchQuery) ([]Book, error) {
	if searcher, ok := s.store.(BookSearcher); ok {
		return searcher.SearchBooks(ctx, q)
	}

	books, err := s.store.ListBooks(ctx, s.fetchLimit)
	if err != nil {
		return nil, err
	}

	return FilterBooks(books, q), nil
}

// FilterBooks applies the query to an already ordered book slice. It is the
// client-side half of the search contract, exported so engines without
// backend matching can reuse it.
func FilterBooks(books []Book, q SearchQuery) []Book {
	matches := make([]Book, 0, len(books))

	for _, b := range books {
		if !matchesQuery(b, q) {
			continue
		}

		matches = append(matches, b)

		if q.Limit > 0 && len(matches) == q.Limit {
			break
		}
	}

	return matches
}

// matchesQuery reports whether one book satisfies the query text and
// availability filter.
func matchesQuery(b Book, q SearchQuery) bool {
	if q.OnlyAvailable && !b.Loanable() {
		return false
	}

	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return true
	}

	if strings.Contains(strings.ToLower(b.Title), text) {
		return true
	}

	for _, isbn := range b.ISBNs {
		if strings.Contains(strings.ToLower(isbn), text) {
			return true
		}
	}

	return false
}
