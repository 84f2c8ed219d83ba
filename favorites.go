package biblioteca

import (
	"context"
	"strings"
)

// Favorites maintains the per-user favorite sets. Favoriting keeps the
// referenced book alive through the Registry (lazy stub creation for unknown
// titles) but never touches stock, and listing resolves the favorited books
// in batches bounded by MaxBatchGetKeys.
type Favorites struct {
	store    FavoriteStore
	books    BookReader
	registry *Registry
	logger   Logger
}

// FavoritesOption configures a Favorites component.
type FavoritesOption func(*Favorites) error

// WithFavoritesLogger attaches a logger.
func WithFavoritesLogger(logger Logger) FavoritesOption {
	return func(f *Favorites) error {
		f.logger = logger

		return nil
	}
}

// NewFavorites creates a Favorites component. The registry handles the lazy
// book creation on Add; the book reader resolves favorites on List.
func NewFavorites(store FavoriteStore, books BookReader, registry *Registry, opts ...FavoritesOption) (*Favorites, error) {
	favorites := &Favorites{
		store:    store,
		books:    books,
		registry: registry,
	}

	for _, opt := range opts {
		if err := opt(favorites); err != nil {
			return nil, err
		}
	}

	return favorites, nil
}

// Add records the (user, book) pair. The book is ensured first: unknown
// titles get a stub record carrying descriptive fields only, known titles get
// their last-accessed timestamp refreshed. Re-adding an existing favorite
// overwrites the favorited timestamp and is not an error.
func (f *Favorites) Add(ctx context.Context, userID string, b Book) error {
	if strings.TrimSpace(userID) == "" {
		return NewValidationError("userId", "must not be empty")
	}

	if strings.TrimSpace(b.ID.String()) == "" {
		return NewValidationError("bookId", "must not be empty")
	}

	if _, err := f.registry.Ensure(ctx, b); err != nil {
		return err
	}

	return f.store.PutFavorite(ctx, Favorite{UserID: userID, BookID: b.ID})
}

// Remove deletes the pair; removing a non-existent favorite is a no-op
// success.
func (f *Favorites) Remove(ctx context.Context, userID string, id BookID) error {
	if strings.TrimSpace(userID) == "" {
		return NewValidationError("userId", "must not be empty")
	}

	if strings.TrimSpace(id.String()) == "" {
		return NewValidationError("bookId", "must not be empty")
	}

	return f.store.DeleteFavorite(ctx, userID, id)
}

// List returns the user's favorited books ordered by favorited time
// descending. Book resolution happens in batches of MaxBatchGetKeys keys and
// the results are reassembled in favorited order, not batch-return order.
// Favorites pointing at records that vanished are skipped.
func (f *Favorites) List(ctx context.Context, userID string) ([]Book, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, NewValidationError("userId", "must not be empty")
	}

	favorites, err := f.store.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(favorites) == 0 {
		return []Book{}, nil
	}

	ids := make([]BookID, 0, len(favorites))
	for _, favorite := range favorites {
		ids = append(ids, favorite.BookID)
	}

	booksByID := make(map[BookID]Book, len(ids))

	for start := 0; start < len(ids); start += MaxBatchGetKeys {
		end := start + MaxBatchGetKeys
		if end > len(ids) {
			end = len(ids)
		}

		batch, err := f.books.GetBooksByIDs(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}

		for _, b := range batch {
			booksByID[b.ID] = b
		}
	}

	books := make([]Book, 0, len(favorites))

	for _, favorite := range favorites {
		b, found := booksByID[favorite.BookID]
		if !found {
			if f.logger != nil {
				f.logger.Warn("favorite points at a missing book record",
					"user_id", userID, logAttrBookID, favorite.BookID.String())
			}

			continue
		}

		books = append(books, b)
	}

	return books, nil
}
