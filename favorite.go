package biblioteca

import "time"

// Favorite marks a (user, book) pair. Favoriting never affects book counters;
// re-favoriting overwrites the timestamp and is not an error.
type Favorite struct {
	UserID      string
	BookID      BookID
	FavoritedAt time.Time
}
