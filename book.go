package biblioteca

import "time"

// BookID is the canonical key of a book record: the external bibliographic
// edition/work identifier (an Open Library OLID such as "OL7353617M").
type BookID string

func (id BookID) String() string {
	return string(id)
}

// Covers holds the cover image URLs for a book in the three sizes the
// bibliographic source publishes.
type Covers struct {
	Small  string
	Medium string
	Large  string
}

// Book is the canonical record for a known title. The counter pair is nil on
// stub records created by favoriting; such records are not loanable until an
// admin registration supplies a quantity.
//
// Invariant: whenever both counters are set, 0 <= AvailableQuantity <= Quantity
// after every committed mutation. Counters are mutated only by the Coordinator
// and by the Registry stock policy, never by a descriptive merge.
type Book struct {
	ID                BookID
	Title             string
	Authors           []string
	FirstPublishYear  *int
	ISBNs             []string
	Covers            Covers
	Description       string
	Quantity          *int
	AvailableQuantity *int
	CreatedAt         time.Time
	LastAccessedAt    time.Time
}

// Stocked reports whether an admin has ever supplied a quantity for this book.
func (b Book) Stocked() bool {
	return b.Quantity != nil
}

// Available returns the available copy count and whether it is defined at all.
func (b Book) Available() (int, bool) {
	if b.AvailableQuantity == nil {
		return 0, false
	}

	return *b.AvailableQuantity, true
}

// Loanable reports whether a loan may be admitted against this book: the
// available counter must be defined and positive.
func (b Book) Loanable() bool {
	available, defined := b.Available()

	return defined && available > 0
}

// WithoutCounters returns a copy of the book with the counter pair cleared.
// Used when favoriting stores a stub record, which must never carry stock.
func (b Book) WithoutCounters() Book {
	b.Quantity = nil
	b.AvailableQuantity = nil

	return b
}

// mergeDescriptive applies the incoming descriptive fields onto the stored
// book, last-write-wins but non-destructive: a zero-valued incoming field
// leaves the stored value untouched. Counters are not part of a descriptive
// merge and are never modified here.
func mergeDescriptive(stored Book, incoming Book) Book {
	if incoming.Title != "" {
		stored.Title = incoming.Title
	}

	if len(incoming.Authors) > 0 {
		stored.Authors = incoming.Authors
	}

	if incoming.FirstPublishYear != nil {
		stored.FirstPublishYear = incoming.FirstPublishYear
	}

	if len(incoming.ISBNs) > 0 {
		stored.ISBNs = incoming.ISBNs
	}

	if incoming.Covers.Small != "" {
		stored.Covers.Small = incoming.Covers.Small
	}

	if incoming.Covers.Medium != "" {
		stored.Covers.Medium = incoming.Covers.Medium
	}

	if incoming.Covers.Large != "" {
		stored.Covers.Large = incoming.Covers.Large
	}

	if incoming.Description != "" {
		stored.Description = incoming.Description
	}

	return stored
}

// applyQuantity applies a newly supplied total quantity to a book.
//
// First stock for a stub: availableQuantity starts at the full quantity.
// Restock of a stocked book: availableQuantity moves by the quantity delta so
// that active-loan accounting survives the update, clamped to [0, newQuantity].
func applyQuantity(stored Book, newQuantity int) Book {
	if newQuantity < 0 {
		newQuantity = 0
	}

	newAvailable := newQuantity

	if stored.Stocked() {
		delta := newQuantity - *stored.Quantity

		available, defined := stored.Available()
		if defined {
			newAvailable = available + delta
		}

		if newAvailable < 0 {
			newAvailable = 0
		}

		if newAvailable > newQuantity {
			newAvailable = newQuantity
		}
	}

	stored.Quantity = &newQuantity
	stored.AvailableQuantity = &newAvailable

	return stored
}
