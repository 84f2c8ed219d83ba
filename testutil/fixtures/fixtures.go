// Package fixtures provides test data builders shared by the catalog test
// suites.
package fixtures

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ramonpiresone/biblioteca"
)

// ValidNationalID is a checksum-valid CPF in its conventional formatting.
const ValidNationalID biblioteca.NationalID = "529.982.247-25"

var (
	uniqueSeq  atomic.Int64
	uniqueBase = rand.Int64N(900_000_000) + 100_000_000
)

func nextUnique() int64 {
	return uniqueBase + uniqueSeq.Add(1)
}

// GivenUniqueOLID returns a fresh bibliographic identifier.
func GivenUniqueOLID(t testing.TB) biblioteca.BookID {
	t.Helper()

	return biblioteca.BookID(fmt.Sprintf("OL%dM", nextUnique()))
}

// GivenUniqueISBN returns a fresh 13-digit ISBN-shaped string.
func GivenUniqueISBN(t testing.TB) string {
	t.Helper()

	return fmt.Sprintf("978%010d", nextUnique())
}

// GivenUniqueUserID returns a fresh opaque principal id.
func GivenUniqueUserID(t testing.TB) string {
	t.Helper()

	return fmt.Sprintf("user-%d", nextUnique())
}

// GivenValidNationalID generates a random CPF with correct check digits.
func GivenValidNationalID(t testing.TB) biblioteca.NationalID {
	t.Helper()

	digits := make([]int, 0, 11)
	for i := 0; i < 9; i++ {
		digits = append(digits, rand.IntN(10))
	}

	// The repeated-digit sequences are checksum-valid but rejected, so dodge
	// the one-in-a-billion degenerate draw.
	if allEqual(digits) {
		digits[8] = (digits[8] + 1) % 10
	}

	digits = append(digits, cpfCheckDigit(digits, 9))
	digits = append(digits, cpfCheckDigit(digits, 10))

	raw := ""
	for _, digit := range digits {
		raw += fmt.Sprintf("%d", digit)
	}

	id := biblioteca.NationalID(raw)
	require.True(t, id.Valid(), "error in arranging test data")

	return id
}

func allEqual(digits []int) bool {
	for _, digit := range digits {
		if digit != digits[0] {
			return false
		}
	}

	return true
}

func cpfCheckDigit(digits []int, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += digits[i] * (n + 1 - i)
	}

	digit := (sum * 10) % 11
	if digit == 10 {
		digit = 0
	}

	return digit
}

// GivenBook returns a book carrying descriptive fields only, the shape a
// stub record has.
func GivenBook(t testing.TB) biblioteca.Book {
	t.Helper()

	year := 1994

	return biblioteca.Book{
		ID:               GivenUniqueOLID(t),
		Title:            "Design Patterns",
		Authors:          []string{"Erich Gamma", "Richard Helm", "Ralph Johnson", "John Vlissides"},
		FirstPublishYear: &year,
		ISBNs:            []string{GivenUniqueISBN(t)},
		Covers: biblioteca.Covers{
			Small:  "https://covers.example.org/s/1.jpg",
			Medium: "https://covers.example.org/m/1.jpg",
			Large:  "https://covers.example.org/l/1.jpg",
		},
		Description: "Elements of reusable object-oriented software.",
	}
}

// GivenStockedBook returns a book with quantity and available counters both
// set to the given stock.
func GivenStockedBook(t testing.TB, quantity int) biblioteca.Book {
	t.Helper()

	b := GivenBook(t)
	available := quantity
	b.Quantity = &quantity
	b.AvailableQuantity = &available

	return b
}

// GivenBibliographicRecord returns lookup output matching GivenBook.
func GivenBibliographicRecord(t testing.TB) biblioteca.BibliographicRecord {
	t.Helper()

	b := GivenBook(t)

	return biblioteca.BibliographicRecord{
		OLID:             b.ID,
		Title:            b.Title,
		Authors:          b.Authors,
		ISBNs:            b.ISBNs,
		Covers:           b.Covers,
		FirstPublishYear: b.FirstPublishYear,
		Description:      b.Description,
	}
}

// GivenCreateLoan returns a valid loan-creation command for the book.
func GivenCreateLoan(t testing.TB, bookID biblioteca.BookID) biblioteca.CreateLoan {
	t.Helper()

	return biblioteca.CreateLoan{
		Admin: biblioteca.Identity{
			ID:    GivenUniqueUserID(t),
			Name:  "Ana Souza",
			Email: "ana.souza@example.org",
		},
		Borrower: biblioteca.Borrower{
			Name:       "Maria da Silva",
			NationalID: GivenValidNationalID(t),
		},
		BookID: bookID,
		DueAt:  time.Now().AddDate(0, 0, 14),
	}
}

// GivenLoan returns a store-shaped active loan for the book, leaving the ID
// and the server-assigned timestamps empty.
func GivenLoan(t testing.TB, book biblioteca.Book) biblioteca.Loan {
	t.Helper()

	cmd := GivenCreateLoan(t, book.ID)

	return biblioteca.Loan{
		BookID:    book.ID,
		BookTitle: book.Title,
		Admin:     cmd.Admin,
		Borrower:  cmd.Borrower,
		DueAt:     cmd.DueAt,
		Status:    biblioteca.LoanActive,
	}
}

// TickingClock is a deterministic time source that advances by a fixed step
// on every reading, so server-assigned timestamps come out strictly ordered.
type TickingClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewTickingClock creates a clock starting just after the given time.
func NewTickingClock(start time.Time, step time.Duration) *TickingClock {
	return &TickingClock{current: start, step: step}
}

// Now advances the clock and returns the new reading.
func (c *TickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(c.step)

	return c.current
}
