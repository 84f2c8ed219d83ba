package biblioteca

import "context"

// BibliographicRecord is the descriptive data an external bibliographic
// source returns for one edition. Optional attributes stay nil/empty when the
// source does not publish them.
type BibliographicRecord struct {
	OLID             BookID
	Title            string
	Authors          []string
	ISBNs            []string
	Covers           Covers
	FirstPublishYear *int
	Description      string
}

// Book converts the record into a book carrying descriptive fields only.
func (r BibliographicRecord) Book() Book {
	return Book{
		ID:               r.OLID,
		Title:            r.Title,
		Authors:          r.Authors,
		FirstPublishYear: r.FirstPublishYear,
		ISBNs:            r.ISBNs,
		Covers:           r.Covers,
		Description:      r.Description,
	}
}

// BibliographicLookup resolves an ISBN against an external bibliographic
// source. Implementations return an error matching ErrNotFound when the
// source has no record for the ISBN, and an error matching ErrUpstream for
// transport failures or malformed responses. A nil error guarantees a fully
// populated record, never a partial one.
type BibliographicLookup interface {
	ByISBN(ctx context.Context, isbn string) (BibliographicRecord, error)
}
