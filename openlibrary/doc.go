// Package openlibrary resolves ISBNs against the Open Library Books API.
//
// Client implements the biblioteca.BibliographicLookup port with the
// jscmd=data view of GET /api/books. A hit maps to a fully populated
// biblioteca.BibliographicRecord; a missing bibkey surfaces as an error
// matching biblioteca.ErrNotFound, and transport failures, unexpected
// statuses and malformed payloads as errors matching biblioteca.ErrUpstream.
// The client never returns a partially populated record alongside a nil
// error.
//
// Usage:
//
//	client, err := openlibrary.NewClient(
//		openlibrary.WithTimeout(5*time.Second),
//		openlibrary.WithLogger(logger),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	record, err := client.ByISBN(ctx, "9780140328721")
package openlibrary
