package postgresengine

import (
	"context"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/ramonpiresone/biblioteca"
)

// SearchBooks pushes the catalog search down to PostgreSQL: case-insensitive
// substring matching on the title or any ISBN, an optional availability
// filter, and the same title-ascending order the client-side fallback uses.
func (s *Store) SearchBooks(ctx context.Context, q biblioteca.SearchQuery) ([]biblioteca.Book, error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, operationSearchBooks, nil)

	books, err := s.searchBooksVia(ctx, s.db, q)
	s.observe(ctx, span, operationSearchBooks, start, err)

	if err != nil {
		return nil, err
	}

	s.logOperation(ctx, logMsgBooksSearched, logAttrCount, len(books), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return books, nil
}

func (s *Store) searchBooksVia(ctx context.Context, runner sqlRunner, q biblioteca.SearchQuery) ([]biblioteca.Book, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.booksTable()).
		Select(bookColumns...).
		Order(goqu.I(colTitle).Asc(), goqu.I(colCreatedAt).Asc(), goqu.I(colID).Asc())

	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := likePattern(text)
		selectStmt = selectStmt.Where(goqu.Or(
			goqu.I(colTitle).ILike(pattern),
			goqu.L("EXISTS (SELECT 1 FROM unnest("+colISBNs+") AS isbn WHERE isbn ILIKE ?)", pattern),
		))
	}

	if q.OnlyAvailable {
		// NULL counters fail the comparison, which excludes stub records.
		selectStmt = selectStmt.Where(goqu.I(colAvailableQuantity).Gt(0))
	}

	if q.Limit > 0 {
		selectStmt = selectStmt.Limit(uint(q.Limit))
	}

	sqlQuery, buildErr := s.toSQL(ctx, selectStmt)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operationSearchBooks, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	return s.collectBooks(ctx, rows)
}

// likePattern wraps the needle for substring matching, escaping the LIKE
// wildcard characters so user input matches literally.
func likePattern(text string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(text)

	return "%" + escaped + "%"
}
