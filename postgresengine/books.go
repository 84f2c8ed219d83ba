package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	jsoniter "github.com/json-iterator/go"

	"github.com/ramonpiresone/biblioteca"
	"github.com/ramonpiresone/biblioteca/postgresengine/internal/adapters"
)

// bookColumns is the canonical column order for book selects, upsert
// returning clauses, and row scanning.
var bookColumns = []any{
	colID,
	colTitle,
	colAuthors,
	colFirstPublishYear,
	colISBNs,
	colMetadata,
	colQuantity,
	colAvailableQuantity,
	colCreatedAt,
	colLastAccessedAt,
}

// bookMetadata is the jsonb document stored next to the scalar book columns.
// It carries the descriptive fields that are never filtered on in SQL.
type bookMetadata struct {
	Description string     `json:"description"`
	Covers      bookCovers `json:"covers"`
}

type bookCovers struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

func encodeBookMetadata(b biblioteca.Book) (string, error) {
	doc := bookMetadata{
		Description: b.Description,
		Covers: bookCovers{
			Small:  b.Covers.Small,
			Medium: b.Covers.Medium,
			Large:  b.Covers.Large,
		},
	}

	encoded, err := jsoniter.ConfigFastest.Marshal(doc)
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

// bookRow carries one scanned book row before conversion to the domain type.
// The nullable columns scan through database/sql null wrappers, which both
// driver families support.
type bookRow struct {
	id               string
	title            string
	authors          []string
	firstPublishYear sql.NullInt64
	isbns            []string
	metadata         []byte
	quantity         sql.NullInt64
	available        sql.NullInt64
	createdAt        time.Time
	lastAccessedAt   time.Time
}

func (s *Store) scanBook(ctx context.Context, rows adapters.DBRows) (biblioteca.Book, error) {
	var row bookRow

	scanErr := rows.Scan(
		&row.id,
		&row.title,
		&row.authors,
		&row.firstPublishYear,
		&row.isbns,
		&row.metadata,
		&row.quantity,
		&row.available,
		&row.createdAt,
		&row.lastAccessedAt,
	)
	if scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, scanErr)

		return biblioteca.Book{}, errors.Join(biblioteca.ErrScanningRowFailed, scanErr)
	}

	book := biblioteca.Book{
		ID:             biblioteca.BookID(row.id),
		Title:          row.title,
		Authors:        row.authors,
		ISBNs:          row.isbns,
		CreatedAt:      row.createdAt,
		LastAccessedAt: row.lastAccessedAt,
	}

	if row.firstPublishYear.Valid {
		year := int(row.firstPublishYear.Int64)
		book.FirstPublishYear = &year
	}

	if row.quantity.Valid {
		quantity := int(row.quantity.Int64)
		book.Quantity = &quantity
	}

	if row.available.Valid {
		available := int(row.available.Int64)
		book.AvailableQuantity = &available
	}

	if len(row.metadata) > 0 {
		var doc bookMetadata
		if decodeErr := jsoniter.ConfigFastest.Unmarshal(row.metadata, &doc); decodeErr != nil {
			s.logError(ctx, logMsgDecodeMetadataFailed, decodeErr, logAttrBookID, row.id)

			return biblioteca.Book{}, errors.Join(biblioteca.ErrScanningRowFailed, decodeErr)
		}

		book.Description = doc.Description
		book.Covers = biblioteca.Covers{
			Small:  doc.Covers.Small,
			Medium: doc.Covers.Medium,
			Large:  doc.Covers.Large,
		}
	}

	return book, nil
}

func (s *Store) collectBooks(ctx context.Context, rows adapters.DBRows) ([]biblioteca.Book, error) {
	books := make([]biblioteca.Book, 0)

	for rows.Next() {
		book, scanErr := s.scanBook(ctx, rows)
		if scanErr != nil {
			return nil, scanErr
		}

		books = append(books, book)
	}

	if iterErr := s.finishRows(ctx, rows); iterErr != nil {
		return nil, iterErr
	}

	return books, nil
}

// textArrayLiteral renders a Go string slice as a PostgreSQL text[] literal
// with single quotes doubled, so the fully interpolated statement stays safe.
func textArrayLiteral(values []string) exp.LiteralExpression {
	if len(values) == 0 {
		return goqu.L("'{}'::text[]")
	}

	quoted := make([]string, len(values))
	for i, value := range values {
		quoted[i] = "'" + strings.ReplaceAll(value, "'", "''") + "'"
	}

	return goqu.L("ARRAY[" + strings.Join(quoted, ", ") + "]::text[]")
}

// nullableInt renders an optional int as its value or SQL NULL.
func nullableInt(value *int) any {
	if value == nil {
		return nil
	}

	return *value
}

// GetBook loads one book record by its identifier.
func (s *Store) GetBook(ctx context.Context, id biblioteca.BookID) (biblioteca.Book, error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, operationGetBook, map[string]string{logAttrBookID: id.String()})

	book, err := s.getBookVia(ctx, s.db, id)
	s.observe(ctx, span, operationGetBook, start, err)

	if err != nil {
		return biblioteca.Book{}, err
	}

	s.logOperation(ctx, logMsgBookFetched, logAttrBookID, book.ID.String(), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return book, nil
}

// GetBooksByIDs loads the books for the given identifiers in request order,
// skipping unknown identifiers and collapsing duplicates. At most
// biblioteca.MaxBatchGetKeys identifiers are accepted per call.
func (s *Store) GetBooksByIDs(ctx context.Context, ids []biblioteca.BookID) ([]biblioteca.Book, error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, operationGetBooksByIDs, nil)

	books, err := s.getBooksByIDsVia(ctx, s.db, ids)
	s.observe(ctx, span, operationGetBooksByIDs, start, err)

	if err != nil {
		return nil, err
	}

	s.logOperation(ctx, logMsgBooksFetched, logAttrCount, len(books), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return books, nil
}

// ListBooks returns the catalog ordered by title ascending with insertion
// order as tiebreaker. A positive limit caps the result count.
func (s *Store) ListBooks(ctx context.Context, limit int) ([]biblioteca.Book, error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, operationListBooks, nil)

	books, err := s.listBooksVia(ctx, s.db, limit)
	s.observe(ctx, span, operationListBooks, start, err)

	if err != nil {
		return nil, err
	}

	s.logOperation(ctx, logMsgBooksListed, logAttrCount, len(books), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return books, nil
}

// PutBook inserts the book record or fully replaces the stored one. The
// creation time survives replacement and the access time is refreshed on
// every call; the returned record is the stored state.
func (s *Store) PutBook(ctx context.Context, b biblioteca.Book) (biblioteca.Book, error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, operationPutBook, map[string]string{logAttrBookID: b.ID.String()})

	stored, err := s.putBookVia(ctx, s.db, b)
	s.observe(ctx, span, operationPutBook, start, err)

	if err != nil {
		return biblioteca.Book{}, err
	}

	s.logOperation(ctx, logMsgBookUpserted, logAttrBookID, stored.ID.String(), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return stored, nil
}

// TouchBook refreshes the last access time of the book.
func (s *Store) TouchBook(ctx context.Context, id biblioteca.BookID) error {
	start := time.Now()
	ctx, span := s.startSpan(ctx, operationTouchBook, map[string]string{logAttrBookID: id.String()})

	err := s.touchBookVia(ctx, s.db, id)
	s.observe(ctx, span, operationTouchBook, start, err)

	if err != nil {
		return err
	}

	s.logOperation(ctx, logMsgBookTouched, logAttrBookID, id.String(), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return nil
}

func (s *Store) getBookVia(ctx context.Context, runner sqlRunner, id biblioteca.BookID) (biblioteca.Book, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.booksTable()).
		Select(bookColumns...).
		Where(goqu.Ex{colID: id.String()})

	sqlQuery, buildErr := s.toSQL(ctx, selectStmt)
	if buildErr != nil {
		return biblioteca.Book{}, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operationGetBook, sqlQuery)
	if queryErr != nil {
		return biblioteca.Book{}, queryErr
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		if iterErr := s.finishRows(ctx, rows); iterErr != nil {
			return biblioteca.Book{}, iterErr
		}

		return biblioteca.Book{}, biblioteca.NewNotFoundError("book", id.String())
	}

	return s.scanBook(ctx, rows)
}

func (s *Store) getBooksByIDsVia(ctx context.Context, runner sqlRunner, ids []biblioteca.BookID) ([]biblioteca.Book, error) {
	if len(ids) > biblioteca.MaxBatchGetKeys {
		return nil, biblioteca.NewValidationError("ids", "key count exceeds the multi-get limit")
	}

	if len(ids) == 0 {
		return make([]biblioteca.Book, 0), nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.booksTable()).
		Select(bookColumns...).
		Where(goqu.Ex{colID: keys})

	sqlQuery, buildErr := s.toSQL(ctx, selectStmt)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operationGetBooksByIDs, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	books, collectErr := s.collectBooks(ctx, rows)
	if collectErr != nil {
		return nil, collectErr
	}

	return orderByRequest(ids, books), nil
}

// orderByRequest rearranges the fetched books into request order, dropping
// duplicate identifiers and identifiers that matched no record.
func orderByRequest(ids []biblioteca.BookID, books []biblioteca.Book) []biblioteca.Book {
	byID := make(map[biblioteca.BookID]biblioteca.Book, len(books))
	for _, book := range books {
		byID[book.ID] = book
	}

	ordered := make([]biblioteca.Book, 0, len(books))
	seen := make(map[biblioteca.BookID]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}

		seen[id] = true

		if book, found := byID[id]; found {
			ordered = append(ordered, book)
		}
	}

	return ordered
}

func (s *Store) listBooksVia(ctx context.Context, runner sqlRunner, limit int) ([]biblioteca.Book, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.booksTable()).
		Select(bookColumns...).
		Order(goqu.I(colTitle).Asc(), goqu.I(colCreatedAt).Asc(), goqu.I(colID).Asc())

	if limit > 0 {
		selectStmt = selectStmt.Limit(uint(limit))
	}

	sqlQuery, buildErr := s.toSQL(ctx, selectStmt)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operationListBooks, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	return s.collectBooks(ctx, rows)
}

func (s *Store) putBookVia(ctx context.Context, runner sqlRunner, b biblioteca.Book) (biblioteca.Book, error) {
	metadataJSON, encodeErr := encodeBookMetadata(b)
	if encodeErr != nil {
		s.logError(ctx, logMsgEncodeMetadataFailed, encodeErr, logAttrBookID, b.ID.String())

		return biblioteca.Book{}, errors.Join(biblioteca.ErrBuildingQueryFailed, encodeErr)
	}

	updateRecord := goqu.Record{
		colTitle:             b.Title,
		colAuthors:           textArrayLiteral(b.Authors),
		colFirstPublishYear:  nullableInt(b.FirstPublishYear),
		colISBNs:             textArrayLiteral(b.ISBNs),
		colMetadata:          goqu.L(castJsonb, metadataJSON),
		colQuantity:          nullableInt(b.Quantity),
		colAvailableQuantity: nullableInt(b.AvailableQuantity),
		colLastAccessedAt:    goqu.L(exprNow),
	}

	insertRecord := goqu.Record{colID: b.ID.String(), colCreatedAt: goqu.L(exprNow)}
	for column, value := range updateRecord {
		insertRecord[column] = value
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(s.booksTable()).
		Rows(insertRecord).
		OnConflict(goqu.DoUpdate(colID, updateRecord)).
		Returning(bookColumns...)

	sqlQuery, buildErr := s.toSQL(ctx, insertStmt)
	if buildErr != nil {
		return biblioteca.Book{}, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operationPutBook, sqlQuery)
	if queryErr != nil {
		return biblioteca.Book{}, queryErr
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		if iterErr := s.finishRows(ctx, rows); iterErr != nil {
			return biblioteca.Book{}, iterErr
		}

		return biblioteca.Book{}, errors.Join(biblioteca.ErrQueryingStoreFailed, errors.New("upsert returned no row"))
	}

	return s.scanBook(ctx, rows)
}

func (s *Store) touchBookVia(ctx context.Context, runner sqlRunner, id biblioteca.BookID) error {
	updateStmt := goqu.Dialect(dialectPostgres).
		Update(s.booksTable()).
		Set(goqu.Record{colLastAccessedAt: goqu.L(exprNow)}).
		Where(goqu.Ex{colID: id.String()})

	sqlQuery, buildErr := s.toSQL(ctx, updateStmt)
	if buildErr != nil {
		return buildErr
	}

	rowsAffected, execErr := s.executeStatement(ctx, runner, operationTouchBook, sqlQuery)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return biblioteca.NewNotFoundError("book", id.String())
	}

	return nil
}

func (s *Store) updateAvailableQuantityVia(ctx context.Context, runner sqlRunner, id biblioteca.BookID, available int) error {
	updateStmt := goqu.Dialect(dialectPostgres).
		Update(s.booksTable()).
		Set(goqu.Record{colAvailableQuantity: available}).
		Where(goqu.Ex{colID: id.String()})

	sqlQuery, buildErr := s.toSQL(ctx, updateStmt)
	if buildErr != nil {
		return buildErr
	}

	rowsAffected, execErr := s.executeStatement(ctx, runner, operationUpdateAvailable, sqlQuery)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return biblioteca.NewNotFoundError("book", id.String())
	}

	return nil
}
