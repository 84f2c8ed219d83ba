package sqliteengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"

	"github.com/ramonpiresone/biblioteca"
)

// bookColumns is the canonical column order for book selects and row scanning.
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

// bookMetadata is the JSON document stored next to the scalar book columns.
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

// encodeStrings renders a string slice as a JSON array, nil as the empty
// array.
func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}

	encoded, err := jsoniter.ConfigFastest.Marshal(values)
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

func decodeStrings(encoded string) ([]string, error) {
	values := make([]string, 0)
	if err := jsoniter.ConfigFastest.UnmarshalFromString(encoded, &values); err != nil {
		return nil, err
	}

	return values, nil
}

func normalizeStrings(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}

// nullableInt renders an optional int as its value or SQL NULL.
func nullableInt(value *int) any {
	if value == nil {
		return nil
	}

	return *value
}

// bookRow carries one scanned book row before conversion to the domain type.
type bookRow struct {
	id               string
	title            string
	authorsJSON      string
	firstPublishYear sql.NullInt64
	isbnsJSON        string
	metadataJSON     string
	quantity         sql.NullInt64
	available        sql.NullInt64
	createdAt        string
	lastAccessedAt   string
}

func (s *Store) scanBook(ctx context.Context, rows *sql.Rows) (biblioteca.Book, error) {
	var row bookRow

	scanErr := rows.Scan(
		&row.id,
		&row.title,
		&row.authorsJSON,
		&row.firstPublishYear,
		&row.isbnsJSON,
		&row.metadataJSON,
		&row.quantity,
		&row.available,
		&row.createdAt,
		&row.lastAccessedAt,
	)
	if scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, scanErr)

		return biblioteca.Book{}, errors.Join(biblioteca.ErrScanningRowFailed, scanErr)
	}

	return s.bookFromRow(ctx, row)
}

func (s *Store) bookFromRow(ctx context.Context, row bookRow) (biblioteca.Book, error) {
	authors, authorsErr := decodeStrings(row.authorsJSON)
	if authorsErr != nil {
		s.logError(ctx, logMsgDecodeColumnFailed, authorsErr, logAttrBookID, row.id)

		return biblioteca.Book{}, errors.Join(biblioteca.ErrScanningRowFailed, authorsErr)
	}

	isbns, isbnsErr := decodeStrings(row.isbnsJSON)
	if isbnsErr != nil {
		s.logError(ctx, logMsgDecodeColumnFailed, isbnsErr, logAttrBookID, row.id)

		return biblioteca.Book{}, errors.Join(biblioteca.ErrScanningRowFailed, isbnsErr)
	}

	createdAt, createdErr := parseTime(row.createdAt)
	if createdErr != nil {
		s.logError(ctx, logMsgParseTimeFailed, createdErr, logAttrBookID, row.id)

		return biblioteca.Book{}, errors.Join(biblioteca.ErrScanningRowFailed, createdErr)
	}

	lastAccessedAt, accessedErr := parseTime(row.lastAccessedAt)
	if accessedErr != nil {
		s.logError(ctx, logMsgParseTimeFailed, accessedErr, logAttrBookID, row.id)

		return biblioteca.Book{}, errors.Join(biblioteca.ErrScanningRowFailed, accessedErr)
	}

	book := biblioteca.Book{
		ID:             biblioteca.BookID(row.id),
		Title:          row.title,
		Authors:        authors,
		ISBNs:          isbns,
		CreatedAt:      createdAt,
		LastAccessedAt: lastAccessedAt,
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

	if row.metadataJSON != "" {
		var doc bookMetadata
		if decodeErr := jsoniter.ConfigFastest.UnmarshalFromString(row.metadataJSON, &doc); decodeErr != nil {
			s.logError(ctx, logMsgDecodeColumnFailed, decodeErr, logAttrBookID, row.id)

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

func (s *Store) collectBooks(ctx context.Context, rows *sql.Rows) ([]biblioteca.Book, error) {
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

// GetBook loads one book record by its identifier.
func (s *Store) GetBook(ctx context.Context, id biblioteca.BookID) (biblioteca.Book, error) {
	start := time.Now()

	book, err := s.getBookVia(ctx, s.db, id)
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

	books, err := s.getBooksByIDsVia(ctx, s.db, ids)
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

	books, err := s.listBooksVia(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}

	s.logOperation(ctx, logMsgBooksListed, logAttrCount, len(books), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return books, nil
}

// PutBook inserts the book record or fully replaces the stored one. The
// creation time survives replacement and the access time is refreshed on
// every call; the returned record is the stored state. The read-then-write
// runs in its own transaction so concurrent upserts serialize.
func (s *Store) PutBook(ctx context.Context, b biblioteca.Book) (biblioteca.Book, error) {
	start := time.Now()

	var stored biblioteca.Book

	err := s.inWriteTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		stored, txErr = s.putBookVia(ctx, tx, b)

		return txErr
	})
	if err != nil {
		return biblioteca.Book{}, err
	}

	s.logOperation(ctx, logMsgBookUpserted, logAttrBookID, stored.ID.String(), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return stored, nil
}

// TouchBook refreshes the last access time of the book.
func (s *Store) TouchBook(ctx context.Context, id biblioteca.BookID) error {
	start := time.Now()

	if err := s.touchBookVia(ctx, s.db, id); err != nil {
		return err
	}

	s.logOperation(ctx, logMsgBookTouched, logAttrBookID, id.String(), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return nil
}

func (s *Store) getBookVia(ctx context.Context, runner sqlRunner, id biblioteca.BookID) (biblioteca.Book, error) {
	selectStmt := goqu.Dialect(dialectSQLite).
		From(s.booksTable()).
		Select(bookColumns...).
		Where(goqu.Ex{colID: id.String()}).
		Prepared(true)

	sqlQuery, args, buildErr := s.toSQL(ctx, selectStmt)
	if buildErr != nil {
		return biblioteca.Book{}, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operationGetBook, sqlQuery, args)
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

	selectStmt := goqu.Dialect(dialectSQLite).
		From(s.booksTable()).
		Select(bookColumns...).
		Where(goqu.Ex{colID: keys}).
		Prepared(true)

	sqlQuery, args, buildErr := s.toSQL(ctx, selectStmt)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operationGetBooksByIDs, sqlQuery, args)
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
	selectStmt := goqu.Dialect(dialectSQLite).
		From(s.booksTable()).
		Select(bookColumns...).
		Order(goqu.I(colTitle).Asc(), goqu.I(colCreatedAt).Asc(), goqu.I(colID).Asc()).
		Prepared(true)

	if limit > 0 {
		selectStmt = selectStmt.Limit(uint(limit))
	}

	sqlQuery, args, buildErr := s.toSQL(ctx, selectStmt)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operationListBooks, sqlQuery, args)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	return s.collectBooks(ctx, rows)
}

// putBookVia upserts the record as a read-then-write: the stored creation
// time survives, everything else is replaced. The caller provides the
// transaction that makes the two statements atomic.
func (s *Store) putBookVia(ctx context.Context, runner sqlRunner, b biblioteca.Book) (biblioteca.Book, error) {
	authorsJSON, authorsErr := encodeStrings(b.Authors)
	if authorsErr != nil {
		s.logError(ctx, logMsgEncodeColumnFailed, authorsErr, logAttrBookID, b.ID.String())

		return biblioteca.Book{}, errors.Join(biblioteca.ErrBuildingQueryFailed, authorsErr)
	}

	isbnsJSON, isbnsErr := encodeStrings(b.ISBNs)
	if isbnsErr != nil {
		s.logError(ctx, logMsgEncodeColumnFailed, isbnsErr, logAttrBookID, b.ID.String())

		return biblioteca.Book{}, errors.Join(biblioteca.ErrBuildingQueryFailed, isbnsErr)
	}

	metadataJSON, metadataErr := encodeBookMetadata(b)
	if metadataErr != nil {
		s.logError(ctx, logMsgEncodeColumnFailed, metadataErr, logAttrBookID, b.ID.String())

		return biblioteca.Book{}, errors.Join(biblioteca.ErrBuildingQueryFailed, metadataErr)
	}

	writeTime := now()

	record := goqu.Record{
		colTitle:             b.Title,
		colAuthors:           authorsJSON,
		colFirstPublishYear:  nullableInt(b.FirstPublishYear),
		colISBNs:             isbnsJSON,
		colMetadata:          metadataJSON,
		colQuantity:          nullableInt(b.Quantity),
		colAvailableQuantity: nullableInt(b.AvailableQuantity),
		colLastAccessedAt:    formatTime(writeTime),
	}

	existingCreatedAt, exists, lookupErr := s.lookupBookCreatedAt(ctx, runner, b.ID)
	if lookupErr != nil {
		return biblioteca.Book{}, lookupErr
	}

	createdAt := writeTime
	if exists {
		createdAt = existingCreatedAt

		updateStmt := goqu.Dialect(dialectSQLite).
			Update(s.booksTable()).
			Set(record).
			Where(goqu.Ex{colID: b.ID.String()}).
			Prepared(true)

		sqlQuery, args, buildErr := s.toSQL(ctx, updateStmt)
		if buildErr != nil {
			return biblioteca.Book{}, buildErr
		}

		if _, execErr := s.executeStatement(ctx, runner, operationPutBook, sqlQuery, args); execErr != nil {
			return biblioteca.Book{}, execErr
		}
	} else {
		record[colID] = b.ID.String()
		record[colCreatedAt] = formatTime(createdAt)

		insertStmt := goqu.Dialect(dialectSQLite).
			Insert(s.booksTable()).
			Rows(record).
			Prepared(true)

		sqlQuery, args, buildErr := s.toSQL(ctx, insertStmt)
		if buildErr != nil {
			return biblioteca.Book{}, buildErr
		}

		if _, execErr := s.executeStatement(ctx, runner, operationPutBook, sqlQuery, args); execErr != nil {
			return biblioteca.Book{}, execErr
		}
	}

	stored := b
	stored.Authors = normalizeStrings(b.Authors)
	stored.ISBNs = normalizeStrings(b.ISBNs)
	stored.CreatedAt = createdAt
	stored.LastAccessedAt = writeTime

	return stored, nil
}

// lookupBookCreatedAt reads the stored creation time of the book, fully
// consuming the result so the caller can issue the next statement on the
// same transaction.
func (s *Store) lookupBookCreatedAt(ctx context.Context, runner sqlRunner, id biblioteca.BookID) (time.Time, bool, error) {
	selectStmt := goqu.Dialect(dialectSQLite).
		From(s.booksTable()).
		Select(colCreatedAt).
		Where(goqu.Ex{colID: id.String()}).
		Prepared(true)

	sqlQuery, args, buildErr := s.toSQL(ctx, selectStmt)
	if buildErr != nil {
		return time.Time{}, false, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operationPutBook, sqlQuery, args)
	if queryErr != nil {
		return time.Time{}, false, queryErr
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		if iterErr := s.finishRows(ctx, rows); iterErr != nil {
			return time.Time{}, false, iterErr
		}

		return time.Time{}, false, nil
	}

	var createdAtText string
	if scanErr := rows.Scan(&createdAtText); scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, scanErr)

		return time.Time{}, false, errors.Join(biblioteca.ErrScanningRowFailed, scanErr)
	}

	createdAt, parseErr := parseTime(createdAtText)
	if parseErr != nil {
		s.logError(ctx, logMsgParseTimeFailed, parseErr, logAttrBookID, id.String())

		return time.Time{}, false, errors.Join(biblioteca.ErrScanningRowFailed, parseErr)
	}

	return createdAt, true, nil
}

func (s *Store) touchBookVia(ctx context.Context, runner sqlRunner, id biblioteca.BookID) error {
	updateStmt := goqu.Dialect(dialectSQLite).
		Update(s.booksTable()).
		Set(goqu.Record{colLastAccessedAt: formatTime(now())}).
		Where(goqu.Ex{colID: id.String()}).
		Prepared(true)

	sqlQuery, args, buildErr := s.toSQL(ctx, updateStmt)
	if buildErr != nil {
		return buildErr
	}

	rowsAffected, execErr := s.executeStatement(ctx, runner, operationTouchBook, sqlQuery, args)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return biblioteca.NewNotFoundError("book", id.String())
	}

	return nil
}

func (s *Store) updateAvailableQuantityVia(ctx context.Context, runner sqlRunner, id biblioteca.BookID, available int) error {
	updateStmt := goqu.Dialect(dialectSQLite).
		Update(s.booksTable()).
		Set(goqu.Record{colAvailableQuantity: available}).
		Where(goqu.Ex{colID: id.String()}).
		Prepared(true)

	sqlQuery, args, buildErr := s.toSQL(ctx, updateStmt)
	if buildErr != nil {
		return buildErr
	}

	rowsAffected, execErr := s.executeStatement(ctx, runner, operationUpdateAvailable, sqlQuery, args)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return biblioteca.NewNotFoundError("book", id.String())
	}

	return nil
}
