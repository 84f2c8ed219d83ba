package sqliteengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/ramonpiresone/biblioteca"
)

// loanColumns is the canonical column order for loan selects and row scanning.
var loanColumns = []any{
	colID,
	colBookID,
	colBookTitle,
	colAdminID,
	colAdminName,
	colAdminEmail,
	colBorrowerName,
	colBorrowerNationalID,
	colLoanedAt,
	colDueAt,
	colStatus,
	colReturnedAt,
	colCreatedAt,
}

type loanRow struct {
	id                 string
	bookID             string
	bookTitle          string
	adminID            string
	adminName          string
	adminEmail         string
	borrowerName       string
	borrowerNationalID string
	loanedAt           string
	dueAt              string
	status             string
	returnedAt         sql.NullString
	createdAt          string
}

func (s *Store) scanLoan(ctx context.Context, rows *sql.Rows) (biblioteca.Loan, error) {
	var row loanRow

	scanErr := rows.Scan(
		&row.id,
		&row.bookID,
		&row.bookTitle,
		&row.adminID,
		&row.adminName,
		&row.adminEmail,
		&row.borrowerName,
		&row.borrowerNationalID,
		&row.loanedAt,
		&row.dueAt,
		&row.status,
		&row.returnedAt,
		&row.createdAt,
	)
	if scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, scanErr)

		return biblioteca.Loan{}, errors.Join(biblioteca.ErrScanningRowFailed, scanErr)
	}

	return s.loanFromRow(ctx, row)
}

func (s *Store) loanFromRow(ctx context.Context, row loanRow) (biblioteca.Loan, error) {
	loanedAt, loanedErr := parseTime(row.loanedAt)
	if loanedErr != nil {
		s.logError(ctx, logMsgParseTimeFailed, loanedErr, logAttrLoanID, row.id)

		return biblioteca.Loan{}, errors.Join(biblioteca.ErrScanningRowFailed, loanedErr)
	}

	dueAt, dueErr := parseTime(row.dueAt)
	if dueErr != nil {
		s.logError(ctx, logMsgParseTimeFailed, dueErr, logAttrLoanID, row.id)

		return biblioteca.Loan{}, errors.Join(biblioteca.ErrScanningRowFailed, dueErr)
	}

	createdAt, createdErr := parseTime(row.createdAt)
	if createdErr != nil {
		s.logError(ctx, logMsgParseTimeFailed, createdErr, logAttrLoanID, row.id)

		return biblioteca.Loan{}, errors.Join(biblioteca.ErrScanningRowFailed, createdErr)
	}

	loan := biblioteca.Loan{
		ID:        biblioteca.LoanID(row.id),
		BookID:    biblioteca.BookID(row.bookID),
		BookTitle: row.bookTitle,
		Admin: biblioteca.Identity{
			ID:    row.adminID,
			Name:  row.adminName,
			Email: row.adminEmail,
		},
		Borrower: biblioteca.Borrower{
			Name:       row.borrowerName,
			NationalID: biblioteca.NationalID(row.borrowerNationalID),
		},
		LoanedAt:  loanedAt,
		DueAt:     dueAt,
		Status:    biblioteca.LoanStatus(row.status),
		CreatedAt: createdAt,
	}

	if row.returnedAt.Valid {
		returnedAt, returnedErr := parseTime(row.returnedAt.String)
		if returnedErr != nil {
			s.logError(ctx, logMsgParseTimeFailed, returnedErr, logAttrLoanID, row.id)

			return biblioteca.Loan{}, errors.Join(biblioteca.ErrScanningRowFailed, returnedErr)
		}

		loan.ReturnedAt = &returnedAt
	}

	return loan, nil
}

func (s *Store) collectLoans(ctx context.Context, rows *sql.Rows) ([]biblioteca.Loan, error) {
	loans := make([]biblioteca.Loan, 0)

	for rows.Next() {
		loan, scanErr := s.scanLoan(ctx, rows)
		if scanErr != nil {
			return nil, scanErr
		}

		loans = append(loans, loan)
	}

	if iterErr := s.finishRows(ctx, rows); iterErr != nil {
		return nil, iterErr
	}

	return loans, nil
}

// GetLoan loads one loan record by its identifier.
func (s *Store) GetLoan(ctx context.Context, id biblioteca.LoanID) (biblioteca.Loan, error) {
	start := time.Now()

	loan, err := s.getLoanVia(ctx, s.db, id)
	if err != nil {
		return biblioteca.Loan{}, err
	}

	s.logOperation(ctx, logMsgLoanFetched, logAttrLoanID, loan.ID.String(), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return loan, nil
}

// ListLoans returns all loan records, active loans first and most recently
// created first within each group.
func (s *Store) ListLoans(ctx context.Context) ([]biblioteca.Loan, error) {
	start := time.Now()

	loans, err := s.listLoansVia(ctx, s.db, operationListLoans, nil)
	if err != nil {
		return nil, err
	}

	s.logOperation(ctx, logMsgLoansListed, logAttrCount, len(loans), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return loans, nil
}

// ListLoansByAdmin returns the loan records created by one admin, ordered
// like ListLoans.
func (s *Store) ListLoansByAdmin(ctx context.Context, adminID string) ([]biblioteca.Loan, error) {
	start := time.Now()

	loans, err := s.listLoansVia(ctx, s.db, operationListLoansByAdmin, goqu.Ex{colAdminID: adminID})
	if err != nil {
		return nil, err
	}

	s.logOperation(ctx, logMsgLoansListed, logAttrAdminID, adminID, logAttrCount, len(loans), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return loans, nil
}

func (s *Store) getLoanVia(ctx context.Context, runner sqlRunner, id biblioteca.LoanID) (biblioteca.Loan, error) {
	selectStmt := goqu.Dialect(dialectSQLite).
		From(s.loansTable()).
		Select(loanColumns...).
		Where(goqu.Ex{colID: id.String()}).
		Prepared(true)

	sqlQuery, args, buildErr := s.toSQL(ctx, selectStmt)
	if buildErr != nil {
		return biblioteca.Loan{}, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operationGetLoan, sqlQuery, args)
	if queryErr != nil {
		return biblioteca.Loan{}, queryErr
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		if iterErr := s.finishRows(ctx, rows); iterErr != nil {
			return biblioteca.Loan{}, iterErr
		}

		return biblioteca.Loan{}, biblioteca.NewNotFoundError("loan", id.String())
	}

	return s.scanLoan(ctx, rows)
}

// listLoansVia lists loans with an optional filter expression. The two legal
// status values sort active before returned, so plain status order plus
// created_at descending yields the circulation desk ordering.
func (s *Store) listLoansVia(ctx context.Context, runner sqlRunner, operation string, filter goqu.Ex) ([]biblioteca.Loan, error) {
	selectStmt := goqu.Dialect(dialectSQLite).
		From(s.loansTable()).
		Select(loanColumns...).
		Order(goqu.I(colStatus).Asc(), goqu.I(colCreatedAt).Desc(), goqu.I(colID).Desc()).
		Prepared(true)

	if filter != nil {
		selectStmt = selectStmt.Where(filter)
	}

	sqlQuery, args, buildErr := s.toSQL(ctx, selectStmt)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operation, sqlQuery, args)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	return s.collectLoans(ctx, rows)
}

// createLoanVia inserts the loan with a fresh UUIDv7 identifier and
// store-assigned loan and creation timestamps.
func (s *Store) createLoanVia(ctx context.Context, runner sqlRunner, l biblioteca.Loan) (biblioteca.LoanID, error) {
	uid, uidErr := uuid.NewV7()
	if uidErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, uidErr)

		return "", errors.Join(biblioteca.ErrBuildingQueryFailed, uidErr)
	}

	id := biblioteca.LoanID(uid.String())
	writeTime := formatTime(now())

	insertStmt := goqu.Dialect(dialectSQLite).
		Insert(s.loansTable()).
		Rows(goqu.Record{
			colID:                 id.String(),
			colBookID:             l.BookID.String(),
			colBookTitle:          l.BookTitle,
			colAdminID:            l.Admin.ID,
			colAdminName:          l.Admin.Name,
			colAdminEmail:         l.Admin.Email,
			colBorrowerName:       l.Borrower.Name,
			colBorrowerNationalID: l.Borrower.NationalID.String(),
			colLoanedAt:           writeTime,
			colDueAt:              formatTime(l.DueAt),
			colStatus:             string(l.Status),
			colReturnedAt:         nil,
			colCreatedAt:          writeTime,
		}).
		Prepared(true)

	sqlQuery, args, buildErr := s.toSQL(ctx, insertStmt)
	if buildErr != nil {
		return "", buildErr
	}

	if _, execErr := s.executeStatement(ctx, runner, operationCreateLoan, sqlQuery, args); execErr != nil {
		return "", execErr
	}

	return id, nil
}

// markLoanReturnedVia closes the loan. The caller guards the legal state
// transition, so a repeated call simply refreshes the returned timestamp.
func (s *Store) markLoanReturnedVia(ctx context.Context, runner sqlRunner, id biblioteca.LoanID) error {
	updateStmt := goqu.Dialect(dialectSQLite).
		Update(s.loansTable()).
		Set(goqu.Record{
			colStatus:     string(biblioteca.LoanReturned),
			colReturnedAt: formatTime(now()),
		}).
		Where(goqu.Ex{colID: id.String()}).
		Prepared(true)

	sqlQuery, args, buildErr := s.toSQL(ctx, updateStmt)
	if buildErr != nil {
		return buildErr
	}

	rowsAffected, execErr := s.executeStatement(ctx, runner, operationMarkLoanReturned, sqlQuery, args)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return biblioteca.NewNotFoundError("loan", id.String())
	}

	return nil
}
