package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/ramonpiresone/biblioteca"
)

// favoriteConflictTarget is the composite key of the favorites table.
const favoriteConflictTarget = colUserID + ", " + colBookID

// PutFavorite marks the (user, book) pair as a favorite. Re-favoriting is not
// an error; it refreshes the favorited timestamp.
func (s *Store) PutFavorite(ctx context.Context, f biblioteca.Favorite) error {
	start := time.Now()
	ctx, span := s.startSpan(ctx, operationPutFavorite, map[string]string{
		logAttrUserID: f.UserID,
		logAttrBookID: f.BookID.String(),
	})

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(s.favoritesTable()).
		Rows(goqu.Record{
			colUserID:      f.UserID,
			colBookID:      f.BookID.String(),
			colFavoritedAt: goqu.L(exprNow),
		}).
		OnConflict(goqu.DoUpdate(favoriteConflictTarget, goqu.Record{colFavoritedAt: goqu.L(exprNow)}))

	err := s.execFavoriteStatement(ctx, insertStmt, operationPutFavorite)
	s.observe(ctx, span, operationPutFavorite, start, err)

	if err != nil {
		return err
	}

	s.logOperation(ctx, logMsgFavoriteSaved, logAttrUserID, f.UserID, logAttrBookID, f.BookID.String())

	return nil
}

// DeleteFavorite removes the (user, book) pair. Removing an absent favorite
// is a no-op, not an error.
func (s *Store) DeleteFavorite(ctx context.Context, userID string, id biblioteca.BookID) error {
	start := time.Now()
	ctx, span := s.startSpan(ctx, operationDeleteFavorite, map[string]string{
		logAttrUserID: userID,
		logAttrBookID: id.String(),
	})

	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(s.favoritesTable()).
		Where(goqu.Ex{colUserID: userID, colBookID: id.String()})

	err := s.execFavoriteStatement(ctx, deleteStmt, operationDeleteFavorite)
	s.observe(ctx, span, operationDeleteFavorite, start, err)

	if err != nil {
		return err
	}

	s.logOperation(ctx, logMsgFavoriteDeleted, logAttrUserID, userID, logAttrBookID, id.String())

	return nil
}

// ListFavorites returns the user's favorites, most recently favorited first.
func (s *Store) ListFavorites(ctx context.Context, userID string) ([]biblioteca.Favorite, error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, operationListFavorites, map[string]string{logAttrUserID: userID})

	favorites, err := s.listFavoritesVia(ctx, s.db, userID)
	s.observe(ctx, span, operationListFavorites, start, err)

	if err != nil {
		return nil, err
	}

	s.logOperation(ctx, logMsgFavoritesListed, logAttrUserID, userID, logAttrCount, len(favorites), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return favorites, nil
}

func (s *Store) execFavoriteStatement(ctx context.Context, stmt sqlBuilder, operation string) error {
	sqlQuery, buildErr := s.toSQL(ctx, stmt)
	if buildErr != nil {
		return buildErr
	}

	if _, execErr := s.executeStatement(ctx, s.db, operation, sqlQuery); execErr != nil {
		return execErr
	}

	return nil
}

func (s *Store) listFavoritesVia(ctx context.Context, runner sqlRunner, userID string) ([]biblioteca.Favorite, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.favoritesTable()).
		Select(colUserID, colBookID, colFavoritedAt).
		Where(goqu.Ex{colUserID: userID}).
		Order(goqu.I(colFavoritedAt).Desc(), goqu.I(colBookID).Asc())

	sqlQuery, buildErr := s.toSQL(ctx, selectStmt)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operationListFavorites, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	favorites := make([]biblioteca.Favorite, 0)

	for rows.Next() {
		var (
			rowUserID      string
			rowBookID      string
			rowFavoritedAt time.Time
		)

		if scanErr := rows.Scan(&rowUserID, &rowBookID, &rowFavoritedAt); scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr)

			return nil, errors.Join(biblioteca.ErrScanningRowFailed, scanErr)
		}

		favorites = append(favorites, biblioteca.Favorite{
			UserID:      rowUserID,
			BookID:      biblioteca.BookID(rowBookID),
			FavoritedAt: rowFavoritedAt,
		})
	}

	if iterErr := s.finishRows(ctx, rows); iterErr != nil {
		return nil, iterErr
	}

	return favorites, nil
}
