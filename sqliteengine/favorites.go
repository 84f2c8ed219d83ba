package sqliteengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/ramonpiresone/biblioteca"
)

// PutFavorite marks the (user, book) pair as a favorite. Re-favoriting is not
// an error; it refreshes the favorited timestamp. The update-then-insert pair
// runs in its own transaction so concurrent calls serialize.
func (s *Store) PutFavorite(ctx context.Context, f biblioteca.Favorite) error {
	err := s.inWriteTx(ctx, func(tx *sql.Tx) error {
		return s.putFavoriteVia(ctx, tx, f)
	})
	if err != nil {
		return err
	}

	s.logOperation(ctx, logMsgFavoriteSaved, logAttrUserID, f.UserID, logAttrBookID, f.BookID.String())

	return nil
}

// DeleteFavorite removes the (user, book) pair. Removing an absent favorite
// is a no-op, not an error.
func (s *Store) DeleteFavorite(ctx context.Context, userID string, id biblioteca.BookID) error {
	deleteStmt := goqu.Dialect(dialectSQLite).
		Delete(s.favoritesTable()).
		Where(goqu.Ex{colUserID: userID, colBookID: id.String()}).
		Prepared(true)

	sqlQuery, args, buildErr := s.toSQL(ctx, deleteStmt)
	if buildErr != nil {
		return buildErr
	}

	if _, execErr := s.executeStatement(ctx, s.db, operationDeleteFavorite, sqlQuery, args); execErr != nil {
		return execErr
	}

	s.logOperation(ctx, logMsgFavoriteDeleted, logAttrUserID, userID, logAttrBookID, id.String())

	return nil
}

// ListFavorites returns the user's favorites, most recently favorited first.
func (s *Store) ListFavorites(ctx context.Context, userID string) ([]biblioteca.Favorite, error) {
	start := time.Now()

	favorites, err := s.listFavoritesVia(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	s.logOperation(ctx, logMsgFavoritesListed, logAttrUserID, userID, logAttrCount, len(favorites), logAttrDurationMS, toMilliseconds(time.Since(start)))

	return favorites, nil
}

func (s *Store) putFavoriteVia(ctx context.Context, runner sqlRunner, f biblioteca.Favorite) error {
	stamp := formatTime(now())

	updateStmt := goqu.Dialect(dialectSQLite).
		Update(s.favoritesTable()).
		Set(goqu.Record{colFavoritedAt: stamp}).
		Where(goqu.Ex{colUserID: f.UserID, colBookID: f.BookID.String()}).
		Prepared(true)

	sqlQuery, args, buildErr := s.toSQL(ctx, updateStmt)
	if buildErr != nil {
		return buildErr
	}

	rowsAffected, execErr := s.executeStatement(ctx, runner, operationPutFavorite, sqlQuery, args)
	if execErr != nil {
		return execErr
	}

	if rowsAffected > 0 {
		return nil
	}

	insertStmt := goqu.Dialect(dialectSQLite).
		Insert(s.favoritesTable()).
		Rows(goqu.Record{
			colUserID:      f.UserID,
			colBookID:      f.BookID.String(),
			colFavoritedAt: stamp,
		}).
		Prepared(true)

	sqlQuery, args, buildErr = s.toSQL(ctx, insertStmt)
	if buildErr != nil {
		return buildErr
	}

	if _, execErr := s.executeStatement(ctx, runner, operationPutFavorite, sqlQuery, args); execErr != nil {
		return execErr
	}

	return nil
}

func (s *Store) listFavoritesVia(ctx context.Context, runner sqlRunner, userID string) ([]biblioteca.Favorite, error) {
	selectStmt := goqu.Dialect(dialectSQLite).
		From(s.favoritesTable()).
		Select(colUserID, colBookID, colFavoritedAt).
		Where(goqu.Ex{colUserID: userID}).
		Order(goqu.I(colFavoritedAt).Desc(), goqu.I(colBookID).Asc()).
		Prepared(true)

	sqlQuery, args, buildErr := s.toSQL(ctx, selectStmt)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := s.executeQuery(ctx, runner, operationListFavorites, sqlQuery, args)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	favorites := make([]biblioteca.Favorite, 0)

	for rows.Next() {
		var (
			rowUserID      string
			rowBookID      string
			rowFavoritedAt string
		)

		if scanErr := rows.Scan(&rowUserID, &rowBookID, &rowFavoritedAt); scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr)

			return nil, errors.Join(biblioteca.ErrScanningRowFailed, scanErr)
		}

		favoritedAt, parseErr := parseTime(rowFavoritedAt)
		if parseErr != nil {
			s.logError(ctx, logMsgParseTimeFailed, parseErr, logAttrBookID, rowBookID)

			return nil, errors.Join(biblioteca.ErrScanningRowFailed, parseErr)
		}

		favorites = append(favorites, biblioteca.Favorite{
			UserID:      rowUserID,
			BookID:      biblioteca.BookID(rowBookID),
			FavoritedAt: favoritedAt,
		})
	}

	if iterErr := s.finishRows(ctx, rows); iterErr != nil {
		return nil, iterErr
	}

	return favorites, nil
}
