package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/amora/dating-service/internal/domain"
)

// Junction tables linking users to items, keyed by item column.
const (
	UserHashtagsTable            = "user_hashtags"
	UserIdentitiesTable          = "user_identities"
	UserPreferredIdentitiesTable = "user_preferred_identities"
)

// allowedRelationships is the only set of junction tables and item columns
// the relationship helpers will interpolate.
var allowedRelationships = map[string]string{
	UserHashtagsTable:            "hashtag_id",
	UserIdentitiesTable:          "identity_id",
	UserPreferredIdentitiesTable: "identity_id",
}

const junctionUserColumn = "user_id"

func checkRelationship(table, column string) error {
	allowed, ok := allowedRelationships[table]
	if !ok {
		return domain.NewValidationError("user_table", fmt.Sprintf("relationship table %q is not allowed", table))
	}
	if allowed != column {
		return domain.NewValidationError("item_column", fmt.Sprintf("column %q is not allowed for %s", column, table))
	}
	return nil
}

// FindByUserID returns the rows linked to userID through junctionTable, where
// junctionColumn references this table's primary key.
func (r *BaseRepository[T]) FindByUserID(ctx context.Context, userID any, junctionTable, junctionColumn string) ([]*T, error) {
	if err := checkRelationship(junctionTable, junctionColumn); err != nil {
		return nil, err
	}
	order, err := r.cfg.aliasedOrderClause("t", "", "")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT t.* FROM %s t INNER JOIN %s j ON t.%s = j.%s WHERE j.%s = $1%s",
		r.cfg.TableName, junctionTable, r.cfg.PrimaryKey, junctionColumn, junctionUserColumn, order)
	return r.QueryMany(ctx, "find_by_user_id", query, userID)
}

// AddUserRelationship links userID to itemID in userTable and returns the
// junction row. Linking an existing pair returns the existing row.
func (r *BaseRepository[T]) AddUserRelationship(ctx context.Context, userID, itemID any, userTable, itemColumn string) (Record, error) {
	if err := checkRelationship(userTable, itemColumn); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`INSERT INTO %[1]s (%[2]s, %[3]s) VALUES ($1, $2)
		ON CONFLICT (%[2]s, %[3]s) DO UPDATE SET %[3]s = EXCLUDED.%[3]s
		RETURNING *`, userTable, junctionUserColumn, itemColumn)

	const op = "add_relationship"
	start := r.trace(op, 2)
	rows, err := r.db.Query(ctx, query, userID, itemID)
	var row map[string]any
	if err == nil {
		row, err = pgx.CollectOneRow(rows, pgx.RowToMap)
	}
	r.observe(op, start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to add relationship to %s: insert returned no row", userTable)
		}
		return nil, fmt.Errorf("failed to add relationship to %s: %w", userTable, err)
	}
	return Record(row), nil
}

// RemoveUserRelationship unlinks userID from itemID and reports whether a
// link was removed.
func (r *BaseRepository[T]) RemoveUserRelationship(ctx context.Context, userID, itemID any, userTable, itemColumn string) (bool, error) {
	if err := checkRelationship(userTable, itemColumn); err != nil {
		return false, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND %s = $2", userTable, junctionUserColumn, itemColumn)
	affected, err := r.Exec(ctx, "remove_relationship", query, userID, itemID)
	return affected > 0, err
}
