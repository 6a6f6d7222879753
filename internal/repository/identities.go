package repository

import (
	"context"

	"github.com/amora/dating-service/internal/domain"
)

var identitiesConfig = EntityConfig{
	TableName:             "identities",
	Columns:               []string{"id", "name", "created_at"},
	AutoManagedColumns:    []string{"id", "created_at"},
	DefaultTextFields:     []string{"name"},
	DefaultOrderBy:        "name",
	DefaultOrderDirection: "ASC",
}

const identityColumn = "identity_id"

// IdentityRepository stores the identities a user holds and the ones they
// are looking for.
type IdentityRepository struct {
	*BaseRepository[domain.Identity]
}

// NewIdentityRepository creates an IdentityRepository on db.
func NewIdentityRepository(db DBTX, opts ...Option) *IdentityRepository {
	return &IdentityRepository{BaseRepository: NewBaseRepository[domain.Identity](db, identitiesConfig, opts...)}
}

// ListForUser returns the identities the user holds.
func (r *IdentityRepository) ListForUser(ctx context.Context, userID int64) ([]*domain.Identity, error) {
	return r.FindByUserID(ctx, userID, UserIdentitiesTable, identityColumn)
}

// ListPreferredForUser returns the identities the user is looking for.
func (r *IdentityRepository) ListPreferredForUser(ctx context.Context, userID int64) ([]*domain.Identity, error) {
	return r.FindByUserID(ctx, userID, UserPreferredIdentitiesTable, identityColumn)
}

// Assign adds an identity to the user.
func (r *IdentityRepository) Assign(ctx context.Context, userID, identityID int64) error {
	_, err := r.AddUserRelationship(ctx, userID, identityID, UserIdentitiesTable, identityColumn)
	return err
}

// Unassign removes an identity from the user.
func (r *IdentityRepository) Unassign(ctx context.Context, userID, identityID int64) (bool, error) {
	return r.RemoveUserRelationship(ctx, userID, identityID, UserIdentitiesTable, identityColumn)
}

// AssignPreferred adds an identity to the user's preferences.
func (r *IdentityRepository) AssignPreferred(ctx context.Context, userID, identityID int64) error {
	_, err := r.AddUserRelationship(ctx, userID, identityID, UserPreferredIdentitiesTable, identityColumn)
	return err
}

// UnassignPreferred removes an identity from the user's preferences.
func (r *IdentityRepository) UnassignPreferred(ctx context.Context, userID, identityID int64) (bool, error) {
	return r.RemoveUserRelationship(ctx, userID, identityID, UserPreferredIdentitiesTable, identityColumn)
}
