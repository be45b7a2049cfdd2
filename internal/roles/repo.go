package roles

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db/models"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/enums"
)

// Repository exposes persistence for user-role assignments.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a roles repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert creates the assignment for a username or updates its role in place.
// Re-assigning the same role is a no-op at the row level.
func (r *Repository) Upsert(ctx context.Context, username string, role enums.RoleType) (*models.UserRole, error) {
	assignment := &models.UserRole{Username: username, RoleType: role}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"role_type"}),
		}).
		Create(assignment).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUsername(ctx, username)
}

// FindByUsername loads the assignment for one username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.UserRole, error) {
	var assignment models.UserRole
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// List returns every assignment ordered by username.
func (r *Repository) List(ctx context.Context) ([]models.UserRole, error) {
	var assignments []models.UserRole
	err := r.db.WithContext(ctx).
		Order("username ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// Delete removes the assignment for one username and reports whether a row
// existed.
func (r *Repository) Delete(ctx context.Context, username string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("username = ?", username).
		Delete(&models.UserRole{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
