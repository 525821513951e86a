package store

import (
	"context"

	"gorm.io/gorm"
)

// UserRepository reads and writes User rows.
type UserRepository struct {
	db *gorm.DB
}

// Create inserts a new user. A username or email collision returns ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error, "create user")
}

// GetByID loads a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "get user")
	}
	return &user, nil
}

// GetByUsername loads a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err, "get user by username")
	}
	return &user, nil
}

func (r *UserRepository) exists(ctx context.Context, column, value string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&User{}).Where(column+" = ?", value).Count(&count).Error
	if err != nil {
		return false, translate(err, "check "+column)
	}
	return count > 0, nil
}

// ExistsByUsername reports whether a user with this username exists.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

// ExistsByEmail reports whether a user with this email exists.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

// UpdateTheme persists the theme preference of a user.
func (r *UserRepository) UpdateTheme(ctx context.Context, id uint, theme string) error {
	result := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("theme_preference", theme)
	if result.Error != nil {
		return translate(result.Error, "update theme")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDs returns the ids of all users in ascending order.
func (r *UserRepository) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&User{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, translate(err, "list users")
	}
	return ids, nil
}
