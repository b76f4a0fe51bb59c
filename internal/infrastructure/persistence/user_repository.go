package persistence

import (
	"context"
	"database/sql"

	"github.com/gridbase/gridbase/internal/domain/models"
)

// UserRepository handles storage of authenticated callers
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user and fills in the generated id
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (name, password_hash, created_at) VALUES (?, ?, NOW())
	`, u.Name, u.PasswordHash)
	if err != nil {
		return translateWriteError(err, "User", "user insert")
	}
	u.ID, err = res.LastInsertId()
	return err
}

// GetByName fetches a user by unique name; returns nil when absent
func (r *UserRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, password_hash, created_at FROM users WHERE name = ?
	`, name).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Get fetches a user by id; returns nil when absent
func (r *UserRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, password_hash, created_at FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
