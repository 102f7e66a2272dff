package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

// UserRepo is a read-only view over the 'users' table.  Registration
// and credentials are handled by another service.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT id,email,role FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return r.scanOne(conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT id,email,role FROM users WHERE id=? LIMIT 1", id.String()))
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.ErrBuyerNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
