package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Evgen-Mutagen/finledger/internal/model"
)

// UserRepository is the user directory. Lookups return (nil, nil) for unknown users.
type UserRepository interface {
	Create(ctx context.Context, draft model.UserDraft) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type userRepository struct {
	db *Database
}

func NewUserRepository(db *Database) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, draft model.UserDraft) (*model.User, error) {
	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	query := r.db.query(`INSERT INTO users (email, name, password_hash, created_at) VALUES ($1, $2, $3, $4) RETURNING id`)

	var id int64
	err := r.db.db.QueryRowContext(ctx, query, draft.Email, draft.Name, draft.PasswordHash, createdAt).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", r.db.dialect.classify(err))
	}
	return draft.Commit(id, createdAt), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := r.db.query(`SELECT id, email, name, password_hash, created_at FROM users WHERE email = $1`)
	return r.scanOne(r.db.db.QueryRowContext(ctx, query, email))
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := r.db.query(`SELECT id, email, name, password_hash, created_at FROM users WHERE id = $1`)
	return r.scanOne(r.db.db.QueryRowContext(ctx, query, id))
}

func (r *userRepository) scanOne(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
