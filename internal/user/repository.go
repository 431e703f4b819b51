package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/forum-service/internal/db"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Repository interface {
	Create(ctx context.Context, username, email *string, passwordHash string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username *string) (*User, error)
	UpdateRole(ctx context.Context, id *int64, role *string) error
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

const userColumns = `id, username, email, avatar_url, role, rank, posts_count, reputation, created_at, password_hash`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.AvatarURL,
		&u.Role,
		&u.Rank,
		&u.PostsCount,
		&u.Reputation,
		&u.CreatedAt,
		&u.PasswordHash,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *postgresRepository) Create(ctx context.Context, username, email *string, passwordHash string) (*User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, role, rank)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRow(ctx, query, username, email, passwordHash, RoleUser, DefaultRank))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, pgErr.ConstraintName)
		}
		return nil, fmt.Errorf("repository: failed to insert user: %w", err)
	}

	return u, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by id %d: %w", id, err)
	}

	return u, nil
}

func (r *postgresRepository) GetByUsername(ctx context.Context, username *string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by username: %w", err)
	}

	return u, nil
}

func (r *postgresRepository) UpdateRole(ctx context.Context, id *int64, role *string) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return fmt.Errorf("repository: failed to update user role: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Interface("user_id", id).Msg("repository: no user matched role update")
	}

	return nil
}
