package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-engine/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts account and presence persistence.
type UserRepository interface {
	GetOrCreate(ctx context.Context, username string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetOnline(ctx context.Context, username string) error
	SetOffline(ctx context.Context, username string, lastSeen time.Time) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetOrCreate returns the user with the given username, creating it on
// first contact.
func (r *UserRepo) GetOrCreate(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.QueryRowxContext(ctx, `INSERT INTO users (username) VALUES ($1)
        ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
        RETURNING id, username, online, last_seen`, username).
		Scan(&user.ID, &user.Username, &user.Online, &user.LastSeen)
	return user, err
}

// GetByUsername fetches a single user.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username, online, last_seen FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListUsers returns all known users with their presence state.
func (r *UserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT id, username, online, last_seen FROM users ORDER BY username ASC`)
	return users, err
}

// SetOnline marks the user online.
func (r *UserRepo) SetOnline(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET online = TRUE WHERE username=$1`, username)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// SetOffline marks the user offline and records when they were last seen.
func (r *UserRepo) SetOffline(ctx context.Context, username string, lastSeen time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET online = FALSE, last_seen = $2 WHERE username=$1`, username, lastSeen)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
