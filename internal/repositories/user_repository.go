package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-core/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

const userColumns = `id, username, password_hash, avatar_url, avatar_media_id, created_at`

// UserRepository abstracts user persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (models.User, error)
	GetUser(ctx context.Context, userID int) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context, ids []int) ([]models.User, error)
	UpdateAvatar(ctx context.Context, userID int, avatarURL, avatarMediaID *string) (models.User, *string, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser inserts a user; a duplicate username yields ErrUsernameTaken.
func (r *UserRepo) CreateUser(ctx context.Context, username, passwordHash string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING `+userColumns, username, passwordHash)
	if pgCode(err) == pqUniqueViolation {
		return models.User{}, ErrUsernameTaken
	}
	return user, err
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByUsername fetches a user by its unique username.
func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListUsers returns the existing users among ids, ordered by id.
func (r *UserRepo) ListUsers(ctx context.Context, ids []int) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY id`, pq.Array(int64s(ids)))
	return users, err
}

// UpdateAvatar replaces the avatar and returns the previous media id so the caller can release it.
func (r *UserRepo) UpdateAvatar(ctx context.Context, userID int, avatarURL, avatarMediaID *string) (models.User, *string, error) {
	var (
		user     models.User
		previous *string
	)
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &previous, `SELECT avatar_media_id FROM users WHERE id=$1 FOR UPDATE`, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		return tx.GetContext(ctx, &user, `UPDATE users SET avatar_url=$2, avatar_media_id=$3 WHERE id=$1 RETURNING `+userColumns,
			userID, nullable(avatarURL), nullable(avatarMediaID))
	})
	if err != nil {
		return models.User{}, nil, err
	}
	return user, previous, nil
}
