package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

// UserRepository provides data access for users and their sessions.
type UserRepository struct {
	BaseRepository
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = GenerateID()
	}
	user.CreatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.IsAdmin, user.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, is_admin, created_at
		FROM users WHERE id = ?
	`, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, is_admin, created_at
		FROM users WHERE email = ?
	`, email).Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}

	return user, nil
}

// CreateSession inserts a new session for a user.
func (r *UserRepository) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*models.Session, error) {
	session := &models.Session{
		Token:     GenerateID(),
		UserID:    userID,
		ExpiresAt: r.Now().Add(ttl),
		CreatedAt: r.Now(),
	}

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, session.Token, session.UserID, session.ExpiresAt, session.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	return session, nil
}

// GetSession retrieves a session by its token.
func (r *UserRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	session := &models.Session{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, created_at
		FROM sessions WHERE token = ?
	`, token).Scan(&session.Token, &session.UserID, &session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	return session, nil
}

// DeleteSession removes a session by its token.
func (r *UserRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.DB().ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions past their expiry time.
func (r *UserRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := r.DB().ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at <= ?", r.Now())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
