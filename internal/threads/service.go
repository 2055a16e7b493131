// Package threads persists the mapping from an external user identity to
// the assistant-provider thread that holds their conversation.
package threads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no thread has been registered for the user yet.
var ErrNotFound = errors.New("thread not found")

// Store is the lookup/register contract consumed by the conversation layer.
type Store interface {
	Lookup(ctx context.Context, userID string) (string, error)
	Register(ctx context.Context, userID, threadID string) (string, error)
}

// Service is the Postgres-backed Store. One active thread per user,
// enforced by the primary key on user_id.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a thread store over the shared pool.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "threads")),
	}
}

// EnsureSchema creates the backing table when absent. Idempotent; invoked
// once at startup so lookups never race table creation.
func (s *Service) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS user_threads (
			user_id    TEXT PRIMARY KEY,
			thread_id  TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure user_threads schema: %w", err)
	}
	return nil
}

// Lookup returns the thread registered for the user, or ErrNotFound.
func (s *Service) Lookup(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrNotFound
	}
	var threadID string
	err := s.pool.QueryRow(ctx,
		"SELECT thread_id FROM user_threads WHERE user_id = $1", userID,
	).Scan(&threadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup thread for %s: %w", userID, err)
	}
	return threadID, nil
}

// Register stores the mapping and returns the thread that is now active
// for the user. On a concurrent first-turn race the earliest registration
// wins and the stored thread is returned, so callers must continue with
// the returned id rather than the one they created.
func (s *Service) Register(ctx context.Context, userID, threadID string) (string, error) {
	tag, err := s.pool.Exec(ctx,
		"INSERT INTO user_threads (user_id, thread_id) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING",
		userID, threadID,
	)
	if err != nil {
		return "", fmt.Errorf("register thread for %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		stored, err := s.Lookup(ctx, userID)
		if err != nil {
			return "", err
		}
		s.logger.Warn("thread already registered, keeping stored one",
			slog.String("user_id", userID),
			slog.String("stored_thread_id", stored))
		return stored, nil
	}
	return threadID, nil
}
