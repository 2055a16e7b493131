package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/enlaceai/enlace/internal/threads"
)

var (
	// ErrMissingInput is returned before any network call when the user
	// identity or the message text is absent.
	ErrMissingInput = errors.New("user and text are required")
	// ErrRunTimeout is returned when a run does not complete within the
	// configured polling window.
	ErrRunTimeout = errors.New("assistant run timed out")
)

// NoReplyText is substituted when a completed run produced no text.
const NoReplyText = "No hay respuesta disponible."

// Run states reported by the provider.
const (
	runStatusCompleted = "completed"
	runStatusFailed    = "failed"
	runStatusCancelled = "cancelled"
	runStatusExpired   = "expired"
)

// API is the provider surface the conversation service depends on.
type API interface {
	CreateThread(ctx context.Context) (string, error)
	CreateMessage(ctx context.Context, threadID, text string) error
	CreateRun(ctx context.Context, threadID string) (string, error)
	GetRunStatus(ctx context.Context, threadID, runID string) (string, error)
	LatestMessageText(ctx context.Context, threadID string) (string, error)
}

// ConversationService maps users to provider threads and runs one turn
// to completion. Turns from the same user are serialized; turns from
// different users proceed concurrently.
type ConversationService struct {
	api          API
	store        threads.Store
	logger       *slog.Logger
	pollInterval time.Duration
	pollTimeout  time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewConversationService creates a conversation service. Zero intervals
// fall back to 2s polling with a 2m bound.
func NewConversationService(log *slog.Logger, api API, store threads.Store, pollInterval, pollTimeout time.Duration) *ConversationService {
	if log == nil {
		log = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if pollTimeout <= 0 {
		pollTimeout = 2 * time.Minute
	}
	return &ConversationService{
		api:          api,
		store:        store,
		logger:       log.With(slog.String("service", "conversation")),
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		locks:        make(map[string]*sync.Mutex),
	}
}

// Converse appends text as a new turn in the user's thread, creating and
// registering the thread on first contact, then waits for the run to
// complete and returns the newest reply text.
func (s *ConversationService) Converse(ctx context.Context, userID, text string) (string, error) {
	userID = strings.TrimSpace(userID)
	text = strings.TrimSpace(text)
	if userID == "" || text == "" {
		return "", ErrMissingInput
	}

	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	threadID, err := s.ensureThread(ctx, userID)
	if err != nil {
		return "", err
	}

	if err := s.api.CreateMessage(ctx, threadID, text); err != nil {
		return "", fmt.Errorf("append turn: %w", err)
	}
	runID, err := s.api.CreateRun(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	if err := s.waitForRun(ctx, threadID, runID); err != nil {
		return "", err
	}

	reply, err := s.api.LatestMessageText(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return NoReplyText, nil
	}
	return reply, nil
}

// ensureThread looks the user's thread up, creating and registering one
// on first contact. The thread is registered before the first
// turn-append; a crash between remote creation and registration leaks
// the remote thread, which is accepted and not retried.
func (s *ConversationService) ensureThread(ctx context.Context, userID string) (string, error) {
	threadID, err := s.store.Lookup(ctx, userID)
	if err == nil {
		return threadID, nil
	}
	if !errors.Is(err, threads.ErrNotFound) {
		return "", fmt.Errorf("lookup thread: %w", err)
	}

	created, err := s.api.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	registered, err := s.store.Register(ctx, userID, created)
	if err != nil {
		return "", fmt.Errorf("register thread: %w", err)
	}
	s.logger.Info("thread created",
		slog.String("user_id", userID),
		slog.String("thread_id", registered))
	return registered, nil
}

func (s *ConversationService) waitForRun(ctx context.Context, threadID, runID string) error {
	deadline := time.Now().Add(s.pollTimeout)
	for {
		status, err := s.api.GetRunStatus(ctx, threadID, runID)
		if err != nil {
			return fmt.Errorf("poll run: %w", err)
		}
		switch status {
		case runStatusCompleted:
			return nil
		case runStatusFailed, runStatusCancelled, runStatusExpired:
			return fmt.Errorf("run %s ended with status %s", runID, status)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("run %s: %w", runID, ErrRunTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

// lockFor returns the mutex serializing turns for userID. Locks are
// retained for the process lifetime; the map grows with the number of
// distinct users seen, a few bytes each.
func (s *ConversationService) lockFor(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}
