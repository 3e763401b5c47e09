package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pos-checkout/internal/apperrors"
	"pos-checkout/internal/models"
	"pos-checkout/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Authenticator exchanges operator credentials for a backend token
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*models.LoginResult, error)
}

// SessionStore persists operator sessions
type SessionStore interface {
	SaveSession(ctx context.Context, sess *models.Session, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// SessionTerminator ends an operator session
type SessionTerminator interface {
	Terminate(ctx context.Context, sessionID, reason string) error
}

// Session termination reasons
const (
	TerminateLogout      = "logout"
	TerminateAuthFailure = "auth_failure"
)

// SessionManager handles operator login, lookup and termination
type SessionManager struct {
	auth   Authenticator
	store  SessionStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewSessionManager creates a new session manager
func NewSessionManager(auth Authenticator, store SessionStore, ttl time.Duration) *SessionManager {
	return &SessionManager{
		auth:   auth,
		store:  store,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

// Login authenticates against the backend and opens a session
func (m *SessionManager) Login(ctx context.Context, username, password string) (*models.Session, error) {
	ctx, span := util.StartSpan(ctx, "SessionManager.Login")
	defer span.End()

	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return nil, apperrors.Validation("username and password are required")
	}

	res, err := m.auth.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, apperrors.Auth("the backend did not issue a token")
	}

	sess := &models.Session{
		ID:        uuid.New().String(),
		Token:     res.Token,
		UserName:  res.UserName,
		Role:      models.MapBackendRole(res.Role),
		CreatedAt: time.Now().UTC(),
	}
	if sess.UserName == "" {
		sess.UserName = "Usuario"
	}

	if err := m.store.SaveSession(ctx, sess, m.ttl); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.logger.Info("Operator logged in",
		zap.String("session_id", sess.ID),
		zap.String("user", sess.UserName),
		zap.String("role", sess.Role))
	return sess, nil
}

// Authenticate returns the live session for sessionID
func (m *SessionManager) Authenticate(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, apperrors.Auth("missing session")
	}
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return nil, apperrors.Auth("session expired, please log in again")
	}
	return sess, nil
}

// Terminate deletes the stored session
func (m *SessionManager) Terminate(ctx context.Context, sessionID, reason string) error {
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	util.SessionsTerminatedTotal.WithLabelValues(reason).Inc()
	m.logger.Info("Session terminated",
		zap.String("session_id", sessionID),
		zap.String("reason", reason))
	return nil
}

func isAuthError(err error) bool {
	return errors.Is(err, apperrors.ErrAuth)
}

// forceLogout terminates the session after a backend AuthError
func forceLogout(ctx context.Context, terminator SessionTerminator, sessionID string, logger *zap.Logger) {
	if terminator == nil {
		return
	}
	if err := terminator.Terminate(ctx, sessionID, TerminateAuthFailure); err != nil {
		logger.Error("Failed to terminate session after auth failure",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}
