package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nash87/parkhub/internal/model"
	"github.com/nash87/parkhub/internal/persistence"
)

// AuthService coordinates registration, login, and session validation.
type AuthService struct {
	repo           *persistence.Repository
	idGenerator    func() string
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(repo *persistence.Repository, idGenerator, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(repo, idGenerator, tokenGenerator, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(repo *persistence.Repository, idGenerator, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if tokenGenerator == nil {
		tokenGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		repo:           repo,
		idGenerator:    idGenerator,
		tokenGenerator: tokenGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func (s *AuthService) newSession(user model.User, now time.Time) model.Session {
	return model.Session{
		Token:        s.tokenGenerator(),
		UserID:       user.ID,
		Username:     user.Username,
		Role:         user.Role,
		RefreshToken: "rt_" + s.tokenGenerator(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.sessionTTL),
	}
}

// Register creates an account with role user and issues its first session.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (result AuthResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	username := strings.TrimSpace(params.Username)
	email := strings.ToLower(strings.TrimSpace(params.Email))
	name := strings.TrimSpace(params.Name)

	logger := s.loggerWith(ctx, "Register", "username", username)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "account registered")
	}()

	vErr := &ValidationError{}
	validateUsername(username, vErr)
	validateEmail(email, vErr)
	validatePasswordStrength(params.Password, vErr)
	if name == "" {
		vErr.add("name", "name is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = HashPassword(params.Password)
	if err != nil {
		return
	}

	now := s.now()
	user := model.User{
		ID:           s.idGenerator(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         model.RoleUser,
		Department:   normalizeOptionalString(params.Department),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	session := s.newSession(user, now)

	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		if _, lookupErr := txn.GetUserByEmail(ctx, email); lookupErr == nil {
			return fmt.Errorf("%w: email already registered", ErrAlreadyExists)
		} else if !errors.Is(lookupErr, persistence.ErrNotFound) {
			return lookupErr
		}
		if _, lookupErr := txn.GetUserByUsername(ctx, username); lookupErr == nil {
			return fmt.Errorf("%w: username already taken", ErrAlreadyExists)
		} else if !errors.Is(lookupErr, persistence.ErrNotFound) {
			return lookupErr
		}
		if saveErr := txn.SaveUser(ctx, user); saveErr != nil {
			return saveErr
		}
		return txn.PutSession(ctx, session)
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	result = AuthResult{User: user, Session: session}
	return
}

// Login resolves the identifier as a username first, then as an email, and
// issues a session on success.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (result AuthResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	identifier := strings.TrimSpace(params.Identifier)

	logger := s.loggerWith(ctx, "Login", "identifier", identifier)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "login succeeded")
	}()

	if identifier == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	// Resolve and verify outside the write transaction: password hashing is
	// slow and must not hold the store's writer lock.
	var user model.User
	err = s.repo.View(ctx, func(txn *persistence.Txn) error {
		var lookupErr error
		user, lookupErr = txn.GetUserByUsername(ctx, identifier)
		if errors.Is(lookupErr, persistence.ErrNotFound) {
			user, lookupErr = txn.GetUserByEmail(ctx, strings.ToLower(identifier))
		}
		return lookupErr
	})
	if errors.Is(err, persistence.ErrNotFound) {
		err = ErrInvalidCredentials
		return
	}
	if err != nil {
		return
	}

	if !user.IsActive {
		err = ErrAccountDisabled
		return
	}
	if verifyErr := VerifyPassword(user.PasswordHash, params.Password); verifyErr != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	var session model.Session
	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		current, getErr := txn.GetUser(ctx, user.ID)
		if getErr != nil {
			return getErr
		}
		if !current.IsActive {
			return ErrAccountDisabled
		}
		current.LastLogin = &now
		current.UpdatedAt = now
		if saveErr := txn.SaveUser(ctx, current); saveErr != nil {
			return saveErr
		}
		user = current
		session = s.newSession(current, now)
		return txn.PutSession(ctx, session)
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	result = AuthResult{User: user, Session: session}
	return
}

// Logout deletes the session. Unknown tokens are not an error; expired
// sessions are pruned opportunistically.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.repo == nil {
		return fmt.Errorf("repository not configured")
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "Logout", "token_provided", trimmed != "")

	err := s.repo.Update(ctx, func(txn *persistence.Txn) error {
		if trimmed != "" {
			if _, delErr := txn.DeleteSession(ctx, trimmed); delErr != nil {
				return delErr
			}
		}
		_, delErr := txn.DeleteExpiredSessions(ctx, s.now())
		return delErr
	})
	if err != nil {
		logger.ErrorContext(ctx, "logout failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "session revoked")
	return nil
}

// ValidateToken verifies that the token names an unexpired session and an
// active account, and returns both.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (user model.User, session model.Session, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.repo == nil {
		err = fmt.Errorf("repository not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateToken", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "token validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "token validated")
	}()

	if trimmed == "" {
		err = ErrUnauthorized
		return
	}

	now := s.now()
	err = s.repo.View(ctx, func(txn *persistence.Txn) error {
		var lookupErr error
		session, lookupErr = txn.GetSession(ctx, trimmed, now)
		if lookupErr != nil {
			return lookupErr
		}
		user, lookupErr = txn.GetUser(ctx, session.UserID)
		return lookupErr
	})
	if errors.Is(err, persistence.ErrNotFound) {
		err = ErrUnauthorized
		return
	}
	if err != nil {
		return
	}

	if !user.IsActive {
		err = ErrAccountDisabled
		return
	}
	return
}

// ChangePassword verifies the current password before storing a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.repo == nil {
		return fmt.Errorf("repository not configured")
	}

	logger := s.loggerWith(ctx, "ChangePassword", "user_id", userID)

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "password change failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if verifyErr := VerifyPassword(user.PasswordHash, current); verifyErr != nil {
		logger.ErrorContext(ctx, "password change failed", "error", ErrInvalidCredentials, "error_kind", ErrorKind(ErrInvalidCredentials))
		return ErrInvalidCredentials
	}

	vErr := &ValidationError{}
	validatePasswordStrength(next, vErr)
	if vErr.HasErrors() {
		logger.ErrorContext(ctx, "password change failed", "error", vErr, "error_kind", ErrorKind(vErr))
		return vErr
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	err = s.repo.Update(ctx, func(txn *persistence.Txn) error {
		stored, getErr := txn.GetUser(ctx, userID)
		if getErr != nil {
			return getErr
		}
		stored.PasswordHash = hash
		stored.UpdatedAt = s.now()
		return txn.SaveUser(ctx, stored)
	})
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "password change failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "password changed")
	return nil
}

// mapRepoError converts persistence sentinels into their application
// counterparts, leaving other errors untouched.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return err
}
