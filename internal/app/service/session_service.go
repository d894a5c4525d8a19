package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/app/repository"
	"github.com/ikkim/storefront-sync/internal/events"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/ikkim/storefront-sync/pkg/storeapi"
	"github.com/ikkim/storefront-sync/pkg/util"
)

var (
	ErrEmailAlreadyExists     = errors.New("email already exists")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrAuthServiceUnavailable = errors.New("authentication service unavailable")
)

const (
	localAdminID   = "local-admin"
	localAdminName = "Administrator"
)

// ValidationError lists the offending input fields, keyed by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid input: " + strings.Join(names, ", ")
}

type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignUpInput struct {
	Name       string `json:"name" validate:"required,min=2,max=50"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	RePassword string `json:"rePassword" validate:"required,eqfield=Password"`
	Phone      string `json:"phone" validate:"omitempty,numeric,min=7,max=15"`
}

// LocalAdmin is an account that signs in without the remote store. Its
// sessions are never synchronized remotely.
type LocalAdmin struct {
	Email        string
	PasswordHash string
	TokenSecret  string
	TokenExpiry  time.Duration
}

func (a LocalAdmin) enabled() bool {
	return a.Email != "" && a.PasswordHash != "" && a.TokenSecret != ""
}

// TokenRevoker remembers signed-out local tokens.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiry time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type SessionService interface {
	SessionGate
	Current() *model.Session
	SignIn(ctx context.Context, input SignInInput) (*model.Session, error)
	SignUp(ctx context.Context, input SignUpInput) (*model.Session, error)
	SignOut(ctx context.Context) error
	Invalidate(ctx context.Context)
}

type sessionService struct {
	mu       sync.Mutex
	repo     repository.SessionRepository
	remote   RemoteAuth
	bus      Publisher
	admin    LocalAdmin
	revoker  TokenRevoker
	validate *validator.Validate
	timeout  time.Duration
}

// NewSessionService builds the session gate. revoker may be nil.
func NewSessionService(
	repo repository.SessionRepository,
	remote RemoteAuth,
	bus Publisher,
	admin LocalAdmin,
	revoker TokenRevoker,
	timeout time.Duration,
) SessionService {
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}
	if admin.PasswordHash != "" && !util.IsPasswordHash(admin.PasswordHash) {
		logger.Warn("Local admin password hash is not a bcrypt hash, local sign-in disabled", nil)
		admin.PasswordHash = ""
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	return &sessionService{
		repo:     repo,
		remote:   remote,
		bus:      bus,
		admin:    admin,
		revoker:  revoker,
		validate: validate,
		timeout:  timeout,
	}
}

func (s *sessionService) load() *model.Session {
	session, err := s.repo.Load()
	if err != nil {
		logger.Warn("Failed to read session, treating as signed out", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return session
}

func (s *sessionService) Current() *model.Session {
	session := s.load()
	if session == nil {
		return nil
	}
	copied := *session
	user := *session.User
	copied.User = &user
	return &copied
}

func (s *sessionService) IsAuthenticated() bool {
	return s.load().Present()
}

// IsLikelyValid is a presence check. Local sessions additionally carry a
// signed token that can be verified without any remote call.
func (s *sessionService) IsLikelyValid() bool {
	session := s.load()
	if !session.Present() {
		return false
	}
	if !session.Local {
		return true
	}
	return s.localTokenValid(session.Token)
}

func (s *sessionService) localTokenValid(token string) bool {
	claims, err := util.ValidateLocalToken(token, s.admin.TokenSecret)
	if err != nil {
		return false
	}
	if s.revoker == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		logger.Warn("Token blacklist unavailable, accepting signed local token", map[string]interface{}{
			"error": err.Error(),
		})
		return true
	}
	return !revoked
}

func (s *sessionService) SyncToken() (string, bool) {
	session := s.load()
	if !session.Present() || session.Local {
		return "", false
	}
	return session.Token, true
}

func (s *sessionService) InvalidateToken(ctx context.Context, token string) bool {
	s.mu.Lock()
	session := s.load()
	if !session.Present() || session.Token != token {
		s.mu.Unlock()
		return false
	}
	if err := s.repo.Clear(); err != nil {
		s.mu.Unlock()
		logger.Error("Failed to clear expired session", err)
		return false
	}
	s.mu.Unlock()

	logger.Info("Session invalidated", map[string]interface{}{
		"user_id": session.User.ID,
	})
	s.bus.Publish(ctx, events.SessionChanged)
	return true
}

func (s *sessionService) Invalidate(ctx context.Context) {
	s.mu.Lock()
	session := s.load()
	if session == nil {
		s.mu.Unlock()
		return
	}
	err := s.repo.Clear()
	s.mu.Unlock()
	if err != nil {
		logger.Error("Failed to clear session", err)
		return
	}
	s.bus.Publish(ctx, events.SessionChanged)
}

func (s *sessionService) SignIn(ctx context.Context, input SignInInput) (*model.Session, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := s.check(input); err != nil {
		return nil, err
	}

	logger.Info("Sign-in attempt", map[string]interface{}{
		"email": input.Email,
	})

	if s.admin.enabled() && strings.EqualFold(input.Email, s.admin.Email) &&
		util.VerifyPassword(s.admin.PasswordHash, input.Password) {
		return s.signInLocal(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	resp, err := s.remote.SignIn(callCtx, input.Email, input.Password)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, storeapi.ErrUnauthorized), errors.Is(err, storeapi.ErrInvalidRequest),
			errors.Is(err, storeapi.ErrNotFound):
			logger.Warn("Sign-in rejected", map[string]interface{}{
				"email": input.Email,
			})
			return nil, ErrInvalidCredentials
		default:
			logger.Error("Sign-in failed", err, map[string]interface{}{
				"email": input.Email,
			})
			return nil, fmt.Errorf("%w: %v", ErrAuthServiceUnavailable, err)
		}
	}

	return s.store(ctx, &model.Session{
		Token:      resp.Token,
		User:       userFromRemote(resp.User),
		SignedInAt: time.Now(),
	})
}

func (s *sessionService) signInLocal(ctx context.Context) (*model.Session, error) {
	token, err := util.GenerateLocalToken(localAdminID, s.admin.Email, string(model.RoleAdmin), s.admin.TokenSecret, s.admin.TokenExpiry)
	if err != nil {
		logger.Error("Failed to issue local admin token", err)
		return nil, err
	}

	return s.store(ctx, &model.Session{
		Token: token,
		User: &model.UserSnapshot{
			ID:    localAdminID,
			Name:  localAdminName,
			Email: s.admin.Email,
			Role:  model.RoleAdmin,
		},
		Local:      true,
		SignedInAt: time.Now(),
	})
}

func (s *sessionService) SignUp(ctx context.Context, input SignUpInput) (*model.Session, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := s.check(input); err != nil {
		return nil, err
	}

	logger.Info("Attempting sign-up", map[string]interface{}{
		"email": input.Email,
		"name":  input.Name,
	})

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	resp, err := s.remote.SignUp(callCtx, storeapi.SignUpRequest{
		Name:       input.Name,
		Email:      input.Email,
		Password:   input.Password,
		RePassword: input.RePassword,
		Phone:      input.Phone,
	})
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, storeapi.ErrConflict):
			logger.Warn("Sign-up failed: email already exists", map[string]interface{}{
				"email": input.Email,
			})
			return nil, ErrEmailAlreadyExists
		case errors.Is(err, storeapi.ErrInvalidRequest):
			return nil, &ValidationError{Fields: map[string]string{"request": err.Error()}}
		default:
			logger.Error("Sign-up failed", err, map[string]interface{}{
				"email": input.Email,
			})
			return nil, fmt.Errorf("%w: %v", ErrAuthServiceUnavailable, err)
		}
	}

	return s.store(ctx, &model.Session{
		Token:      resp.Token,
		User:       userFromRemote(resp.User),
		SignedInAt: time.Now(),
	})
}

// SignOut clears the session. Cart and wishlist stay in the local cache.
func (s *sessionService) SignOut(ctx context.Context) error {
	s.mu.Lock()
	session := s.load()
	if session == nil {
		s.mu.Unlock()
		return nil
	}
	if err := s.repo.Clear(); err != nil {
		s.mu.Unlock()
		logger.Error("Failed to clear session", err)
		return err
	}
	s.mu.Unlock()

	if session.Local {
		s.revokeLocal(ctx, session.Token)
	}

	logger.Info("Signed out", map[string]interface{}{
		"user_id": session.User.ID,
		"local":   session.Local,
	})
	s.bus.Publish(ctx, events.SessionChanged)
	return nil
}

func (s *sessionService) revokeLocal(ctx context.Context, token string) {
	if s.revoker == nil {
		return
	}
	claims, err := util.ValidateLocalToken(token, s.admin.TokenSecret)
	if err != nil || claims.ExpiresAt == nil {
		return
	}
	if err := s.revoker.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		logger.Warn("Failed to revoke local token", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *sessionService) store(ctx context.Context, session *model.Session) (*model.Session, error) {
	s.mu.Lock()
	err := s.repo.Save(session)
	s.mu.Unlock()
	if err != nil {
		logger.Error("Failed to store session", err, map[string]interface{}{
			"user_id": session.User.ID,
		})
		return nil, err
	}

	logger.Info("Signed in", map[string]interface{}{
		"user_id": session.User.ID,
		"role":    session.User.Role,
		"local":   session.Local,
	})
	s.bus.Publish(ctx, events.SessionChanged)
	return session, nil
}

func (s *sessionService) check(input interface{}) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}
