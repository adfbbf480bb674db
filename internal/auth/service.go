package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/internal/audit"
	pkgauth "github.com/keyward/keyward-backend/pkg/auth"
	"github.com/keyward/keyward-backend/pkg/auth/session"
	"github.com/keyward/keyward-backend/pkg/config"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	"github.com/keyward/keyward-backend/pkg/security"
	"gorm.io/gorm"
)

type usersRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service exposes login, logout and token refresh.
type Service interface {
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Logout(ctx context.Context, accessID string, userID uuid.UUID) error
	Refresh(ctx context.Context, accessToken, refreshToken string) (*LoginResult, error)
}

type service struct {
	users    usersRepository
	sessions sessionManager
	auditor  auditRecorder
	jwtCfg   config.JWTConfig
	now      func() time.Time
}

// LoginInput carries the credentials plus the caller IP for the attempt log.
type LoginInput struct {
	Username string
	Password string
	IP       string
}

// LoginResult is the token pair handed to authenticated clients.
type LoginResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
}

// NewService builds the auth service.
func NewService(users usersRepository, sessions sessionManager, auditor auditRecorder, jwtCfg config.JWTConfig) (Service, error) {
	if users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if jwtCfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	return &service{
		users:    users,
		sessions: sessions,
		auditor:  auditor,
		jwtCfg:   jwtCfg,
		now:      time.Now,
	}, nil
}

var errBadCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid username or password")

func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and password are required")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.recordAttempt(ctx, username, input.IP, false)
			return nil, errBadCredentials
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		s.recordAttempt(ctx, username, input.IP, false)
		return nil, errBadCredentials
	}

	now := s.now().UTC()
	if err := s.checkAccountUsable(user, now); err != nil {
		s.recordAttempt(ctx, username, input.IP, false)
		return nil, err
	}

	result, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.recordAttempt(ctx, username, input.IP, true)
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stamping last login")
	}
	s.auditor.Record(ctx, audit.Entry{
		Table:     "users",
		Operation: enums.AuditOperationLogin,
		RecordID:  &user.ID,
		UserID:    &user.ID,
	})
	return result, nil
}

func (s *service) checkAccountUsable(user *models.User, now time.Time) error {
	switch user.Status {
	case enums.UserStatusActive:
	case enums.UserStatusBlocked:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "account is blocked")
	default:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "account is inactive")
	}
	if user.ValidFrom != nil && now.Before(*user.ValidFrom) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "account not yet valid")
	}
	if user.ValidUntil != nil && now.After(*user.ValidUntil) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "account validity expired")
	}
	return nil
}

func (s *service) issueTokens(ctx context.Context, user *models.User) (*LoginResult, error) {
	roleName := ""
	if user.Role != nil {
		roleName = user.Role.Name
	}
	if roleName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user has no role")
	}

	accessID := session.NewAccessID()
	personID := user.PersonID
	accessToken, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		PersonID: &personID,
		Username: user.Username,
		Role:     roleName,
		JTI:      accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	refreshToken, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing session")
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       user.ID,
		Username:     user.Username,
		Role:         roleName,
	}, nil
}

func (s *service) Logout(ctx context.Context, accessID string, userID uuid.UUID) error {
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoking session")
	}
	s.auditor.Record(ctx, audit.Entry{
		Table:     "users",
		Operation: enums.AuditOperationLogout,
		RecordID:  &userID,
		UserID:    &userID,
	})
	return nil
}

// Refresh rotates the session bound to the (possibly expired) access token
// and mints a fresh pair.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*LoginResult, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotating session")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account no longer exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	if err := s.checkAccountUsable(user, s.now().UTC()); err != nil {
		return nil, err
	}

	roleName := ""
	if user.Role != nil {
		roleName = user.Role.Name
	}
	personID := user.PersonID
	newAccess, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		PersonID: &personID,
		Username: user.Username,
		Role:     roleName,
		JTI:      newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	return &LoginResult{
		AccessToken:  newAccess,
		RefreshToken: newRefresh,
		UserID:       user.ID,
		Username:     user.Username,
		Role:         roleName,
	}, nil
}

func (s *service) recordAttempt(ctx context.Context, username, ip string, succeeded bool) {
	attempt := &models.LoginAttempt{
		Username:   username,
		OccurredAt: s.now().UTC(),
		Succeeded:  succeeded,
	}
	if ip != "" {
		attempt.IP = &ip
	}
	// best effort; a failed attempt log must not block the login path
	_ = s.users.RecordLoginAttempt(ctx, attempt)
}
