package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keyward/keyward-backend/internal/audit"
	pkgauth "github.com/keyward/keyward-backend/pkg/auth"
	"github.com/keyward/keyward-backend/pkg/auth/session"
	"github.com/keyward/keyward-backend/pkg/config"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	pkgerrors "github.com/keyward/keyward-backend/pkg/errors"
	"github.com/keyward/keyward-backend/pkg/security"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "keyward-test",
	ExpirationMinutes: 15,
}

type stubUsersRepo struct {
	user       *models.User
	attempts   []*models.LoginAttempt
	lastLogin  *time.Time
	touchedFor uuid.UUID
}

func (s *stubUsersRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUsersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUsersRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.touchedFor = id
	s.lastLogin = &at
	return nil
}

func (s *stubUsersRepo) RecordLoginAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	s.attempts = append(s.attempts, attempt)
	return nil
}

type stubSessions struct {
	generated string
	revoked   []string
	rotateErr error
}

func (s *stubSessions) Generate(ctx context.Context, accessID string) (string, error) {
	s.generated = accessID
	return "refresh-" + accessID, nil
}

func (s *stubSessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	next := session.NewAccessID()
	return next, "refresh-" + next, nil
}

func (s *stubSessions) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

type recordingAuditor struct {
	entries []audit.Entry
}

func (r *recordingAuditor) Record(ctx context.Context, entry audit.Entry) {
	r.entries = append(r.entries, entry)
}

func testUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{BcryptCost: 4})
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	return &models.User{
		ID:           uuid.New(),
		PersonID:     uuid.New(),
		Username:     "operator1",
		PasswordHash: hash,
		Status:       enums.UserStatusActive,
		Role:         &models.Role{ID: uuid.New(), Name: "operator"},
	}
}

func newServiceForTests(t *testing.T, users *stubUsersRepo, sessions *stubSessions, auditor *recordingAuditor) Service {
	t.Helper()
	svc, err := NewService(users, sessions, auditor, testJWTConfig)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func TestLoginSuccess(t *testing.T) {
	users := &stubUsersRepo{user: testUser(t, "hunter2-long")}
	sessions := &stubSessions{}
	auditor := &recordingAuditor{}
	svc := newServiceForTests(t, users, sessions, auditor)

	result, err := svc.Login(context.Background(), LoginInput{
		Username: "  Operator1 ",
		Password: "hunter2-long",
		IP:       "10.0.0.9",
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
	if result.Role != "operator" {
		t.Fatalf("expected operator role, got %s", result.Role)
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig, result.AccessToken)
	if err != nil {
		t.Fatalf("minted token does not parse: %v", err)
	}
	if claims.UserID != users.user.ID {
		t.Fatalf("token user mismatch: %s", claims.UserID)
	}
	if claims.ID != sessions.generated {
		t.Fatal("token jti must match the stored session access id")
	}

	if len(users.attempts) != 1 || !users.attempts[0].Succeeded {
		t.Fatalf("expected one successful attempt, got %+v", users.attempts)
	}
	if users.touchedFor != users.user.ID {
		t.Fatal("expected last login stamped")
	}
	if len(auditor.entries) != 1 || auditor.entries[0].Operation != enums.AuditOperationLogin {
		t.Fatalf("expected one login audit entry, got %+v", auditor.entries)
	}
}

func TestLoginUnknownUsername(t *testing.T) {
	users := &stubUsersRepo{}
	svc := newServiceForTests(t, users, &stubSessions{}, &recordingAuditor{})

	_, err := svc.Login(context.Background(), LoginInput{Username: "ghost", Password: "whatever"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
	if len(users.attempts) != 1 || users.attempts[0].Succeeded {
		t.Fatalf("expected one failed attempt, got %+v", users.attempts)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	users := &stubUsersRepo{user: testUser(t, "hunter2-long")}
	svc := newServiceForTests(t, users, &stubSessions{}, &recordingAuditor{})

	_, err := svc.Login(context.Background(), LoginInput{Username: "operator1", Password: "wrong"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
	if len(users.attempts) != 1 || users.attempts[0].Succeeded {
		t.Fatalf("expected one failed attempt, got %+v", users.attempts)
	}
}

func TestLoginMissingCredentials(t *testing.T) {
	svc := newServiceForTests(t, &stubUsersRepo{}, &stubSessions{}, &recordingAuditor{})

	_, err := svc.Login(context.Background(), LoginInput{Username: "   ", Password: ""})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestLoginBlockedAccount(t *testing.T) {
	user := testUser(t, "hunter2-long")
	user.Status = enums.UserStatusBlocked
	users := &stubUsersRepo{user: user}
	svc := newServiceForTests(t, users, &stubSessions{}, &recordingAuditor{})

	_, err := svc.Login(context.Background(), LoginInput{Username: "operator1", Password: "hunter2-long"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLoginOutsideValidityWindow(t *testing.T) {
	notYet := time.Now().UTC().Add(24 * time.Hour)
	expired := time.Now().UTC().Add(-24 * time.Hour)

	cases := map[string]func(u *models.User){
		"not yet valid": func(u *models.User) { u.ValidFrom = &notYet },
		"expired":       func(u *models.User) { u.ValidUntil = &expired },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			user := testUser(t, "hunter2-long")
			mutate(user)
			svc := newServiceForTests(t, &stubUsersRepo{user: user}, &stubSessions{}, &recordingAuditor{})

			_, err := svc.Login(context.Background(), LoginInput{Username: "operator1", Password: "hunter2-long"})
			assertCode(t, err, pkgerrors.CodeUnauthorized)
		})
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	sessions := &stubSessions{}
	auditor := &recordingAuditor{}
	svc := newServiceForTests(t, &stubUsersRepo{}, sessions, auditor)

	userID := uuid.New()
	if err := svc.Logout(context.Background(), "access-123", userID); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "access-123" {
		t.Fatalf("expected session revoked, got %+v", sessions.revoked)
	}
	if len(auditor.entries) != 1 || auditor.entries[0].Operation != enums.AuditOperationLogout {
		t.Fatalf("expected one logout audit entry, got %+v", auditor.entries)
	}
}

func TestRefreshRotatesTokenPair(t *testing.T) {
	user := testUser(t, "hunter2-long")
	users := &stubUsersRepo{user: user}
	svc := newServiceForTests(t, users, &stubSessions{}, &recordingAuditor{})

	personID := user.PersonID
	accessToken, err := pkgauth.MintAccessToken(testJWTConfig, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		PersonID: &personID,
		Username: user.Username,
		Role:     "operator",
		JTI:      session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("minting test token: %v", err)
	}

	result, err := svc.Refresh(context.Background(), accessToken, "refresh-token")
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected rotated token pair")
	}
	if result.AccessToken == accessToken {
		t.Fatal("expected a freshly minted access token")
	}
}

func TestRefreshInvalidRefreshToken(t *testing.T) {
	user := testUser(t, "hunter2-long")
	sessions := &stubSessions{rotateErr: session.ErrInvalidRefreshToken}
	svc := newServiceForTests(t, &stubUsersRepo{user: user}, sessions, &recordingAuditor{})

	personID := user.PersonID
	accessToken, err := pkgauth.MintAccessToken(testJWTConfig, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		PersonID: &personID,
		Username: user.Username,
		Role:     "operator",
		JTI:      session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("minting test token: %v", err)
	}

	_, err = svc.Refresh(context.Background(), accessToken, "bogus")
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestRefreshGarbageAccessToken(t *testing.T) {
	svc := newServiceForTests(t, &stubUsersRepo{}, &stubSessions{}, &recordingAuditor{})

	_, err := svc.Refresh(context.Background(), "not-a-jwt", "refresh")
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}
