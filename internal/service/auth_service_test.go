package service_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"innovatech/accounts/internal/config"
	"innovatech/accounts/internal/mail"
	"innovatech/accounts/internal/models"
	"innovatech/accounts/internal/otp"
	"innovatech/accounts/internal/repository"
	"innovatech/accounts/internal/security"
	"innovatech/accounts/internal/service"
)

// memUsers is an in-memory service.UserStore.
type memUsers struct {
	mu    sync.Mutex
	byID  map[string]models.User
	order []string
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]models.User)}
}

func (m *memUsers) Create(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}
	m.byID[user.ID] = user
	m.order = append(m.order, user.ID)
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *memUsers) Update(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	for id, existing := range m.byID {
		if id != user.ID && existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	m.byID[user.ID] = user
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memUsers) List(_ context.Context, filter repository.UserFilter) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, id := range m.order {
		user, ok := m.byID[id]
		if !ok {
			continue
		}
		if filter.UserType != nil && user.UserType != *filter.UserType {
			continue
		}
		if filter.IsActive != nil && user.IsActive != *filter.IsActive {
			continue
		}
		if filter.IsApproved != nil && user.IsApproved != *filter.IsApproved {
			continue
		}
		out = append(out, user)
	}
	return out, nil
}

// fakeSender records messages instead of delivering them.
type fakeSender struct {
	mu       sync.Mutex
	messages []mail.Message
	fail     bool
}

func (f *fakeSender) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp unreachable")
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeSender) last(t *testing.T) mail.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages)
	return f.messages[len(f.messages)-1]
}

// memOTPStore is a minimal otp.Store for tests.
type memOTPStore struct {
	mu       sync.Mutex
	codes    map[string]string
	attempts map[string]int64
}

func newMemOTPStore() *memOTPStore {
	return &memOTPStore{codes: make(map[string]string), attempts: make(map[string]int64)}
}

func (m *memOTPStore) SetCode(_ context.Context, userID, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[userID] = code
	return nil
}

func (m *memOTPStore) GetCode(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[userID]
	if !ok {
		return "", otp.ErrCodeNotFound
	}
	return code, nil
}

func (m *memOTPStore) DeleteCode(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, userID)
	return nil
}

func (m *memOTPStore) IncrAttempts(_ context.Context, userID string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[userID]++
	return m.attempts[userID], nil
}

func (m *memOTPStore) ResetAttempts(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, userID)
	return nil
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment:   "test",
		PublicBaseURL: "http://localhost:8080",
		Security: config.SecurityConfig{
			JWTAccessSecret:  "access-secret",
			JWTRefreshSecret: "refresh-secret",
			JWTAccessTTL:     15 * time.Minute,
			JWTRefreshTTL:    24 * time.Hour,
			ActivationSecret: "activation-secret",
			ActivationTTL:    72 * time.Hour,
			OTPTTL:           5 * time.Minute,
			OTPDigits:        6,
			OTPMaxAttempts:   5,
		},
	}
}

type fixture struct {
	auth   *service.AuthService
	users  *memUsers
	sender *fakeSender
	cfg    *config.AppConfig
}

func newFixture() *fixture {
	cfg := testConfig()
	users := newMemUsers()
	sender := &fakeSender{}

	activation := security.NewActivationTokens(cfg.Security.ActivationSecret, cfg.Security.ActivationTTL)
	otpService := otp.NewService(newMemOTPStore(), cfg.Security.OTPDigits, cfg.Security.OTPTTL, cfg.Security.OTPMaxAttempts)

	auth := service.NewAuthService(users, activation, otpService, sender, cfg, zerolog.Nop())
	return &fixture{auth: auth, users: users, sender: sender, cfg: cfg}
}

var activationLinkRe = regexp.MustCompile(`/activate/([^/\s]+)/([^/\s]+)/`)

func (f *fixture) register(t *testing.T, email string) (models.User, string, string) {
	t.Helper()
	user, err := f.auth.Register(context.Background(), service.RegisterInput{
		Email:     email,
		Password:  "sup3r-secret",
		FirstName: "Alice",
		LastName:  "Smith",
	})
	require.NoError(t, err)

	match := activationLinkRe.FindStringSubmatch(f.sender.last(t).Text)
	require.Len(t, match, 3)
	return user, match[1], match[2]
}

var otpCodeRe = regexp.MustCompile(`\b(\d{6})\b`)

func (f *fixture) loginAndGetCode(t *testing.T, email, password string) string {
	t.Helper()
	require.NoError(t, f.auth.Login(context.Background(), email, password))
	match := otpCodeRe.FindStringSubmatch(f.sender.last(t).Text)
	require.Len(t, match, 2)
	return match[1]
}

func TestRegisterCreatesInactiveUser(t *testing.T) {
	f := newFixture()
	user, _, _ := f.register(t, "alice@example.com")

	require.False(t, user.IsActive)
	require.False(t, user.IsApproved)
	require.Equal(t, models.UserTypeUser, user.UserType)
	require.Equal(t, "alice@example.com", user.Email)

	msg := f.sender.last(t)
	require.Equal(t, "alice@example.com", msg.To)
	require.Contains(t, msg.Text, "activate your account")
}

func TestRegisterNormalizesEmail(t *testing.T) {
	f := newFixture()
	user, _, _ := f.register(t, "  Alice@Example.COM ")
	require.Equal(t, "alice@example.com", user.Email)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture()
	f.register(t, "alice@example.com")

	_, err := f.auth.Register(context.Background(), service.RegisterInput{
		Email:    "alice@example.com",
		Password: "another-pass",
	})
	require.ErrorIs(t, err, service.ErrEmailTaken)
}

func TestRegisterRollsBackWhenEmailUndeliverable(t *testing.T) {
	f := newFixture()
	f.sender.fail = true

	_, err := f.auth.Register(context.Background(), service.RegisterInput{
		Email:    "alice@example.com",
		Password: "sup3r-secret",
	})
	require.ErrorIs(t, err, service.ErrActivationDelivery)

	// No orphaned inactive account is left behind.
	_, err = f.users.FindByEmail(context.Background(), "alice@example.com")
	require.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestActivate(t *testing.T) {
	f := newFixture()
	user, uidb64, token := f.register(t, "alice@example.com")

	require.NoError(t, f.auth.Activate(context.Background(), uidb64, token))

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, stored.IsActive)

	// The token was bound to the inactive state, so it no longer
	// verifies after activation.
	require.ErrorIs(t, f.auth.Activate(context.Background(), uidb64, token), service.ErrInvalidActivation)
}

func TestActivateTokenForOtherUser(t *testing.T) {
	f := newFixture()
	_, _, aliceToken := f.register(t, "alice@example.com")
	_, bobUID, _ := f.register(t, "bob@example.com")

	err := f.auth.Activate(context.Background(), bobUID, aliceToken)
	require.ErrorIs(t, err, service.ErrInvalidActivation)
}

func TestActivateGarbage(t *testing.T) {
	f := newFixture()
	require.ErrorIs(t, f.auth.Activate(context.Background(), "!!!", "junk"), service.ErrInvalidActivation)
	require.ErrorIs(t, f.auth.Activate(context.Background(), security.EncodeUserID("missing"), "junk"), service.ErrInvalidActivation)
}

func TestLoginRequiresActivation(t *testing.T) {
	f := newFixture()
	f.register(t, "alice@example.com")

	err := f.auth.Login(context.Background(), "alice@example.com", "sup3r-secret")
	require.ErrorIs(t, err, service.ErrAccountInactive)
}

func TestLoginFailsClosed(t *testing.T) {
	f := newFixture()
	_, uidb64, token := f.register(t, "alice@example.com")
	require.NoError(t, f.auth.Activate(context.Background(), uidb64, token))

	// Unknown email and wrong password yield the same error.
	require.ErrorIs(t, f.auth.Login(context.Background(), "nobody@example.com", "sup3r-secret"), service.ErrInvalidCredentials)
	require.ErrorIs(t, f.auth.Login(context.Background(), "alice@example.com", "wrong"), service.ErrInvalidCredentials)
}

func TestLoginRejectsAdmins(t *testing.T) {
	f := newFixture()
	hash, err := security.HashPassword("admin-pass")
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), models.User{
		ID:           "admin-1",
		Email:        "admin@example.com",
		PasswordHash: hash,
		UserType:     models.UserTypeAdmin,
		IsActive:     true,
		IsStaff:      true,
	}))

	err = f.auth.Login(context.Background(), "admin@example.com", "admin-pass")
	require.ErrorIs(t, err, service.ErrAdminAccount)

	// The dedicated admin path works for the same credentials.
	tokens, err := f.auth.AdminLogin(context.Background(), "admin@example.com", "admin-pass")
	require.NoError(t, err)
	require.NotEmpty(t, tokens.Access)
	require.NotEmpty(t, tokens.Refresh)
}

func TestAdminLoginRejectsRegularUsers(t *testing.T) {
	f := newFixture()
	_, uidb64, token := f.register(t, "alice@example.com")
	require.NoError(t, f.auth.Activate(context.Background(), uidb64, token))

	_, err := f.auth.AdminLogin(context.Background(), "alice@example.com", "sup3r-secret")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestFullLoginFlow(t *testing.T) {
	f := newFixture()
	user, uidb64, token := f.register(t, "alice@example.com")
	require.NoError(t, f.auth.Activate(context.Background(), uidb64, token))

	code := f.loginAndGetCode(t, "alice@example.com", "sup3r-secret")

	tokens, err := f.auth.VerifyOTP(context.Background(), "alice@example.com", code)
	require.NoError(t, err)

	claims, err := security.ParseToken(tokens.Access, f.cfg.Security.JWTAccessSecret, security.TokenTypeAccess)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)

	refreshClaims, err := security.ParseToken(tokens.Refresh, f.cfg.Security.JWTRefreshSecret, security.TokenTypeRefresh)
	require.NoError(t, err)
	require.Equal(t, user.ID, refreshClaims.Subject)

	// The code was consumed; replaying it fails.
	_, err = f.auth.VerifyOTP(context.Background(), "alice@example.com", code)
	require.ErrorIs(t, err, service.ErrInvalidOTP)
}

func TestVerifyOTPWrongCode(t *testing.T) {
	f := newFixture()
	_, uidb64, token := f.register(t, "alice@example.com")
	require.NoError(t, f.auth.Activate(context.Background(), uidb64, token))

	code := f.loginAndGetCode(t, "alice@example.com", "sup3r-secret")

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err := f.auth.VerifyOTP(context.Background(), "alice@example.com", wrong)
	require.ErrorIs(t, err, service.ErrInvalidOTP)

	_, err = f.auth.VerifyOTP(context.Background(), "unknown@example.com", code)
	require.ErrorIs(t, err, service.ErrInvalidOTP)
}

func TestRefresh(t *testing.T) {
	f := newFixture()
	_, uidb64, token := f.register(t, "alice@example.com")
	require.NoError(t, f.auth.Activate(context.Background(), uidb64, token))

	code := f.loginAndGetCode(t, "alice@example.com", "sup3r-secret")
	tokens, err := f.auth.VerifyOTP(context.Background(), "alice@example.com", code)
	require.NoError(t, err)

	fresh, err := f.auth.Refresh(context.Background(), tokens.Refresh)
	require.NoError(t, err)
	require.NotEmpty(t, fresh.Access)

	// An access token is not accepted as a refresh token.
	_, err = f.auth.Refresh(context.Background(), tokens.Access)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}
