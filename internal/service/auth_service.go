package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"innovatech/accounts/internal/config"
	"innovatech/accounts/internal/ids"
	"innovatech/accounts/internal/mail"
	"innovatech/accounts/internal/models"
	"innovatech/accounts/internal/otp"
	"innovatech/accounts/internal/repository"
	"innovatech/accounts/internal/security"
)

var (
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrAccountInactive    = errors.New("account not activated")
	ErrAdminAccount       = errors.New("admin account on user login")
	ErrInvalidActivation  = errors.New("invalid activation link")
	ErrInvalidOTP         = errors.New("invalid or expired otp")
	ErrActivationDelivery = errors.New("activation email could not be delivered")
)

// UserStore is the persistence contract the workflows need. Implemented
// by repository.UserRepository; tests use an in-memory fake.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter repository.UserFilter) ([]models.User, error)
}

// AuthService sequences registration, activation, password login, the
// OTP challenge and token issuance.
type AuthService struct {
	users      UserStore
	activation *security.ActivationTokens
	otp        *otp.Service
	mailer     mail.Sender
	cfg        *config.AppConfig
	log        zerolog.Logger
}

func NewAuthService(
	users UserStore,
	activation *security.ActivationTokens,
	otpService *otp.Service,
	mailer mail.Sender,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		activation: activation,
		otp:        otpService,
		mailer:     mailer,
		cfg:        cfg,
		log:        log,
	}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type TokenPair struct {
	Access  string
	Refresh string
}

// Register stores the account inactive and sends the activation email.
// The caller chooses nothing about role or flags: every registration is
// a plain, unapproved user.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	email := NormalizeEmail(input.Email)

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		UserType:     models.UserTypeUser,
		IsActive:     false,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, err
	}

	link := s.activationLink(user)
	if err := s.mailer.Send(ctx, mail.ActivationMessage(user, link)); err != nil {
		// Transport and retry queue both failed. An inactive account
		// with no reachable activation path is useless, so roll it
		// back and report the registration as incomplete.
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("activation email undeliverable")
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("user_id", user.ID).Msg("rollback of unactivatable account failed")
		}
		return models.User{}, ErrActivationDelivery
	}

	return user, nil
}

func (s *AuthService) activationLink(user models.User) string {
	return fmt.Sprintf("%s/activate/%s/%s/",
		strings.TrimRight(s.cfg.PublicBaseURL, "/"),
		security.EncodeUserID(user.ID),
		s.activation.Mint(user),
	)
}

// Activate resolves the opaque identifier from the activation link and
// flips is_active on a valid token. Every failure mode collapses into
// ErrInvalidActivation; the caller never learns whether the link was
// expired, tampered with, or pointed at no user at all.
func (s *AuthService) Activate(ctx context.Context, uidb64 string, token string) error {
	id, err := security.DecodeUserID(uidb64)
	if err != nil {
		return ErrInvalidActivation
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidActivation
		}
		return err
	}

	if !s.activation.Verify(user, token) {
		return ErrInvalidActivation
	}

	user.IsActive = true
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	return nil
}

// Login checks credentials and, for an eligible account, regenerates
// the OTP challenge and emails it. It never issues session tokens.
func (s *AuthService) Login(ctx context.Context, email string, password string) error {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return err
	}

	if !user.IsActive {
		return ErrAccountInactive
	}
	if user.IsAdmin() {
		return ErrAdminAccount
	}

	code, err := s.otp.GenerateChallenge(ctx, user.ID)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, mail.OTPMessage(user, code)); err != nil {
		return fmt.Errorf("deliver otp: %w", err)
	}
	return nil
}

// AdminLogin is the separate path for admin accounts. It issues tokens
// directly; non-admins get the same generic failure as bad credentials.
func (s *AuthService) AdminLogin(ctx context.Context, email string, password string) (TokenPair, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return TokenPair{}, err
	}

	if !user.IsActive || !user.IsAdmin() {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.mintTokens(user)
}

// VerifyOTP exchanges a valid challenge code for the session token
// pair. A consumed or expired code fails, and so does any attempt past
// the retry limit.
func (s *AuthService) VerifyOTP(ctx context.Context, email string, code string) (TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return TokenPair{}, ErrInvalidOTP
		}
		return TokenPair{}, err
	}

	if err := s.otp.Verify(ctx, user.ID, code); err != nil {
		if errors.Is(err, otp.ErrCodeInvalid) {
			return TokenPair{}, ErrInvalidOTP
		}
		return TokenPair{}, err
	}

	return s.mintTokens(user)
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := security.ParseToken(refreshToken, s.cfg.Security.JWTRefreshSecret, security.TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return TokenPair{}, ErrInvalidCredentials
	}

	return s.mintTokens(user)
}

// authenticate resolves email+password to a user and fails closed. The
// unknown-email / wrong-password distinction is logged for operators
// but never reaches the caller, and the password itself is never
// logged.
func (s *AuthService) authenticate(ctx context.Context, email string, password string) (models.User, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.log.Debug().Str("email", email).Msg("login for unknown email")
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		s.log.Debug().Str("email", email).Msg("login with wrong password")
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) mintTokens(user models.User) (TokenPair, error) {
	access, err := security.GenerateAccessToken(s.cfg.Security.JWTAccessSecret, user, s.cfg.Security.JWTAccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := security.GenerateRefreshToken(s.cfg.Security.JWTRefreshSecret, user, s.cfg.Security.JWTRefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
