// Package otp issues and checks short-lived one-time codes used as the
// second login factor. Codes live in Redis under a TTL; a successful
// verification consumes the code, so replaying it fails.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	// ErrCodeInvalid covers every rejection: wrong code, expired code,
	// already-used code, attempt limit reached. Callers must not
	// distinguish these to the client.
	ErrCodeInvalid = errors.New("invalid or expired otp")

	ErrCodeNotFound = errors.New("otp code not found")
)

// Store holds the current challenge and the failed-attempt counter for
// a user. Implemented by RedisStore; tests use an in-memory fake.
type Store interface {
	SetCode(ctx context.Context, userID string, code string, ttl time.Duration) error
	GetCode(ctx context.Context, userID string) (string, error)
	DeleteCode(ctx context.Context, userID string) error
	IncrAttempts(ctx context.Context, userID string, ttl time.Duration) (int64, error)
	ResetAttempts(ctx context.Context, userID string) error
}

type Service struct {
	store       Store
	digits      int
	ttl         time.Duration
	maxAttempts int
}

func NewService(store Store, digits int, ttl time.Duration, maxAttempts int) *Service {
	if digits <= 0 {
		digits = 6
	}
	return &Service{
		store:       store,
		digits:      digits,
		ttl:         ttl,
		maxAttempts: maxAttempts,
	}
}

// GenerateChallenge replaces any outstanding code for the user with a
// fresh one and resets the attempt counter. Called on every login
// attempt, so an old undelivered code cannot linger.
func (s *Service) GenerateChallenge(ctx context.Context, userID string) (string, error) {
	code, err := randomCode(s.digits)
	if err != nil {
		return "", err
	}

	if err := s.store.SetCode(ctx, userID, code, s.ttl); err != nil {
		return "", fmt.Errorf("store otp code: %w", err)
	}
	if err := s.store.ResetAttempts(ctx, userID); err != nil {
		return "", fmt.Errorf("reset otp attempts: %w", err)
	}
	return code, nil
}

// Verify checks candidate against the outstanding challenge. The code
// is deleted on success; expiry is enforced by the store TTL, the
// retry limit by the attempt counter.
func (s *Service) Verify(ctx context.Context, userID string, candidate string) error {
	attempts, err := s.store.IncrAttempts(ctx, userID, s.ttl)
	if err != nil {
		return fmt.Errorf("count otp attempt: %w", err)
	}
	if s.maxAttempts > 0 && attempts > int64(s.maxAttempts) {
		_ = s.store.DeleteCode(ctx, userID)
		return ErrCodeInvalid
	}

	code, err := s.store.GetCode(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return ErrCodeInvalid
		}
		return fmt.Errorf("load otp code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(candidate)) != 1 {
		return ErrCodeInvalid
	}

	if err := s.store.DeleteCode(ctx, userID); err != nil {
		return fmt.Errorf("consume otp code: %w", err)
	}
	_ = s.store.ResetAttempts(ctx, userID)
	return nil
}

func randomCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
