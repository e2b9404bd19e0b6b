package otp_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"innovatech/accounts/internal/otp"
)

type memStore struct {
	mu       sync.Mutex
	codes    map[string]memEntry
	attempts map[string]int64
}

type memEntry struct {
	code      string
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{
		codes:    make(map[string]memEntry),
		attempts: make(map[string]int64),
	}
}

func (m *memStore) SetCode(_ context.Context, userID, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[userID] = memEntry{code: code, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *memStore) GetCode(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.codes[userID]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", otp.ErrCodeNotFound
	}
	return entry.code, nil
}

func (m *memStore) DeleteCode(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, userID)
	return nil
}

func (m *memStore) IncrAttempts(_ context.Context, userID string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[userID]++
	return m.attempts[userID], nil
}

func (m *memStore) ResetAttempts(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, userID)
	return nil
}

func TestGenerateChallengeFormat(t *testing.T) {
	svc := otp.NewService(newMemStore(), 6, time.Minute, 5)

	code, err := svc.GenerateChallenge(context.Background(), "user-1")
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
}

func TestVerifyConsumesCode(t *testing.T) {
	ctx := context.Background()
	svc := otp.NewService(newMemStore(), 6, time.Minute, 5)

	code, err := svc.GenerateChallenge(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx, "user-1", code))

	// The code is single-use; replaying it fails.
	require.ErrorIs(t, svc.Verify(ctx, "user-1", code), otp.ErrCodeInvalid)
}

func TestVerifyWrongCode(t *testing.T) {
	ctx := context.Background()
	svc := otp.NewService(newMemStore(), 6, time.Minute, 5)

	code, err := svc.GenerateChallenge(ctx, "user-1")
	require.NoError(t, err)

	require.ErrorIs(t, svc.Verify(ctx, "user-1", "000000"), otp.ErrCodeInvalid)

	// One wrong guess does not burn the challenge.
	require.NoError(t, svc.Verify(ctx, "user-1", code))
}

func TestVerifyAttemptLimit(t *testing.T) {
	ctx := context.Background()
	svc := otp.NewService(newMemStore(), 6, time.Minute, 3)

	code, err := svc.GenerateChallenge(ctx, "user-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, svc.Verify(ctx, "user-1", "999999"), otp.ErrCodeInvalid)
	}

	// Limit exhausted: even the right code is rejected now.
	require.ErrorIs(t, svc.Verify(ctx, "user-1", code), otp.ErrCodeInvalid)
}

func TestVerifyExpiredCode(t *testing.T) {
	ctx := context.Background()
	svc := otp.NewService(newMemStore(), 6, 10*time.Millisecond, 5)

	code, err := svc.GenerateChallenge(ctx, "user-1")
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)
	require.ErrorIs(t, svc.Verify(ctx, "user-1", code), otp.ErrCodeInvalid)
}

func TestRegenerateReplacesChallenge(t *testing.T) {
	ctx := context.Background()
	svc := otp.NewService(newMemStore(), 6, time.Minute, 5)

	first, err := svc.GenerateChallenge(ctx, "user-1")
	require.NoError(t, err)
	second, err := svc.GenerateChallenge(ctx, "user-1")
	require.NoError(t, err)

	if first != second {
		require.ErrorIs(t, svc.Verify(ctx, "user-1", first), otp.ErrCodeInvalid)
	}
	require.NoError(t, svc.Verify(ctx, "user-1", second))
}
