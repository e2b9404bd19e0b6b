package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"innovatech/accounts/internal/models"
)

// ActivationTokens mints and verifies stateless account-activation
// tokens. A token is bound to the user's mutable state (activation flag
// and password hash), so activating the account or changing the
// password invalidates every previously issued token. Nothing is
// persisted; verification recomputes the signature.
type ActivationTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewActivationTokens(secret string, ttl time.Duration) *ActivationTokens {
	return &ActivationTokens{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Mint returns a token of the form "<base36 unix ts>-<signature>".
func (a *ActivationTokens) Mint(user models.User) string {
	ts := a.now().Unix()
	return a.tokenAt(user, ts)
}

// Verify reports whether token was minted for this user in its current
// state and has not outlived the validity window. Pure function of
// (user state, token, secret, current time).
func (a *ActivationTokens) Verify(user models.User, token string) bool {
	tsPart, _, ok := strings.Cut(token, "-")
	if !ok {
		return false
	}

	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil {
		return false
	}

	now := a.now().Unix()
	if ts > now || now-ts > int64(a.ttl.Seconds()) {
		return false
	}

	expected := a.tokenAt(user, ts)
	return hmac.Equal([]byte(expected), []byte(token))
}

func (a *ActivationTokens) tokenAt(user models.User, ts int64) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(user.ID))
	mac.Write([]byte{0})
	mac.Write([]byte(user.Email))
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.FormatBool(user.IsActive)))
	mac.Write([]byte{0})
	mac.Write(user.PasswordHash)
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.FormatInt(ts, 10)))

	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return strconv.FormatInt(ts, 36) + "-" + sig
}

// EncodeUserID converts a user ID into the opaque identifier carried in
// activation links.
func EncodeUserID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeUserID reverses EncodeUserID.
func DecodeUserID(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
