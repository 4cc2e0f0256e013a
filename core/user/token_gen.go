package user

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"
)

var (
	NowFunc = time.Now // mockable

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// MakeResetToken generates a single-use password reset token for a given User.
// Only its hash is kept on the user record; the plaintext is returned for
// out-of-band delivery.
func MakeResetToken(usr *User, timeout time.Duration) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	usr.ResetTokenHash.SetValid(HashToken(token))
	usr.ResetTokenExpiry.SetValid(NowFunc().UTC().Add(timeout))
	return token, nil
}

// CheckResetToken verifies a plaintext reset token against the hash stored on
// the User and its expiry. Expiry is strict: a token presented at the expiry
// instant is rejected.
func CheckResetToken(usr User, token string) error {
	if token == "" || !usr.ResetTokenHash.Valid || !usr.ResetTokenExpiry.Valid {
		return errInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(usr.ResetTokenHash.String)) == 0 {
		return errInvalidToken
	}
	if !NowFunc().UTC().Before(usr.ResetTokenExpiry.Time) {
		return errTokenExpired
	}
	return nil
}

// HashToken returns the hex-encoded sha256 digest of a token, the only form
// in which reset and refresh tokens are persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
