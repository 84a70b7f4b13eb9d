package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// TokenBytes is the amount of entropy in an issued token; the encoded form is twice as long.
const TokenBytes = 20

// NewToken returns a random hex encoded bearer token.
func NewToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// WellFormedToken reports whether s looks like a value produced by NewToken.
func WellFormedToken(s string) bool {
	if len(s) != TokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// TokenDigest returns the keyed lookup digest stored in place of the raw token.
func TokenDigest(secret, token string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
