// Package auth signs and verifies the session cookie. The cookie value
// is the user id, authenticated with an HMAC so a client cannot mint a
// session for someone else.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var ErrBadCookie = errors.New("invalid session cookie")

var secretKey = loadSecret()

// loadSecret reads KYST_COOKIE_SECRET. The fallback keeps local
// development working; deployments set their own.
func loadSecret() []byte {
	if s := os.Getenv("KYST_COOKIE_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("kyst-dev-secret-change-in-production")
}

// SignCookie produces "base64(value)|base64(hmac)".
func SignCookie(value string) string {
	mac := hmac.New(sha256.New, secretKey)
	mac.Write([]byte(value))
	return fmt.Sprintf("%s|%s",
		base64.URLEncoding.EncodeToString([]byte(value)),
		base64.URLEncoding.EncodeToString(mac.Sum(nil)))
}

// VerifyCookie checks the signature and returns the original value.
func VerifyCookie(signedValue string) (string, error) {
	parts := strings.Split(signedValue, "|")
	if len(parts) != 2 {
		return "", ErrBadCookie
	}

	valueBytes, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrBadCookie
	}
	signature, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrBadCookie
	}

	mac := hmac.New(sha256.New, secretKey)
	mac.Write(valueBytes)
	if !hmac.Equal(signature, mac.Sum(nil)) {
		return "", ErrBadCookie
	}
	return string(valueBytes), nil
}

// UserIDFromCookie verifies a signed session value and parses it as a
// user id.
func UserIDFromCookie(signedValue string) (int, error) {
	value, err := VerifyCookie(signedValue)
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(value)
	if err != nil || id <= 0 {
		return 0, ErrBadCookie
	}
	return id, nil
}
