package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

var errInvalidCredentials = errors.New("invalid credentials")

// hashPassword returns the bcrypt hash stored in SERVE_PASSWORD_HASH.
func hashPassword(password string) (string, error) {
	if len(password) < 6 { // basic password policy
		return "", fmt.Errorf("password too short (min 6)")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// authenticator checks the operator password and issues access tokens.
// A zero authenticator (no hash configured) lets every request through.
type authenticator struct {
	hash   []byte
	secret []byte
}

func newAuthenticator(hash, secret string) authenticator {
	return authenticator{hash: []byte(strings.TrimSpace(hash)), secret: []byte(secret)}
}

func (a authenticator) enabled() bool { return len(a.hash) > 0 }

// login compares password against the configured hash and returns a signed
// HS256 token valid for tokenTTL.
func (a authenticator) login(password string, now time.Time) (string, error) {
	if !a.enabled() {
		return "", errors.New("login disabled: no password configured")
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return "", errInvalidCredentials
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	})
	return token.SignedString(a.secret)
}

// verify parses a bearer token and returns its subject.
func (a authenticator) verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}
