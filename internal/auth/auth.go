// Package auth verifies the HMAC-signed session tokens carried by websocket clients.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"cardarena/internal/apperr"

	"github.com/form3tech-oss/jwt-go"
)

const DefaultCookie = "jwt"

// Verifier signs and checks HS256 session tokens.
type Verifier struct {
	secret []byte
	cookie string
}

// NewVerifier uses secret for HMAC and reads tokens from cookie (DefaultCookie when empty).
func NewVerifier(secret, cookie string) *Verifier {
	if cookie == "" {
		cookie = DefaultCookie
	}
	return &Verifier{secret: []byte(secret), cookie: cookie}
}

// Sign issues a token for username valid for ttl.
func (v *Verifier) Sign(username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify checks the signature and expiry of raw and returns its username claim.
func (v *Verifier) Verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", apperr.Wrap(err, apperr.Unauthorized, "invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperr.New(apperr.Unauthorized, "invalid token")
	}
	username, _ := claims["username"].(string)
	if username == "" {
		return "", apperr.New(apperr.Unauthorized, "token has no username")
	}
	return username, nil
}

// FromRequest reads the token from the session cookie, falling back to a Bearer header.
func (v *Verifier) FromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(v.cookie); err == nil && c.Value != "" {
		return v.Verify(c.Value)
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return v.Verify(strings.TrimPrefix(h, "Bearer "))
	}
	return "", apperr.New(apperr.Unauthorized, "missing token")
}

// CookieName is the cookie FromRequest reads.
func (v *Verifier) CookieName() string { return v.cookie }
