// Package magiclink signs and verifies resumable session access tokens.
//
// A token is base64url(json payload) + "." + base64url(HMAC-SHA256 of the
// encoded payload). Verification never panics and reports any defect as an
// invalid token.
package magiclink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultMaxAge = 7 * 24 * time.Hour
	maxClockSkew  = 5 * time.Minute
)

var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrMissingKey   = errors.New("magic link secret is required")
)

// Claims is the signed content of a token.
type Claims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email"`
	Timestamp int64  `json:"ts"`
}

// IssuedAt returns the signing time.
func (c Claims) IssuedAt() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// Signer issues and checks tokens with a server-held secret.
type Signer struct {
	secret  []byte
	baseURL string
	maxAge  time.Duration
	now     func() time.Time
}

// Options configures a Signer.
type Options struct {
	Secret  string
	BaseURL string
	MaxAge  time.Duration
	Now     func() time.Time
}

// NewSigner validates opts and builds a Signer.
func NewSigner(opts Options) (*Signer, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, ErrMissingKey
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Signer{
		secret:  []byte(opts.Secret),
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		maxAge:  maxAge,
		now:     now,
	}, nil
}

// Sign returns a token for the session and email, stamped with the current time.
func (s *Signer) Sign(sessionID, email string) (string, error) {
	payload, err := json.Marshal(Claims{
		SessionID: sessionID,
		Email:     email,
		Timestamp: s.now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + s.mac(encoded), nil
}

// Verify checks the signature and age of token and returns its claims.
func (s *Signer) Verify(token string) (Claims, error) {
	if s == nil || len(s.secret) == 0 {
		return Claims{}, ErrInvalidToken
	}
	encoded, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || encoded == "" || sig == "" || strings.Contains(sig, ".") {
		return Claims{}, ErrInvalidToken
	}
	expected := s.mac(encoded)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return Claims{}, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.SessionID == "" || claims.Timestamp <= 0 {
		return Claims{}, ErrInvalidToken
	}
	now := s.now()
	issued := claims.IssuedAt()
	if issued.After(now.Add(maxClockSkew)) || now.Sub(issued) > s.maxAge {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// URL signs a token and returns the user-facing resume link.
func (s *Signer) URL(sessionID, email string) (string, error) {
	token, err := s.Sign(sessionID, email)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/s/" + url.PathEscape(sessionID) + "?token=" + url.QueryEscape(token), nil
}

func (s *Signer) mac(encoded string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
