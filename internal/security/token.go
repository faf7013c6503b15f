package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SamiTelo/API-Football/internal/ids"
)

// Purpose scopes a token to one use. Each purpose is signed with its own secret.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
	PurposeVerify  Purpose = "verify"
	PurposeReset   Purpose = "reset"
)

var (
	ErrSecretMissing = errors.New("token secret not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// Payload is what a token asserts about its subject. Email and Role are only set on access tokens.
type Payload struct {
	UserID int64
	Email  string
	Role   string
}

type Claims struct {
	Purpose Purpose `json:"pur"`
	Email   string  `json:"email,omitempty"`
	Role    string  `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Key struct {
	Secret string
	TTL    time.Duration
}

type TokenSigner struct {
	keys map[Purpose]Key
	now  func() time.Time
}

type SignerOption func(*TokenSigner)

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) SignerOption {
	return func(s *TokenSigner) {
		s.now = now
	}
}

func NewTokenSigner(keys map[Purpose]Key, opts ...SignerOption) *TokenSigner {
	copied := make(map[Purpose]Key, len(keys))
	for purpose, key := range keys {
		copied[purpose] = key
	}

	s := &TokenSigner{
		keys: copied,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenSigner) TTL(purpose Purpose) time.Duration {
	return s.keys[purpose].TTL
}

// Issue signs payload with the secret and lifetime configured for purpose.
func (s *TokenSigner) Issue(purpose Purpose, payload Payload) (string, error) {
	key := s.keys[purpose]
	return s.Sign(purpose, payload, key.Secret, key.TTL)
}

// Verify checks signature, expiry and purpose against the secret configured for purpose.
func (s *TokenSigner) Verify(purpose Purpose, token string) (Payload, error) {
	return s.Parse(purpose, token, s.keys[purpose].Secret)
}

func (s *TokenSigner) Sign(purpose Purpose, payload Payload, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretMissing, purpose)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("invalid ttl for %s token", purpose)
	}

	now := s.now()
	claims := Claims{
		Purpose: purpose,
		Email:   payload.Email,
		Role:    payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(payload.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        ids.New(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func (s *TokenSigner) Parse(purpose Purpose, tokenStr string, secret string) (Payload, error) {
	if secret == "" {
		return Payload{}, fmt.Errorf("%w: %s", ErrSecretMissing, purpose)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Payload{}, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return Payload{}, fmt.Errorf("%w: purpose %q", ErrInvalidToken, claims.Purpose)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Payload{}, fmt.Errorf("%w: subject", ErrInvalidToken)
	}

	return Payload{
		UserID: userID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

// HashToken returns the hex sha256 digest stored server side for refresh tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
