package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimEmail = "email"
	ClaimRole  = "role"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService signs and verifies HS256 tokens carrying email and role claims.
// The key is fixed at construction.
type TokenService struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenService{key: key, ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the service that reads time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	return &TokenService{key: s.key, ttl: s.ttl, now: now}
}

func (s *TokenService) Issue(email, role string) (string, error) {
	issuedAt := s.now()
	claims := jwt.MapClaims{
		"sub":      email,
		ClaimEmail: email,
		ClaimRole:  role,
		"jti":      uuid.NewString(),
		"iat":      issuedAt.Unix(),
		"exp":      issuedAt.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

func (s *TokenService) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Claim verifies the token and returns the named string claim.
func (s *TokenService) Claim(tokenString, name string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}
	value, ok := claims[name].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: missing claim %q", ErrInvalidToken, name)
	}
	return value, nil
}

// Identity verifies the token once and returns its email and role claims.
func (s *TokenService) Identity(tokenString string) (email, role string, err error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", "", err
	}
	email, _ = claims[ClaimEmail].(string)
	role, _ = claims[ClaimRole].(string)
	if email == "" {
		return "", "", fmt.Errorf("%w: missing claim %q", ErrInvalidToken, ClaimEmail)
	}
	if role == "" {
		return "", "", fmt.Errorf("%w: missing claim %q", ErrInvalidToken, ClaimRole)
	}
	return email, role, nil
}
