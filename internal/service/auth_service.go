package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carwash/internal/config"
	"carwash/internal/domain"
	"carwash/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotAuthorized   = errors.New("not authorized (not an admin)")
	ErrTooManyAttempts = errors.New("too many login attempts")
	ErrInvalidToken    = errors.New("invalid or expired token")
)

// AuthService checks operator credentials against the configured admin set
// and issues HS256 session tokens.
type AuthService struct {
	cfg    config.AuthConfig
	locks  domain.LockRepository
	logger *zerolog.Logger
	admins map[string]string // lowercased email -> bcrypt hash
}

func NewAuthService(cfg config.AuthConfig, locks domain.LockRepository, logger *zerolog.Logger) *AuthService {
	admins := make(map[string]string, len(cfg.Admins))
	for _, a := range cfg.Admins {
		admins[strings.ToLower(strings.TrimSpace(a.Email))] = a.PasswordHash
	}
	return &AuthService{cfg: cfg, locks: locks, logger: logger, admins: admins}
}

// IsAdmin reports membership in the configured admin set.
func (s *AuthService) IsAdmin(email string) bool {
	_, ok := s.admins[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Login verifies the password and returns a signed token. An unknown email
// and a wrong password produce the same error so the endpoint does not leak
// which admins exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	allowed, err := s.locks.CheckRateLimit(ctx, "login:"+email,
		models.LoginRateLimitAttempts, models.LoginRateLimitWindow*time.Second)
	if err != nil {
		s.logger.Error().Err(err).Msg("login rate limit check failed")
	} else if !allowed {
		return "", ErrTooManyAttempts
	}

	hash, ok := s.admins[email]
	if !ok {
		return "", ErrNotAuthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", ErrNotAuthorized
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  email,
		"role": "admin",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Duration(s.cfg.TokenTTLMinutes) * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a session token and returns the operator email.
func (s *AuthService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
