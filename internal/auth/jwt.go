package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

// AdminFinder resolves an admin id to an account.
type AdminFinder interface {
	GetAdmin(ctx context.Context, adminID string) (domain.Admin, error)
}

// Claims holds the admin identity carried by an admin token.
type Claims struct {
	AdminID string `json:"adminId"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies HS256 admin tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	admins AdminFinder
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration, admins AdminFinder) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		admins: admins,
		now:    time.Now,
	}
}

// Generate creates a signed token for the admin.
func (s *TokenService) Generate(adminID string) (string, error) {
	now := s.now()
	claims := Claims{
		AdminID: adminID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyAdmin validates the token and checks that the admin still exists.
// Every failure is reported as domain.ErrInvalidCredential except store outages.
func (s *TokenService) VerifyAdmin(ctx context.Context, raw string) (domain.Admin, error) {
	if raw == "" {
		return domain.Admin{}, domain.ErrInvalidCredential
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidCredential
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return domain.Admin{}, domain.ErrInvalidCredential
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.AdminID == "" {
		return domain.Admin{}, domain.ErrInvalidCredential
	}

	admin, err := s.admins.GetAdmin(ctx, claims.AdminID)
	if errors.Is(err, domain.ErrAdminNotFound) {
		return domain.Admin{}, domain.ErrInvalidCredential
	}
	if err != nil {
		return domain.Admin{}, err
	}
	return admin, nil
}
