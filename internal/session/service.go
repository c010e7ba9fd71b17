// Package session issues and verifies signed session tokens for authenticated farmers.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PrathmeshKudale/krishi-mitra/internal/user/entity"
)

var (
	ErrInvalidToken  = errors.New("invalid session token")
	ErrMissingSecret = errors.New("session secret is required")
)

// Config holds token signing settings.
type Config struct {
	Secret string        `yaml:"secret"`
	Issuer string        `yaml:"issuer"`
	TTL    time.Duration `yaml:"ttl"`
}

// Identity is the caller attached to a request once its token is verified.
type Identity struct {
	UserID      string `json:"id"`
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
	Location    string `json:"location"`
}

type claims struct {
	Identifier  string `json:"identifier"`
	DisplayName string `json:"name"`
	Location    string `json:"location"`
	jwt.RegisteredClaims
}

// Service signs tokens with HS256.
type Service struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "krishi-mitra"
	}
	return &Service{key: []byte(cfg.Secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue creates a signed token for the authenticated profile.
func (s *Service) Issue(p *entity.Profile) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	c := claims{
		Identifier:  p.Identifier,
		DisplayName: p.DisplayName,
		Location:    p.Location,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature, issuer and expiry and returns the identity.
func (s *Service) Parse(token string) (*Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{
		UserID:      c.Subject,
		Identifier:  c.Identifier,
		DisplayName: c.DisplayName,
		Location:    c.Location,
	}, nil
}
