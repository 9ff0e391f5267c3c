package hubtoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	Issuer     = "learnhub"
	DefaultTTL = 24 * time.Hour
)

var (
	ErrNoSecret     = errors.New("hubtoken: federation secret not configured")
	ErrInvalidToken = errors.New("hubtoken: invalid or expired token")
)

// Claims identifies the calling hub. Subject is its hub id.
type Claims struct {
	Level string `json:"level,omitempty"`
	jwt.RegisteredClaims
}

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{secret: []byte(strings.TrimSpace(secret)), ttl: ttl, now: time.Now}
}

func (s *Signer) Enabled() bool { return s != nil && len(s.secret) > 0 }

// Mint signs an HS256 token for hubID.
func (s *Signer) Mint(hubID, level string) (string, error) {
	if !s.Enabled() {
		return "", ErrNoSecret
	}
	hubID = strings.TrimSpace(hubID)
	if hubID == "" {
		return "", fmt.Errorf("hubtoken: hub id required")
	}
	now := s.now()
	claims := Claims{
		Level: level,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   hubID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses tokenString and returns its claims.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrNoSecret
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(s.now),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
