package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/credit-relay/internal/config"
	"github.com/credit-relay/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var errNoClaims = errors.New("session token carries no member claims")

// Claims holds the session token payload.
type Claims struct {
	MemberID string `json:"member_id"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 member session tokens.
type Provider struct {
	signKey   *rsa.PrivateKey
	verifyKey *rsa.PublicKey
	ttl       time.Duration
	now       func() time.Time
}

// NewProvider loads the PEM key pair named by cfg.
func NewProvider(cfg *config.Config) (*Provider, error) {
	var priv *rsa.PrivateKey
	if err := readPEM(cfg.JWTPrivateKeyPath, "private", func(b []byte) (err error) {
		priv, err = jwt.ParseRSAPrivateKeyFromPEM(b)
		return err
	}); err != nil {
		return nil, err
	}
	var pub *rsa.PublicKey
	if err := readPEM(cfg.JWTPublicKeyPath, "public", func(b []byte) (err error) {
		pub, err = jwt.ParseRSAPublicKeyFromPEM(b)
		return err
	}); err != nil {
		return nil, err
	}
	return NewProviderFromKeys(priv, pub, cfg.JWTExpiry), nil
}

func readPEM(path, which string, parse func([]byte) error) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s key: %w", which, err)
	}
	if err := parse(b); err != nil {
		return fmt.Errorf("parse %s key %s: %w", which, path, err)
	}
	return nil
}

func NewProviderFromKeys(priv *rsa.PrivateKey, pub *rsa.PublicKey, ttl time.Duration) *Provider {
	return &Provider{signKey: priv, verifyKey: pub, ttl: ttl, now: time.Now}
}

// Sign issues a session token for m, subject set to the member id.
func (p *Provider) Sign(m *domain.Member) (string, error) {
	issued := p.now()
	return jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		MemberID: m.MemberID,
		Email:    m.Email,
		Provider: m.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   m.MemberID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(p.ttl)),
		},
	}).SignedString(p.signKey)
}

// Verify checks signature and expiry against the provider clock.
func (p *Provider) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return p.verifyKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.MemberID == "" {
		return nil, errNoClaims
	}
	return claims, nil
}
