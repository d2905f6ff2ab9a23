package google

import (
	"fmt"
	"strings"

	"github.com/credit-relay/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Payload holds the identity claims of a Google ID token.
type Payload struct {
	Sub     string
	Email   string
	Name    string
	Picture string
}

// Decoder reads Google ID tokens WITHOUT verifying their signature. It is
// suitable only for the demo sign-in flow; nothing it returns is proof of identity.
type Decoder struct {
	clientID string
}

// NewDecoder returns a decoder. When clientID is set, tokens minted for other
// audiences are rejected.
func NewDecoder(clientID string) *Decoder {
	return &Decoder{clientID: clientID}
}

func (d *Decoder) Decode(credential string) (*Payload, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(credential), claims); err != nil {
		return nil, fmt.Errorf("invalid google credential: %w", domain.ErrUnauthorized)
	}
	if d.clientID != "" {
		aud, err := claims.GetAudience()
		if err != nil || !contains(aud, d.clientID) {
			return nil, fmt.Errorf("google credential issued for another client: %w", domain.ErrUnauthorized)
		}
	}
	sub, _ := claims.GetSubject()
	email, _ := claims["email"].(string)
	if sub == "" || email == "" {
		return nil, fmt.Errorf("google credential lacks sub or email: %w", domain.ErrUnauthorized)
	}
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	return &Payload{Sub: sub, Email: email, Name: name, Picture: picture}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
