package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const upsellAudience = "checkout-upsell"

var errUpsellToken = errors.New("invalid upsell token")

// upsellSecret prefers checkout.upsell_secret and falls back to the API
// signing secret. Empty disables one-click upsells.
func (s *Service) upsellSecret() string {
	if s.cfg.Checkout.UpsellSecret != "" {
		return s.cfg.Checkout.UpsellSecret
	}
	return s.cfg.Auth.JWTSecret
}

func (s *Service) upsellWindow() time.Duration {
	if s.cfg.Checkout.UpsellWindow > 0 {
		return s.cfg.Checkout.UpsellWindow
	}
	return 30 * time.Minute
}

// issueUpsellToken binds a one-click offer to the parent transaction. It is
// only handed to the buyer that created the parent, never through status
// polling.
func (s *Service) issueUpsellToken(parentID string) (string, error) {
	secret := s.upsellSecret()
	if secret == "" {
		return "", nil
	}
	now := s.now()
	claims := jwt.StandardClaims{
		Subject:   parentID,
		Audience:  upsellAudience,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.upsellWindow()).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *Service) verifyUpsellToken(token, parentID string) error {
	secret := s.upsellSecret()
	if secret == "" || token == "" {
		return errUpsellToken
	}
	claims := &jwt.StandardClaims{}
	parser := &jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}, SkipClaimsValidation: true}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}); err != nil {
		return fmt.Errorf("%w: %v", errUpsellToken, err)
	}
	now := s.now().Unix()
	switch {
	case !claims.VerifyAudience(upsellAudience, true):
		return fmt.Errorf("%w: audience", errUpsellToken)
	case !claims.VerifyExpiresAt(now, true):
		return fmt.Errorf("%w: expired", errUpsellToken)
	case claims.Subject != parentID:
		return fmt.Errorf("%w: issued for another transaction", errUpsellToken)
	}
	return nil
}
