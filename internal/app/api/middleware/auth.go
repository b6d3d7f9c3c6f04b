package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/samber/lo"

	"github.com/fatflowers/checkout/internal/app/service/checkout"
	"github.com/fatflowers/checkout/pkg/response"
)

const (
	ContextSubject = "subject"
	ContextActor   = "actor"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the operator claims carried by bearer tokens. SellerID is set
// for seller tokens only.
type Claims struct {
	Role     string `json:"role"`
	SellerID string `json:"seller_id,omitempty"`
	jwt.StandardClaims
}

// SignToken issues an HS256 token. Used by ops tooling and tests.
func SignToken(secret, subject, role, sellerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:     role,
		SellerID: sellerID,
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" || claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// JWT validates the bearer token and stores the caller as a checkout.Actor.
// An empty secret rejects every request.
func JWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			unauthorized(c, "missing bearer token")
			return
		}
		if secret == "" {
			unauthorized(c, "authentication not configured")
			return
		}
		claims, err := parseToken(secret, strings.TrimSpace(raw))
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ContextSubject, claims.Subject)
		c.Set(ContextActor, checkout.Actor{Subject: claims.Subject, Role: claims.Role, SellerID: claims.SellerID})
		c.Next()
	}
}

// RequireRole must run after JWT.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}
		if !lo.Contains(roles, actor.Role) {
			c.AbortWithStatusJSON(response.APIResponseCodeForbidden.HTTPStatus(),
				response.Fail(response.APIResponseCodeForbidden, "role not allowed"))
			return
		}
		c.Next()
	}
}

func ActorFrom(c *gin.Context) (checkout.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return checkout.Actor{}, false
	}
	a, ok := v.(checkout.Actor)
	return a, ok
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(response.APIResponseCodeUnauthorized.HTTPStatus(),
		response.Fail(response.APIResponseCodeUnauthorized, msg))
}
