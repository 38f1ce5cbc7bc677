package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/chromatech/advisor/internal/models"
	"github.com/chromatech/advisor/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// JWTConfig verifies Supabase access tokens. Issuer and Audience are optional.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type supabaseClaims struct {
	jwt.RegisteredClaims
	Role        string         `json:"role"`         // usually "authenticated" / "anon"
	AppMetadata map[string]any `json:"app_metadata"` // put {"role":"admin"} here
}

var (
	errNoToken     = errors.New("missing bearer token")
	errBadToken    = errors.New("invalid token")
	errBadIssuer   = errors.New("invalid token issuer")
	errBadAudience = errors.New("invalid token audience")
	errNoSubject   = errors.New("missing subject")
)

// JWTAuth rejects requests without a valid bearer token.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apiError{
				Code:    utils.CodeInternal,
				Message: "SUPABASE_JWT_SECRET is not set",
			})
			return
		}

		userID, role, err := cfg.authenticate(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: err.Error(),
			})
			return
		}

		c.Set("user_id", userID)
		c.Set("role", role)
		c.Next()
	}
}

// OptionalJWT identifies the caller when a valid bearer token is present and
// leaves the request anonymous otherwise. A present but invalid token is
// rejected so clients notice expired sessions.
func OptionalJWT(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || cfg.Secret == "" {
			c.Next()
			return
		}

		userID, role, err := cfg.authenticate(header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: err.Error(),
			})
			return
		}

		c.Set("user_id", userID)
		c.Set("role", role)
		c.Next()
	}
}

func (cfg JWTConfig) authenticate(header string) (userID, role string, err error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "", errNoToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return "", "", errNoToken
	}

	claims := &supabaseClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || tok == nil || !tok.Valid {
		return "", "", errBadToken
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return "", "", errBadIssuer
	}
	if cfg.Audience != "" && !slices.Contains(claims.Audience, cfg.Audience) {
		return "", "", errBadAudience
	}

	// Supabase puts the user UUID in "sub"
	if claims.Subject == "" {
		return "", "", errNoSubject
	}

	role = string(models.RoleMember)
	if v, ok := claims.AppMetadata["role"].(string); ok && v != "" {
		role = v
	}
	return claims.Subject, role, nil
}
