package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/storefront/gomicro/logger"
	"go.uber.org/zap"
)

// CredentialKey is the echo context key holding the verified credential
const CredentialKey = "credential"

// TokenVerifier turns a bearer token into a verified credential.
type TokenVerifier interface {
	VerifyToken(token string) (interface{}, error)
}

// BearerAuthMiddleware rejects requests without a valid bearer token and stores the
// verified credential under CredentialKey.
func BearerAuthMiddleware(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing authorization header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Warn("Invalid authorization header format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}

			credential, err := verifier.VerifyToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}

			c.Set(CredentialKey, credential)
			return next(c)
		}
	}
}
