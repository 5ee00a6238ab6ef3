/**
 * @description
 * Shared-secret middleware for operational job routes.
 * Job endpoints (drain, enqueue, retention) are infrastructure surfaces called
 * by schedulers and operators, not end users, so they authenticate with a
 * single bearer secret instead of per-user tokens.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - crypto/subtle: constant-time comparison
 *
 * @notes
 * - Outside production an empty secret disables the check so local stacks and
 *   tests run without credentials. In production config validation guarantees
 *   the secret is set.
 */

package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/solestack-project/backend/internal/config"
)

// JobProtected guards operational routes with the shared sync secret
func JobProtected(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := cfg.Sync.JobSecret
		if secret == "" && cfg.Server.Env != "production" {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization header"})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token format"})
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid job secret"})
		}

		return c.Next()
	}
}
