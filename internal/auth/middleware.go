package auth

import (
	"github.com/gofiber/fiber/v2"
)

const (
	LocalUserID   = "userID"
	LocalUsername = "username"
)

// Middleware rejects requests without a valid session cookie and stores the
// authenticated user in the request locals.
func Middleware(signer *Signer, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(cookieName)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		session, err := signer.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired session",
			})
		}

		c.Locals(LocalUserID, session.UserID)
		c.Locals(LocalUsername, session.Username)
		return c.Next()
	}
}

// UserID returns the authenticated user id set by Middleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
