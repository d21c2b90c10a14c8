package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/internal/auth"
	"github.com/rainfeed/backend/pkg/logger"
)

type AuthHandler struct {
	service    *auth.Service
	signer     *auth.Signer
	cookieName string
}

func NewAuthHandler(service *auth.Service, signer *auth.Signer, cookieName string) *AuthHandler {
	return &AuthHandler{
		service:    service,
		signer:     signer,
		cookieName: cookieName,
	}
}

// HandleAuth logs a user in, or registers when action is "register".
func (h *AuthHandler) HandleAuth(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Action   string `json:"action"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Username and password required",
		})
	}

	var token, username string
	if req.Action == "register" {
		tok, newUser, regErr := h.service.Register(c.Context(), req.Username, req.Password)
		if regErr != nil {
			if errors.Is(regErr, auth.ErrUsernameTaken) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "Username already taken",
				})
			}
			logger.Error("Failed to register user", zap.Error(regErr))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to create account",
			})
		}
		token, username = tok, newUser.Username
	} else {
		tok, user, loginErr := h.service.Login(c.Context(), req.Username, req.Password)
		if loginErr != nil {
			if errors.Is(loginErr, auth.ErrInvalidCredentials) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid username or password",
				})
			}
			logger.Error("Failed to log in user", zap.Error(loginErr))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to log in",
			})
		}
		token, username = tok, user.Username
	}

	h.setSessionCookie(c, token)
	return c.JSON(fiber.Map{
		"success":  true,
		"username": username,
	})
}

// HandleStatus reports whether the request carries a valid session.
func (h *AuthHandler) HandleStatus(c *fiber.Ctx) error {
	token := c.Cookies(h.cookieName)
	if token == "" {
		return c.JSON(fiber.Map{"authenticated": false})
	}

	session, err := h.signer.Verify(token)
	if err != nil {
		return c.JSON(fiber.Map{"authenticated": false})
	}

	return c.JSON(fiber.Map{
		"authenticated": true,
		"userId":        session.UserID,
		"username":      session.Username,
	})
}

func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
		Path:     "/",
	})
	return c.JSON(fiber.Map{"success": true})
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
		Path:     "/",
	})
}
