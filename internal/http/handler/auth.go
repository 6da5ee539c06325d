package handler

import (
	"github.com/gofiber/fiber/v2"

	"fileshare/internal/service"
)

type registerRequest struct {
	FullName string `json:"fullname" validate:"required,min=3,max=100"`
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

// Register handles POST /auth/register.
func Register(users service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		u, err := users.Register(c.UserContext(), service.RegisterInput{
			FullName: req.FullName,
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			return err
		}
		return writeMessage(c, fiber.StatusCreated, "user registered successfully", fiber.Map{"user": u})
	}
}

// Login handles POST /auth/login. The minted token is returned in the
// Authorization response header alongside the user payload.
func Login(users service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		u, t, err := users.Login(c.UserContext(), req.UsernameOrEmail, req.Password)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderAuthorization, "Bearer "+t)
		return writeData(c, fiber.StatusOK, fiber.Map{"user": u})
	}
}
