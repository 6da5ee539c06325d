package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"fileshare/internal/apperr"
	"fileshare/internal/model"
	"fileshare/internal/service"
)

type updateUserRequest struct {
	FullName *string `json:"fullname" validate:"omitempty,min=3,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
}

type isValidUserRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"required"`
}

// ListUsers handles GET /users with limit & offset.
func ListUsers(users service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return apperr.New(apperr.InvalidRequestBody, "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return apperr.New(apperr.InvalidRequestBody, "invalid offset")
		}
		res, err := users.List(c.UserContext(), limit, offset)
		if err != nil {
			return err
		}
		return writeData(c, fiber.StatusOK, res)
	}
}

// GetUser handles GET /users/:id.
func GetUser(users service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := users.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return writeData(c, fiber.StatusOK, fiber.Map{"user": u})
	}
}

// CreateUser handles POST /users: admin-created accounts with an explicit role.
func CreateUser(users service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			registerRequest
			Role string `json:"role" validate:"omitempty,oneof=admin user guest"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}
		u, err := users.Register(c.UserContext(), service.RegisterInput{
			FullName: req.FullName,
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
			Role:     model.Role(req.Role),
		})
		if err != nil {
			return err
		}
		return writeMessage(c, fiber.StatusCreated, "user created successfully", fiber.Map{"user": u})
	}
}

// UpdateUser handles PUT /users/:id.
func UpdateUser(users service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req updateUserRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		u, err := users.Update(c.UserContext(), c.Params("id"), service.UserPatch{
			FullName: req.FullName,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			return err
		}
		return writeData(c, fiber.StatusOK, fiber.Map{"user": u})
	}
}

// DeleteUser handles DELETE /users/:id.
func DeleteUser(users service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := users.Delete(c.UserContext(), c.Params("id")); err != nil {
			return err
		}
		return writeMessage(c, fiber.StatusOK, "user deleted successfully", nil)
	}
}

// IsValidUser handles POST /users/is-valid-user: lets an authenticated caller
// resolve an exact username or email to an account id before inviting or
// blocking it.
func IsValidUser(users service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req isValidUserRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		ok, id, err := users.IsValidUser(c.UserContext(), req.UsernameOrEmail)
		if err != nil {
			return err
		}
		return writeData(c, fiber.StatusOK, fiber.Map{"isValid": ok, "id": id})
	}
}
