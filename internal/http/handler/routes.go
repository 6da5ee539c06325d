package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fileshare/internal/http/middleware"
	"fileshare/internal/model"
	"fileshare/internal/service"
)

// HealthCheck reports DB connectivity.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// RegisterRoutes attaches all HTTP routes to the provided Fiber app. Each
// protected route carries its own authorization chain: identity resolution
// first, then either a role gate or the per-file permission check.
func RegisterRoutes(app *fiber.App, db *sql.DB, users service.UserService, files service.FileService, auth *middleware.Auth, perm *middleware.Permission) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Registration and login are the only unauthenticated user endpoints.
	authGroup := app.Group("/auth")
	authGroup.Post("/register", Register(users))
	authGroup.Post("/login", Login(users))

	// User management is admin territory, except reading and updating your
	// own account.
	userGroup := app.Group("/users")
	userGroup.Get("/",
		auth.Require("list", "users"),
		auth.RequireRole("list", "users", model.RoleAdmin),
		ListUsers(users))
	userGroup.Post("/",
		auth.Require("create", "users"),
		auth.RequireRole("create", "users", model.RoleAdmin),
		CreateUser(users))
	userGroup.Post("/is-valid-user",
		auth.Require("validate", "users"),
		IsValidUser(users))
	userGroup.Get("/:id",
		middleware.ValidID(),
		auth.Require("get", "users"),
		auth.RequireSelfOrRole("get", "users", model.RoleAdmin),
		GetUser(users))
	userGroup.Put("/:id",
		middleware.ValidID(),
		auth.Require("update", "users"),
		auth.RequireSelfOrRole("update", "users", model.RoleAdmin),
		UpdateUser(users))
	userGroup.Delete("/:id",
		middleware.ValidID(),
		auth.Require("delete", "users"),
		auth.RequireSelfOrRole("delete", "users", model.RoleAdmin),
		DeleteUser(users))

	fileGroup := app.Group("/files")
	fileGroup.Get("/",
		auth.Require("list", "files"),
		ListFiles(files))
	fileGroup.Post("/",
		auth.Require("upload", "files"),
		UploadFiles(files))

	// Reads run the access engine with soft identity resolution so public
	// files stay reachable without a token.
	fileGroup.Get("/view/:id",
		middleware.ValidID(),
		auth.Optional(),
		perm.Check(false, "view", "files"),
		ViewFile(files))
	fileGroup.Get("/:id",
		middleware.ValidID(),
		auth.Optional(),
		perm.Check(false, "get", "files"),
		GetFile())

	// Mutations are owner-only and use hard identity resolution.
	fileGroup.Delete("/:id",
		middleware.ValidID(),
		auth.Require("delete", "files"),
		perm.Check(true, "delete", "files"),
		DeleteFile(files))
	fileGroup.Put("/set-tags/:id",
		middleware.ValidID(),
		auth.Require("set-tags", "files"),
		perm.Check(true, "set-tags", "files"),
		SetTags(files))
	fileGroup.Put("/set-privacy/:id",
		middleware.ValidID(),
		auth.Require("set-privacy", "files"),
		perm.Check(true, "set-privacy", "files"),
		SetPrivacy(files))
	fileGroup.Put("/set-invited-users/:id",
		middleware.ValidID(),
		auth.Require("set-invited-users", "files"),
		perm.Check(true, "set-invited-users", "files"),
		SetInvitedUsers(files))
	fileGroup.Put("/set-blocked-users/:id",
		middleware.ValidID(),
		auth.Require("set-blocked-users", "files"),
		perm.Check(true, "set-blocked-users", "files"),
		SetBlockedUsers(files))
}
