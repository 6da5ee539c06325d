package middleware

import (
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fileshare/internal/apperr"
	"fileshare/internal/audit"
	"fileshare/internal/model"
	repoMocks "fileshare/internal/repository/mocks"
	"fileshare/internal/token"
)

const (
	authOwnerID = "11111111-1111-1111-1111-111111111111"
	authUserID  = "22222222-2222-2222-2222-222222222222"
	authFileID  = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
)

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			e := apperr.From(err)
			return c.Status(e.Kind.Status()).JSON(fiber.Map{"error": e.Message})
		},
	})
}

func newTestTokens(t *testing.T) *token.Service {
	t.Helper()
	tokens, err := token.NewService("test-secret", time.Hour)
	require.NoError(t, err)
	return tokens
}

func issueToken(t *testing.T, tokens *token.Service, id string, role model.Role) string {
	t.Helper()
	tok, err := tokens.Issue(model.Identity{ID: id, Username: "u-" + id, Role: role})
	require.NoError(t, err)
	return tok
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestAuth_Require(t *testing.T) {
	tokens := newTestTokens(t)
	auth := NewAuth(tokens, audit.NopSink{})

	app := newTestApp()
	app.Get("/protected", auth.Require("get", "files"), func(c *fiber.Ctx) error {
		return c.SendString(CallerID(c))
	})

	t.Run("valid token resolves the caller", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, tokens, authUserID, model.RoleUser))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Token abc")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("forged token rejected", func(t *testing.T) {
		forged, err := token.NewService("attacker-secret", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, forged, authUserID, model.RoleAdmin))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAuth_Optional(t *testing.T) {
	tokens := newTestTokens(t)
	auth := NewAuth(tokens, audit.NopSink{})

	app := newTestApp()
	app.Get("/open", auth.Optional(), func(c *fiber.Ctx) error {
		return c.SendString(CallerID(c))
	})

	t.Run("no token proceeds as anonymous", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/open", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("garbage token proceeds as anonymous", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/open", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-token")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("valid token resolves the caller", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/open", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, tokens, authUserID, model.RoleUser))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, authUserID, readBody(t, resp))
	})

	t.Run("token signed with another secret carries no identity", func(t *testing.T) {
		forger, err := token.NewService("attacker-secret", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/open", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, forger, authUserID, model.RoleUser))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Empty(t, readBody(t, resp))
	})
}

func TestAuth_RequireRole(t *testing.T) {
	tokens := newTestTokens(t)
	auth := NewAuth(tokens, audit.NopSink{})

	app := newTestApp()
	app.Get("/admin",
		auth.Require("list", "users"),
		auth.RequireRole("list", "users", model.RoleAdmin),
		func(c *fiber.Ctx) error { return c.SendString("ok") })

	t.Run("admin admitted", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, tokens, authUserID, model.RoleAdmin))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("plain user forbidden", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, tokens, authUserID, model.RoleUser))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}

func TestAuth_RequireSelfOrRole(t *testing.T) {
	tokens := newTestTokens(t)
	auth := NewAuth(tokens, audit.NopSink{})

	app := newTestApp()
	app.Get("/users/:id",
		auth.Require("get", "users"),
		auth.RequireSelfOrRole("get", "users", model.RoleAdmin),
		func(c *fiber.Ctx) error { return c.SendString("ok") })

	t.Run("self admitted", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/users/"+authUserID, nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, tokens, authUserID, model.RoleUser))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("admin admitted on another account", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/users/"+authUserID, nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, tokens, authOwnerID, model.RoleAdmin))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("other user forbidden", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/users/"+authUserID, nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, tokens, authOwnerID, model.RoleUser))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}

func TestValidID(t *testing.T) {
	app := newTestApp()
	app.Get("/things/:id", ValidID(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	t.Run("uuid passes", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/things/"+authFileID, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("non-uuid rejected", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/things/not-a-uuid", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestPermission_Check(t *testing.T) {
	tokens := newTestTokens(t)
	auth := NewAuth(tokens, audit.NopSink{})

	newApp := func(f *model.File, requireOwner bool) (*fiber.App, *repoMocks.MockFileRepository) {
		files := new(repoMocks.MockFileRepository)
		if f != nil {
			files.On("FindByID", mock.Anything, authFileID).Return(f, nil)
		} else {
			files.On("FindByID", mock.Anything, authFileID).Return(nil, sql.ErrNoRows)
		}
		perm := NewPermission(files, audit.NopSink{})

		app := newTestApp()
		app.Get("/files/:id",
			ValidID(),
			auth.Optional(),
			perm.Check(requireOwner, "get", "files"),
			func(c *fiber.Ctx) error {
				return c.SendString(FileFromCtx(c).ID)
			})
		return app, files
	}

	privateFile := &model.File{
		ID:           authFileID,
		Owner:        authOwnerID,
		Privacy:      model.PrivacyPrivate,
		InvitedUsers: []string{authUserID},
	}

	t.Run("owner admitted and file stashed in locals", func(t *testing.T) {
		app, _ := newApp(privateFile, false)
		req := httptest.NewRequest("GET", "/files/"+authFileID, nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, tokens, authOwnerID, model.RoleUser))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("invited user admitted to private file", func(t *testing.T) {
		app, _ := newApp(privateFile, false)
		req := httptest.NewRequest("GET", "/files/"+authFileID, nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, tokens, authUserID, model.RoleUser))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("anonymous gets 401 on private file", func(t *testing.T) {
		app, _ := newApp(privateFile, false)
		resp, err := app.Test(httptest.NewRequest("GET", "/files/"+authFileID, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("uninvited user gets 403 on private file", func(t *testing.T) {
		app, _ := newApp(privateFile, false)
		req := httptest.NewRequest("GET", "/files/"+authFileID, nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, tokens, "55555555-5555-5555-5555-555555555555", model.RoleUser))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("anonymous admitted to public file", func(t *testing.T) {
		public := &model.File{ID: authFileID, Owner: authOwnerID, Privacy: model.PrivacyPublic}
		app, _ := newApp(public, false)
		resp, err := app.Test(httptest.NewRequest("GET", "/files/"+authFileID, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("owner-only op denies invited user", func(t *testing.T) {
		app, _ := newApp(privateFile, true)
		req := httptest.NewRequest("GET", "/files/"+authFileID, nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, tokens, authUserID, model.RoleUser))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("missing file is 404", func(t *testing.T) {
		app, _ := newApp(nil, false)
		req := httptest.NewRequest("GET", "/files/"+authFileID, nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issueToken(t, tokens, authUserID, model.RoleUser))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}
