package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"fileshare/internal/access"
	"fileshare/internal/apperr"
	"fileshare/internal/audit"
	"fileshare/internal/model"
	"fileshare/internal/token"
)

// IdentityLocalKey is the key under which the resolved caller identity is
// stored in Fiber's context locals. Absent key means anonymous caller.
const IdentityLocalKey = "identity"

// Auth resolves the caller identity from the Authorization header. It is the
// identity-resolution step of the per-request authorization pipeline: hard
// mode rejects requests without a valid token, soft mode degrades them to
// anonymous so the access engine can still admit public resources.
type Auth struct {
	tokens *token.Service
	sink   audit.Sink
}

// NewAuth constructs the auth middleware with its injected collaborators.
func NewAuth(tokens *token.Service, sink audit.Sink) *Auth {
	return &Auth{tokens: tokens, sink: sink}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// IdentityFromCtx returns the resolved identity, or nil for anonymous callers.
func IdentityFromCtx(c *fiber.Ctx) *model.Identity {
	if v := c.Locals(IdentityLocalKey); v != nil {
		if id, ok := v.(*model.Identity); ok {
			return id
		}
	}
	return nil
}

// CallerID returns the resolved caller id, or "" for anonymous callers.
func CallerID(c *fiber.Ctx) string {
	if id := IdentityFromCtx(c); id != nil {
		return id.ID
	}
	return ""
}

// Require is hard-mode identity resolution: the token must verify, otherwise
// the request is rejected with 401 and the rejection is audited.
func (a *Auth) Require(action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ident, err := a.tokens.Verify(bearerToken(c))
		if err != nil {
			a.record(c, action, resource, "", audit.OutcomeRejected, reasonForTokenErr(err))
			return apperr.Wrap(apperr.Unauthorized, "unauthorized: user authentication failed", err)
		}
		c.Locals(IdentityLocalKey, ident)
		return c.Next()
	}
}

// Optional is soft-mode identity resolution: the token is verified exactly as
// in hard mode, but any failure leaves the caller anonymous instead of
// rejecting, deferring the accept/reject decision to the access engine. A
// forged or expired token never carries an identity.
func (a *Auth) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ident, err := a.tokens.Verify(bearerToken(c)); err == nil {
			c.Locals(IdentityLocalKey, ident)
		}
		return c.Next()
	}
}

// RequireRole gates pure user-management operations on role membership.
// It expects hard-mode resolution to have run already: no identity is 401,
// insufficient role is 403. No file entity is involved.
func (a *Auth) RequireRole(action, resource string, roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ident := IdentityFromCtx(c)
		if ident == nil {
			a.record(c, action, resource, "", audit.OutcomeRejected, "user is not authenticated")
			return apperr.New(apperr.Unauthorized, "user is not authenticated")
		}
		if !access.RoleAllowed(ident.Role, roles...) {
			a.record(c, action, resource, ident.ID, audit.OutcomeRejected, "insufficient role")
			return apperr.New(apperr.Forbidden, "user doesn't have sufficient permissions")
		}
		a.record(c, action, resource, ident.ID, audit.OutcomeGranted, "")
		return c.Next()
	}
}

// RequireSelfOrRole admits the account owner identified by the :id path
// parameter, or any caller whose role is in the allowed set.
func (a *Auth) RequireSelfOrRole(action, resource string, roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ident := IdentityFromCtx(c)
		if ident == nil {
			a.record(c, action, resource, "", audit.OutcomeRejected, "user is not authenticated")
			return apperr.New(apperr.Unauthorized, "user is not authenticated")
		}
		if ident.ID != c.Params("id") && !access.RoleAllowed(ident.Role, roles...) {
			a.record(c, action, resource, ident.ID, audit.OutcomeRejected, "not the account owner")
			return apperr.New(apperr.Forbidden, "user doesn't have sufficient permissions")
		}
		a.record(c, action, resource, ident.ID, audit.OutcomeGranted, "")
		return c.Next()
	}
}

func (a *Auth) record(c *fiber.Ctx, action, resource, callerID string, outcome audit.Outcome, reason string) {
	a.sink.Record(audit.Event{
		Action:     action,
		Resource:   resource,
		ResourceID: c.Params("id"),
		CallerID:   callerID,
		RequestID:  requestIDFromCtx(c),
		Outcome:    outcome,
		Reason:     reason,
	})
}

func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func reasonForTokenErr(err error) string {
	switch {
	case errors.Is(err, token.ErrTokenMissing):
		return "token missing"
	case errors.Is(err, token.ErrTokenExpired):
		return "token expired"
	default:
		return "token invalid"
	}
}
