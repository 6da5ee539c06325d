package middleware

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"fileshare/internal/access"
	"fileshare/internal/apperr"
	"fileshare/internal/audit"
	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// FileLocalKey is the key under which the loaded file is stored in Fiber's
// context locals after a successful permission check, so handlers don't load
// it twice.
const FileLocalKey = "file"

// ValidID rejects requests whose :id path parameter is not syntactically a
// valid resource id, before any database access.
func ValidID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := uuid.Parse(c.Params("id")); err != nil {
			return apperr.New(apperr.InvalidID, "invalid id format")
		}
		return c.Next()
	}
}

// Permission is the file-permission step of the authorization pipeline: it
// loads the target file, runs the access decision engine against the resolved
// caller, audits the decision, and either proceeds or rejects.
type Permission struct {
	files repository.FileRepository
	sink  audit.Sink
}

// NewPermission constructs the permission middleware.
func NewPermission(files repository.FileRepository, sink audit.Sink) *Permission {
	return &Permission{files: files, sink: sink}
}

// FileFromCtx returns the file loaded by a preceding Check.
func FileFromCtx(c *fiber.Ctx) *model.File {
	if v := c.Locals(FileLocalKey); v != nil {
		if f, ok := v.(*model.File); ok {
			return f
		}
	}
	return nil
}

// Check enforces the access policy for the file named by the :id parameter.
// requireOwner marks operations only the owner may perform.
func (p *Permission) Check(requireOwner bool, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileID := c.Params("id")
		callerID := CallerID(c)

		f, err := p.files.FindByID(c.UserContext(), fileID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				p.record(c, action, resource, fileID, callerID, audit.OutcomeRejected, "file not found")
				return apperr.New(apperr.NotFound, "file not found")
			}
			return apperr.Wrap(apperr.StorageFailure, "couldn't retrieve a file by ID", err)
		}

		d := access.Decide(f, callerID, requireOwner)
		if !d.Allowed() {
			p.record(c, action, resource, fileID, callerID, audit.OutcomeRejected, d.Reason())
			kind := apperr.Forbidden
			if d.Status() == fiber.StatusUnauthorized {
				kind = apperr.Unauthorized
			}
			return apperr.New(kind, d.Reason())
		}

		p.record(c, action, resource, fileID, callerID, audit.OutcomeGranted, "")
		c.Locals(FileLocalKey, f)
		return c.Next()
	}
}

func (p *Permission) record(c *fiber.Ctx, action, resource, resourceID, callerID string, outcome audit.Outcome, reason string) {
	p.sink.Record(audit.Event{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		CallerID:   callerID,
		RequestID:  requestIDFromCtx(c),
		Outcome:    outcome,
		Reason:     reason,
	})
}
