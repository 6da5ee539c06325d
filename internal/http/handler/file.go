package handler

import (
	"math"
	"time"

	"github.com/gofiber/fiber/v2"

	"fileshare/internal/apperr"
	"fileshare/internal/http/middleware"
	"fileshare/internal/model"
	"fileshare/internal/service"
)

// Geo headers consulted when recording file views. Populated by the edge
// proxy; missing values count under "unknown".
const (
	geoCountryHeader = "X-Geo-Country"
	geoRegionHeader  = "X-Geo-Region"
)

// updateFileRequest is the shared body shape for the metadata update
// endpoints. UpdatedAt is the version stamp the client last observed; each
// endpoint reads only its own field.
type updateFileRequest struct {
	UpdatedAt    time.Time `json:"updatedAt" validate:"required"`
	Tags         *[]string `json:"tags"`
	Privacy      *string   `json:"privacy" validate:"omitempty,oneof=public restricted private"`
	InvitedUsers *[]string `json:"invitedUsers" validate:"omitempty,dive,uuid"`
	BlockedUsers *[]string `json:"blockedUsers" validate:"omitempty,dive,uuid"`
}

// ListFiles handles GET /files: the caller's own files.
func ListFiles(files service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fs, err := files.ListByOwner(c.UserContext(), middleware.CallerID(c))
		if err != nil {
			return err
		}
		return writeData(c, fiber.StatusOK, fs)
	}
}

// UploadFiles handles POST /files (multipart/form-data, field name: files).
func UploadFiles(files service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return apperr.Wrap(apperr.InvalidRequestBody, "no file uploaded", err)
		}
		uploads := form.File["files"]
		if len(uploads) == 0 {
			return apperr.New(apperr.InvalidRequestBody, "no file uploaded")
		}
		tags := form.Value["tags"]

		ownerID := middleware.CallerID(c)
		stored := make([]*model.File, 0, len(uploads))
		for _, fh := range uploads {
			src, err := fh.Open()
			if err != nil {
				return apperr.Wrap(apperr.InvalidRequestBody, "cannot open uploaded file", err)
			}
			ct := fh.Header.Get("Content-Type")
			if ct == "" {
				ct = "application/octet-stream"
			}
			f, err := files.Upload(c.UserContext(), service.UploadInput{
				OwnerID:      ownerID,
				OriginalName: fh.Filename,
				MimeType:     ct,
				Size:         fh.Size,
				Tags:         tags,
				Content:      src,
			})
			src.Close()
			if err != nil {
				return err
			}
			stored = append(stored, f)
		}
		return writeMessage(c, fiber.StatusCreated, "files uploaded successfully", stored)
	}
}

// GetFile handles GET /files/:id, returning metadata for a file the
// permission middleware already loaded and admitted.
func GetFile() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return writeData(c, fiber.StatusOK, middleware.FileFromCtx(c))
	}
}

// ViewFile handles GET /files/view/:id, streaming the blob content and
// recording the view. The view bump is best-effort and never fails the read.
func ViewFile(files service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := middleware.FileFromCtx(c)
		rc, err := files.Open(c.UserContext(), f)
		if err != nil {
			return err
		}
		_ = files.RecordView(c.UserContext(), f.ID, c.Get(geoCountryHeader), c.Get(geoRegionHeader))

		c.Set(fiber.HeaderContentType, f.MimeType)
		c.Set(fiber.HeaderContentDisposition, `inline; filename="`+f.OriginalName+`"`)
		// int(f.Size) would wrap on 32-bit platforms for blobs over 2 GiB;
		// fall back to chunked streaming there.
		size := -1
		if f.Size >= 0 && f.Size <= math.MaxInt {
			size = int(f.Size)
		}
		return c.SendStream(rc, size)
	}
}

// DeleteFile handles DELETE /files/:id (owner only, enforced upstream).
func DeleteFile(files service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := files.Delete(c.UserContext(), c.Params("id"), middleware.CallerID(c)); err != nil {
			return err
		}
		return writeMessage(c, fiber.StatusOK, "file deleted successfully", nil)
	}
}

// updateField selects which metadata field an update endpoint replaces.
type updateField int

const (
	fieldTags updateField = iota
	fieldPrivacy
	fieldInvitedUsers
	fieldBlockedUsers
)

// SetTags handles PUT /files/set-tags/:id.
func SetTags(files service.FileService) fiber.Handler {
	return updateFileField(files, fieldTags)
}

// SetPrivacy handles PUT /files/set-privacy/:id.
func SetPrivacy(files service.FileService) fiber.Handler {
	return updateFileField(files, fieldPrivacy)
}

// SetInvitedUsers handles PUT /files/set-invited-users/:id.
func SetInvitedUsers(files service.FileService) fiber.Handler {
	return updateFileField(files, fieldInvitedUsers)
}

// SetBlockedUsers handles PUT /files/set-blocked-users/:id.
func SetBlockedUsers(files service.FileService) fiber.Handler {
	return updateFileField(files, fieldBlockedUsers)
}

// updateFileField handles the PUT /files/set-*/:id endpoints. Each endpoint
// replaces exactly one mutable field under the optimistic-concurrency
// protocol; other fields in the body are ignored.
func updateFileField(files service.FileService, field updateField) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req updateFileRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}

		upd := service.MetadataUpdate{
			FileID:    c.Params("id"),
			CallerID:  middleware.CallerID(c),
			UpdatedAt: req.UpdatedAt,
		}
		switch field {
		case fieldTags:
			if req.Tags == nil {
				return apperr.New(apperr.InvalidRequestBody, "tags field is required")
			}
			upd.Tags = req.Tags
		case fieldPrivacy:
			if req.Privacy == nil {
				return apperr.New(apperr.InvalidRequestBody, "privacy field is required")
			}
			p := model.Privacy(*req.Privacy)
			upd.Privacy = &p
		case fieldInvitedUsers:
			if req.InvitedUsers == nil {
				return apperr.New(apperr.InvalidRequestBody, "invitedUsers field is required")
			}
			upd.InvitedUsers = req.InvitedUsers
		case fieldBlockedUsers:
			if req.BlockedUsers == nil {
				return apperr.New(apperr.InvalidRequestBody, "blockedUsers field is required")
			}
			upd.BlockedUsers = req.BlockedUsers
		}

		f, err := files.UpdateMetadata(c.UserContext(), upd)
		if err != nil {
			return err
		}
		return writeData(c, fiber.StatusOK, f)
	}
}
