package repository

import (
	"context"
	"errors"
	"time"

	"fileshare/internal/model"
)

// ErrStaleVersion is returned by Update when the row exists but its version
// stamp no longer matches the expected value.
var ErrStaleVersion = errors.New("file version stamp is stale")

// FilePatch holds the mutable metadata fields of a file. Nil pointers are
// untouched; non-nil collections replace the stored value wholesale.
type FilePatch struct {
	Tags         *[]string
	Privacy      *model.Privacy
	InvitedUsers *[]string
	BlockedUsers *[]string
}

// FileRepository defines data access for file metadata using SQL queries only.
type FileRepository interface {
	// Create inserts a new file record and returns the stored row.
	Create(ctx context.Context, f *model.File) (*model.File, error)

	// FindByID returns a file by its ID.
	FindByID(ctx context.Context, id string) (*model.File, error)

	// FindByOwner returns all files owned by ownerID, newest first.
	FindByOwner(ctx context.Context, ownerID string) ([]model.File, error)

	// Update applies the patch and bumps updated_at in one atomic write,
	// guarded by the expected version stamp (millisecond precision). It
	// returns sql.ErrNoRows if the file is absent and ErrStaleVersion if the
	// stamp no longer matches.
	Update(ctx context.Context, id string, expectedUpdatedAt time.Time, patch FilePatch) (*model.File, error)

	// Delete removes the file owned by ownerID. Returns sql.ErrNoRows when no
	// row matches both id and owner.
	Delete(ctx context.Context, id, ownerID string) error

	// IncrementView bumps the view counters for the given region codes.
	IncrementView(ctx context.Context, id, country, subRegion string) error
}
