package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fileshare/internal/apperr"
	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// MetadataUpdate is a partial update to a file's mutable metadata. Nil fields
// are untouched; non-nil collections replace the stored value wholesale, which
// keeps the conflict semantics simple: two concurrent editors of the same list
// necessarily collide on the version stamp and one must retry.
type MetadataUpdate struct {
	FileID   string
	CallerID string
	// UpdatedAt is the version stamp the client last observed. Compared at
	// millisecond precision; mismatch fails the whole update with Conflict.
	UpdatedAt    time.Time
	Tags         *[]string
	Privacy      *model.Privacy
	InvitedUsers *[]string
	BlockedUsers *[]string
}

// UpdateMetadata applies the optimistic-concurrency update protocol:
// load, compare the observed version stamp, validate list references, then
// persist the replacement fields and bump the stamp in one atomic write.
func (s *fileService) UpdateMetadata(ctx context.Context, in MetadataUpdate) (*model.File, error) {
	existing, err := s.Get(ctx, in.FileID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.New(apperr.NotFound, "file to update not found")
		}
		return nil, err
	}

	if !sameMillisecond(existing.UpdatedAt, in.UpdatedAt) {
		return nil, apperr.New(apperr.Conflict, "file has been modified, get the updated one first").
			WithDetails("the file has been modified since it was last retrieved")
	}

	if in.BlockedUsers != nil {
		if err := s.validateUserRefs(ctx, *in.BlockedUsers, "blockedUsers"); err != nil {
			return nil, err
		}
		// Blocking yourself is rejected, not silently dropped.
		if containsID(*in.BlockedUsers, in.CallerID) {
			return nil, apperr.New(apperr.InvalidSelfReference, "invalid user ID: you can't block yourself from the file")
		}
	}
	if in.InvitedUsers != nil {
		if err := s.validateUserRefs(ctx, *in.InvitedUsers, "invitedUsers"); err != nil {
			return nil, err
		}
		// The owner is implicitly allowed; an own-id entry is normalized away
		// rather than rejected.
		invited := withoutID(*in.InvitedUsers, existing.Owner)
		in.InvitedUsers = &invited
	}
	if in.Privacy != nil && !in.Privacy.Valid() {
		// Double check after the request validation layer.
		return nil, apperr.New(apperr.InvalidRequestBody, "invalid privacy value").
			WithDetails("privacy must be one of public, restricted, private")
	}

	updated, err := s.repo.Update(ctx, in.FileID, in.UpdatedAt, repository.FilePatch{
		Tags:         in.Tags,
		Privacy:      in.Privacy,
		InvitedUsers: in.InvitedUsers,
		BlockedUsers: in.BlockedUsers,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "file to update not found")
		}
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, apperr.New(apperr.Conflict, "file has been modified, get the updated one first").
				WithDetails("the file has been modified since it was last retrieved")
		}
		return nil, apperr.Wrap(apperr.StorageFailure, "file update failed", err)
	}
	return updated, nil
}

// validateUserRefs fails the whole update when any id does not reference an
// existing user.
func (s *fileService) validateUserRefs(ctx context.Context, ids []string, field string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.users.FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return apperr.Wrap(apperr.StorageFailure, "file update failed", err)
	}
	if len(found) != len(uniqueIDs(ids)) {
		return apperr.New(apperr.InvalidReference, "invalid user IDs").
			WithDetails("one or more user IDs in the " + field + " array do not exist")
	}
	return nil
}

// sameMillisecond compares version stamps at millisecond precision, so
// sub-millisecond storage truncation cannot produce false conflicts.
func sameMillisecond(a, b time.Time) bool {
	return a.Truncate(time.Millisecond).Equal(b.Truncate(time.Millisecond))
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func withoutID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
