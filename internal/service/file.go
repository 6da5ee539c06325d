package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"fileshare/internal/apperr"
	"fileshare/internal/model"
	"fileshare/internal/repository"
	"fileshare/internal/storage"
)

// UploadInput carries one file of a validated upload request.
type UploadInput struct {
	OwnerID      string
	OriginalName string
	MimeType     string
	Size         int64
	Tags         []string
	Content      io.Reader
}

// FileService defines the use cases for handling files and their metadata.
type FileService interface {
	// Upload stores the content in the blob store under an opaque generated
	// key, then saves the metadata row; the blob is removed again if the
	// metadata save fails. New files are private with empty invite/block lists.
	Upload(ctx context.Context, in UploadInput) (*model.File, error)

	// ListByOwner returns the caller's own files.
	ListByOwner(ctx context.Context, ownerID string) ([]model.File, error)

	// Get returns a single file's metadata by its ID.
	Get(ctx context.Context, id string) (*model.File, error)

	// Open returns a streaming reader over the file's content.
	Open(ctx context.Context, f *model.File) (io.ReadCloser, error)

	// RecordView bumps the view counters for the given region codes.
	// Best-effort: failures are reported but must not fail the read.
	RecordView(ctx context.Context, id, country, subRegion string) error

	// Delete removes the blob first and the metadata row only afterwards, so
	// a failed blob removal leaves the file intact.
	Delete(ctx context.Context, id, ownerID string) error

	// UpdateMetadata applies a partial update to the mutable metadata fields
	// under the optimistic-concurrency protocol.
	UpdateMetadata(ctx context.Context, in MetadataUpdate) (*model.File, error)
}

// fileService is a concrete implementation of FileService.
type fileService struct {
	store storage.Storage
	repo  repository.FileRepository
	users repository.UserRepository
}

// NewFileService constructs a new FileService.
func NewFileService(store storage.Storage, repo repository.FileRepository, users repository.UserRepository) FileService {
	return &fileService{store: store, repo: repo, users: users}
}

// blobKey is the object-store key for a stored name.
func blobKey(storedName string) string {
	return "files/" + storedName
}

func (s *fileService) Upload(ctx context.Context, in UploadInput) (*model.File, error) {
	if in.Content == nil {
		return nil, apperr.New(apperr.InvalidRequestBody, "no file uploaded")
	}

	// Opaque stored name: UUID + original extension, unrelated to content.
	ext := filepath.Ext(in.OriginalName)
	storedName := uuid.New().String() + ext
	key := blobKey(storedName)

	objInfo, err := s.store.Put(ctx, key, in.Content, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: in.MimeType,
		Metadata: map[string]string{
			"original-filename": in.OriginalName,
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "uploading file failed", err)
	}

	f := &model.File{
		ID:           uuid.New().String(),
		OriginalName: in.OriginalName,
		StoredName:   storedName,
		Size:         objInfo.Size,
		MimeType:     in.MimeType,
		Owner:        in.OwnerID,
		Privacy:      model.PrivacyPrivate,
		InvitedUsers: []string{},
		BlockedUsers: []string{},
		Tags:         in.Tags,
		Views:        model.Views{Country: map[string]int64{}, SubRegion: map[string]int64{}},
		CreatedAt:    time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, f)
	if err != nil {
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, apperr.Wrap(apperr.StorageFailure, "uploading file failed", errors.Join(err, delErr))
		}
		return nil, apperr.Wrap(apperr.StorageFailure, "uploading file failed", err)
	}
	return stored, nil
}

func (s *fileService) ListByOwner(ctx context.Context, ownerID string) ([]model.File, error) {
	files, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "couldn't retrieve user's files", err)
	}
	return files, nil
}

func (s *fileService) Get(ctx context.Context, id string) (*model.File, error) {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "file not found")
		}
		return nil, apperr.Wrap(apperr.StorageFailure, "couldn't retrieve a file by ID", err)
	}
	return f, nil
}

func (s *fileService) Open(ctx context.Context, f *model.File) (io.ReadCloser, error) {
	rc, _, err := s.store.Get(ctx, blobKey(f.StoredName))
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "couldn't retrieve file content", err)
	}
	return rc, nil
}

func (s *fileService) RecordView(ctx context.Context, id, country, subRegion string) error {
	if country == "" {
		country = "unknown"
	}
	if subRegion == "" {
		subRegion = "unknown"
	}
	return s.repo.IncrementView(ctx, id, country, subRegion)
}

// Delete removes blob content first; if that fails, the metadata row is kept
// so the file stays consistent and retriable.
func (s *fileService) Delete(ctx context.Context, id, ownerID string) error {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.NotFound, "file to delete not found")
		}
		return apperr.Wrap(apperr.StorageFailure, "file deletion failed", err)
	}
	if err := s.store.Delete(ctx, blobKey(f.StoredName)); err != nil {
		return apperr.Wrap(apperr.StorageFailure, "file deletion failed", err)
	}
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.NotFound, "file to delete not found")
		}
		return apperr.Wrap(apperr.StorageFailure, "file deletion failed", err)
	}
	return nil
}
