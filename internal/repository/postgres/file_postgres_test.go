package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileshare/internal/model"
	"fileshare/internal/repository"
)

func fileRows(files ...*model.File) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "original_name", "stored_name", "size", "mime_type", "owner",
		"privacy", "invited_users", "blocked_users", "tags", "views", "created_at", "updated_at",
	})
	for _, f := range files {
		invited, _ := json.Marshal(emptyIfNil(f.InvitedUsers))
		blocked, _ := json.Marshal(emptyIfNil(f.BlockedUsers))
		tags, _ := json.Marshal(emptyIfNil(f.Tags))
		views, _ := json.Marshal(f.Views)
		rows.AddRow(f.ID, f.OriginalName, f.StoredName, f.Size, f.MimeType, f.Owner,
			f.Privacy, invited, blocked, tags, views, f.CreatedAt, f.UpdatedAt)
	}
	return rows
}

func storedFile() *model.File {
	now := time.Now().UTC()
	return &model.File{
		ID:           "file-uuid",
		OriginalName: "report.pdf",
		StoredName:   "abc-123.pdf",
		Size:         2048,
		MimeType:     "application/pdf",
		Owner:        "owner-uuid",
		Privacy:      model.PrivacyPrivate,
		InvitedUsers: []string{"invited-uuid"},
		BlockedUsers: []string{},
		Tags:         []string{"work"},
		Views:        model.Views{Country: map[string]int64{"AE": 3}, SubRegion: map[string]int64{"Dubai": 3}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestFilePostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()
	f := storedFile()

	mock.ExpectQuery("INSERT INTO files").
		WithArgs(f.ID, f.OriginalName, f.StoredName, f.Size, f.MimeType, f.Owner,
			f.Privacy, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), f.CreatedAt).
		WillReturnRows(fileRows(f))

	result, err := repo.Create(ctx, f)

	require.NoError(t, err)
	assert.Equal(t, f.ID, result.ID)
	assert.Equal(t, []string{"invited-uuid"}, result.InvitedUsers)
	assert.Equal(t, int64(3), result.Views.Country["AE"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilePostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		f := storedFile()
		mock.ExpectQuery("SELECT (.+) FROM files WHERE id").
			WithArgs(f.ID).
			WillReturnRows(fileRows(f))

		result, err := repo.FindByID(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, f.StoredName, result.StoredName)
		assert.Equal(t, f.Tags, result.Tags)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM files WHERE id").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilePostgres_FindByOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	a, b := storedFile(), storedFile()
	b.ID = "file-uuid-2"
	mock.ExpectQuery("SELECT (.+) FROM files WHERE owner").
		WithArgs("owner-uuid").
		WillReturnRows(fileRows(a, b))

	result, err := repo.FindByOwner(ctx, "owner-uuid")
	require.NoError(t, err)
	assert.Len(t, result, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilePostgres_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()
	f := storedFile()
	tags := []string{"archive"}

	t.Run("matching stamp wins", func(t *testing.T) {
		mock.ExpectQuery("UPDATE files").
			WithArgs(f.ID, f.UpdatedAt, sqlmock.AnyArg(), nil, []byte(nil), []byte(nil)).
			WillReturnRows(fileRows(f))

		result, err := repo.Update(ctx, f.ID, f.UpdatedAt, repository.FilePatch{Tags: &tags})
		require.NoError(t, err)
		assert.Equal(t, f.ID, result.ID)
	})

	t.Run("stale stamp on an existing row", func(t *testing.T) {
		mock.ExpectQuery("UPDATE files").
			WithArgs(f.ID, f.UpdatedAt, sqlmock.AnyArg(), nil, []byte(nil), []byte(nil)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(f.ID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := repo.Update(ctx, f.ID, f.UpdatedAt, repository.FilePatch{Tags: &tags})
		assert.ErrorIs(t, err, repository.ErrStaleVersion)
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectQuery("UPDATE files").
			WithArgs("missing", f.UpdatedAt, sqlmock.AnyArg(), nil, []byte(nil), []byte(nil)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := repo.Update(ctx, "missing", f.UpdatedAt, repository.FilePatch{Tags: &tags})
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilePostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	t.Run("deleted", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM files").
			WithArgs("file-uuid", "owner-uuid").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Delete(ctx, "file-uuid", "owner-uuid"))
	})

	t.Run("wrong owner leaves the row", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM files").
			WithArgs("file-uuid", "other-uuid").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(ctx, "file-uuid", "other-uuid")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilePostgres_IncrementView(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE files").
		WithArgs("file-uuid", "AE", "Dubai").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.IncrementView(ctx, "file-uuid", "AE", "Dubai"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
