package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// FilePostgres is a PostgreSQL implementation of repository.FileRepository.
// Collection fields (invited/blocked lists, tags, views) are stored as JSONB
// and replaced wholesale on update, never merged element-by-element.
type FilePostgres struct {
	db *sql.DB
}

// NewFilePostgres creates a new FilePostgres repository.
func NewFilePostgres(db *sql.DB) *FilePostgres {
	return &FilePostgres{db: db}
}

var _ repository.FileRepository = (*FilePostgres)(nil)

const fileColumns = `id, original_name, stored_name, size, mime_type, owner,
		privacy, invited_users, blocked_users, tags, views, created_at, updated_at`

func scanFile(row interface{ Scan(...any) error }) (*model.File, error) {
	var (
		f                            model.File
		invited, blocked, tags, view []byte
	)
	if err := row.Scan(
		&f.ID,
		&f.OriginalName,
		&f.StoredName,
		&f.Size,
		&f.MimeType,
		&f.Owner,
		&f.Privacy,
		&invited,
		&blocked,
		&tags,
		&view,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	for _, col := range []struct {
		raw []byte
		dst any
	}{
		{invited, &f.InvitedUsers},
		{blocked, &f.BlockedUsers},
		{tags, &f.Tags},
		{view, &f.Views},
	} {
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("decode file column: %w", err)
		}
	}
	return &f, nil
}

func jsonbArg(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode file column: %w", err)
	}
	return b, nil
}

// Create inserts a new file row and returns the stored record.
func (r *FilePostgres) Create(ctx context.Context, f *model.File) (*model.File, error) {
	invited, err := jsonbArg(emptyIfNil(f.InvitedUsers))
	if err != nil {
		return nil, err
	}
	blocked, err := jsonbArg(emptyIfNil(f.BlockedUsers))
	if err != nil {
		return nil, err
	}
	tags, err := jsonbArg(emptyIfNil(f.Tags))
	if err != nil {
		return nil, err
	}
	views, err := jsonbArg(f.Views)
	if err != nil {
		return nil, err
	}

	const q = `
		INSERT INTO files (id, original_name, stored_name, size, mime_type, owner,
			privacy, invited_users, blocked_users, tags, views, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING ` + fileColumns
	row := r.db.QueryRowContext(ctx, q,
		f.ID,
		f.OriginalName,
		f.StoredName,
		f.Size,
		f.MimeType,
		f.Owner,
		f.Privacy,
		invited,
		blocked,
		tags,
		views,
		f.CreatedAt,
	)
	return scanFile(row)
}

// FindByID fetches a single file by its ID.
func (r *FilePostgres) FindByID(ctx context.Context, id string) (*model.File, error) {
	const q = `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	return scanFile(r.db.QueryRowContext(ctx, q, id))
}

// FindByOwner fetches all files owned by ownerID, newest first.
func (r *FilePostgres) FindByOwner(ctx context.Context, ownerID string) ([]model.File, error) {
	const q = `
		SELECT ` + fileColumns + `
		FROM files
		WHERE owner = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]model.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

// Update replaces the patched fields and bumps updated_at in a single write.
// The WHERE clause repeats the version-stamp guard at millisecond precision so
// two concurrent editors that both read the same prior stamp cannot both win.
func (r *FilePostgres) Update(ctx context.Context, id string, expectedUpdatedAt time.Time, patch repository.FilePatch) (*model.File, error) {
	var tags, invited, blocked []byte
	var privacy *string
	var err error
	if patch.Tags != nil {
		if tags, err = jsonbArg(*patch.Tags); err != nil {
			return nil, err
		}
	}
	if patch.InvitedUsers != nil {
		if invited, err = jsonbArg(*patch.InvitedUsers); err != nil {
			return nil, err
		}
	}
	if patch.BlockedUsers != nil {
		if blocked, err = jsonbArg(*patch.BlockedUsers); err != nil {
			return nil, err
		}
	}
	if patch.Privacy != nil {
		p := string(*patch.Privacy)
		privacy = &p
	}

	const q = `
		UPDATE files
		SET tags          = COALESCE($3, tags),
		    privacy       = COALESCE($4, privacy),
		    invited_users = COALESCE($5, invited_users),
		    blocked_users = COALESCE($6, blocked_users),
		    updated_at    = now()
		WHERE id = $1
		  AND date_trunc('milliseconds', updated_at) = date_trunc('milliseconds', $2::timestamptz)
		RETURNING ` + fileColumns
	row := r.db.QueryRowContext(ctx, q, id, expectedUpdatedAt, tags, privacy, invited, blocked)
	f, err := scanFile(row)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Distinguish a missing row from a stale stamp.
	var exists bool
	const qExists = `SELECT EXISTS (SELECT 1 FROM files WHERE id = $1)`
	if checkErr := r.db.QueryRowContext(ctx, qExists, id).Scan(&exists); checkErr != nil {
		return nil, checkErr
	}
	if exists {
		return nil, repository.ErrStaleVersion
	}
	return nil, sql.ErrNoRows
}

// Delete removes a file matching both id and owner.
func (r *FilePostgres) Delete(ctx context.Context, id, ownerID string) error {
	const q = `DELETE FROM files WHERE id = $1 AND owner = $2`
	res, err := r.db.ExecContext(ctx, q, id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementView bumps the country and sub-region counters atomically.
func (r *FilePostgres) IncrementView(ctx context.Context, id, country, subRegion string) error {
	const q = `
		UPDATE files
		SET views = jsonb_set(
			jsonb_set(views,
				ARRAY['country', $2],
				(COALESCE(views #>> ARRAY['country', $2], '0')::bigint + 1)::text::jsonb,
				true),
			ARRAY['sub_region', $3],
			(COALESCE(views #>> ARRAY['sub_region', $3], '0')::bigint + 1)::text::jsonb,
			true)
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, q, id, country, subRegion)
	return err
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
