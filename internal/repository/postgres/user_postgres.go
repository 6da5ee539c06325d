package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

const userColumns = "id, fullname, username, email, password_hash, role, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID,
		&u.FullName,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user row and returns the stored record. Uniqueness of
// username and email is enforced by the database constraints; violations
// surface as pgconn errors for the service layer to translate.
func (r *UserPostgres) Create(ctx context.Context, u *model.User) (*model.User, error) {
	const q = `
		INSERT INTO users (id, fullname, username, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + userColumns
	row := r.db.QueryRowContext(ctx, q,
		u.ID,
		u.FullName,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.Role,
		u.CreatedAt,
	)
	return scanUser(row)
}

// FindByID fetches a single user by its ID.
func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

// FindByUsernameOrEmail fetches the user matching the exact username or email.
func (r *UserPostgres) FindByUsernameOrEmail(ctx context.Context, s string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, s))
}

// FindByIDs fetches all users whose id is in ids.
func (r *UserPostgres) FindByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}
	arr, err := uuidArray(ids)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[])`
	rows, err := r.db.QueryContext(ctx, q, arr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]model.User, 0, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// List returns users using LIMIT/OFFSET pagination and a total count.
func (r *UserPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.User], error) {
	const qCount = `SELECT COUNT(*) FROM users`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.User]{Items: items, Total: total}, nil
}

// Update applies the non-nil patch fields and bumps updated_at.
func (r *UserPostgres) Update(ctx context.Context, id string, patch repository.UserPatch) (*model.User, error) {
	const q = `
		UPDATE users
		SET fullname      = COALESCE($2, fullname),
		    email         = COALESCE($3, email),
		    password_hash = COALESCE($4, password_hash),
		    updated_at    = now()
		WHERE id = $1
		RETURNING ` + userColumns
	row := r.db.QueryRowContext(ctx, q, id, patch.FullName, patch.Email, patch.PasswordHash)
	return scanUser(row)
}

// Delete removes a user by ID. Returns sql.ErrNoRows when the row is absent.
func (r *UserPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM users WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
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

// uuidArray renders ids as a Postgres array literal so the stdlib driver can
// bind it without a pgtype dependency. Each id must parse as a UUID; the
// literal is built by concatenation, so nothing else may pass through.
func uuidArray(ids []string) (string, error) {
	out := "{"
	for i, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return "", fmt.Errorf("invalid user id %q: %w", id, err)
		}
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out + "}", nil
}
