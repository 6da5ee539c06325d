package repository

import (
	"context"

	"fileshare/internal/model"
)

// UserPatch holds the mutable fields of a user. Nil pointers are untouched.
type UserPatch struct {
	FullName     *string
	Email        *string
	PasswordHash *string
}

// UserRepository defines data access for user accounts using SQL queries only.
// No business logic here, strictly persistence operations. Missing rows are
// reported as sql.ErrNoRows; constraint violations surface as driver errors
// for the service layer to translate.
type UserRepository interface {
	// Create inserts a new user record and returns the stored row.
	// Username and email uniqueness is enforced by the database.
	Create(ctx context.Context, u *model.User) (*model.User, error)

	// FindByID returns a user by its ID.
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsernameOrEmail returns the user whose username or email exactly
	// matches s (case-sensitive).
	FindByUsernameOrEmail(ctx context.Context, s string) (*model.User, error)

	// FindByIDs returns the users matching the given ids. Unknown ids are
	// simply absent from the result.
	FindByIDs(ctx context.Context, ids []string) ([]model.User, error)

	// List returns a paginated list of users and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.User], error)

	// Update applies the patch and returns the updated row.
	Update(ctx context.Context, id string, patch UserPatch) (*model.User, error)

	// Delete removes a user by ID. Returns sql.ErrNoRows if the row is absent.
	Delete(ctx context.Context, id string) error
}
