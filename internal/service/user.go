package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"fileshare/internal/apperr"
	"fileshare/internal/model"
	"fileshare/internal/repository"
	"fileshare/internal/token"
)

// RegisterInput carries a validated registration request.
type RegisterInput struct {
	FullName string
	Username string
	Email    string
	Password string
	Role     model.Role // empty defaults to "user"
}

// UserPatch carries the mutable account fields; nil pointers are untouched.
type UserPatch struct {
	FullName *string
	Email    *string
	Password *string
}

// UserListResult is the service-level DTO for paginated users.
type UserListResult struct {
	Items []model.User `json:"data"`
	Total int          `json:"total"`
}

// UserService defines the account use cases: registration, credential
// verification with token issuance, and account management.
type UserService interface {
	// Register creates a new account. Username/email collisions fail with a
	// DuplicateField error before any partial write.
	Register(ctx context.Context, in RegisterInput) (*model.User, error)

	// Login verifies the credentials and mints a session token. The token is
	// minted only here; identity is immutable once signed.
	Login(ctx context.Context, usernameOrEmail, password string) (*model.User, string, error)

	// List returns users using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*UserListResult, error)

	// Get returns a single user by its ID.
	Get(ctx context.Context, id string) (*model.User, error)

	// Update applies the patch to the account.
	Update(ctx context.Context, id string, patch UserPatch) (*model.User, error)

	// Delete removes the account.
	Delete(ctx context.Context, id string) error

	// IsValidUser reports whether an account matching the exact username or
	// email exists, returning its id when it does.
	IsValidUser(ctx context.Context, usernameOrEmail string) (bool, string, error)
}

// userService is a concrete implementation of UserService.
type userService struct {
	repo   repository.UserRepository
	tokens *token.Service
}

// NewUserService constructs a new UserService.
func NewUserService(repo repository.UserRepository, tokens *token.Service) UserService {
	return &userService{repo: repo, tokens: tokens}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, apperr.New(apperr.InvalidRequestBody, "invalid role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "user registration failed", err)
	}

	u := &model.User{
		ID:           uuid.New().String(),
		FullName:     in.FullName,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, u)
	if err != nil {
		if dup := duplicateField(err); dup != "" {
			return nil, apperr.New(apperr.DuplicateField, "user already exists, duplicated "+dup)
		}
		return nil, apperr.Wrap(apperr.StorageFailure, "user registration failed", err)
	}
	return stored, nil
}

func (s *userService) Login(ctx context.Context, usernameOrEmail, password string) (*model.User, string, error) {
	u, err := s.repo.FindByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", apperr.New(apperr.Unauthorized, "invalid username/email or password")
		}
		return nil, "", apperr.Wrap(apperr.StorageFailure, "user login failed", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", apperr.New(apperr.Unauthorized, "invalid username/email or password")
	}
	t, err := s.tokens.Issue(model.IdentityOf(u))
	if err != nil {
		return nil, "", apperr.Wrap(apperr.StorageFailure, "user login failed", err)
	}
	return u, t, nil
}

func (s *userService) List(ctx context.Context, limit, offset int) (*UserListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "couldn't retrieve users", err)
	}
	return &UserListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "user not found")
		}
		return nil, apperr.Wrap(apperr.StorageFailure, "couldn't retrieve a user by ID", err)
	}
	return u, nil
}

func (s *userService) Update(ctx context.Context, id string, patch UserPatch) (*model.User, error) {
	repoPatch := repository.UserPatch{FullName: patch.FullName, Email: patch.Email}
	if patch.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperr.Wrap(apperr.StorageFailure, "user update failed", err)
		}
		h := string(hash)
		repoPatch.PasswordHash = &h
	}
	u, err := s.repo.Update(ctx, id, repoPatch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "user to update not found")
		}
		if dup := duplicateField(err); dup != "" {
			return nil, apperr.New(apperr.DuplicateField, "user already exists, duplicated "+dup)
		}
		return nil, apperr.Wrap(apperr.StorageFailure, "user update failed", err)
	}
	return u, nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.NotFound, "user to delete not found")
		}
		return apperr.Wrap(apperr.StorageFailure, "user deletion failed", err)
	}
	return nil
}

func (s *userService) IsValidUser(ctx context.Context, usernameOrEmail string) (bool, string, error) {
	u, err := s.repo.FindByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, "", nil
		}
		return false, "", apperr.Wrap(apperr.StorageFailure, "user lookup failed", err)
	}
	return true, u.ID, nil
}

// duplicateField names the colliding column when err is a Postgres unique
// violation, or returns "". Relying on the write-time constraint closes the
// check-then-insert race under concurrent duplicate registration.
func duplicateField(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return ""
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return "email"
	case strings.Contains(pgErr.ConstraintName, "username"):
		return "username"
	default:
		return "field"
	}
}
