package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileshare/internal/model"
)

var testIdentity = model.Identity{
	ID:       "11111111-1111-1111-1111-111111111111",
	FullName: "Test User",
	Username: "testuser",
	Email:    "test@example.com",
	Role:     model.RoleUser,
}

func TestNewService(t *testing.T) {
	_, err := NewService("", time.Hour)
	assert.Error(t, err)

	_, err = NewService("secret", 0)
	assert.Error(t, err)

	svc, err := NewService("secret", time.Hour)
	assert.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestService_IssueVerify(t *testing.T) {
	svc, err := NewService("test-secret", time.Hour)
	require.NoError(t, err)

	tok, err := svc.Issue(testIdentity)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	got, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, testIdentity.ID, got.ID)
	assert.Equal(t, testIdentity.Username, got.Username)
	assert.Equal(t, testIdentity.Email, got.Email)
	assert.Equal(t, testIdentity.Role, got.Role)
}

func TestService_Verify_Errors(t *testing.T) {
	svc, err := NewService("test-secret", time.Hour)
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		_, err := svc.Verify("")
		assert.ErrorIs(t, err, ErrTokenMissing)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewService("other-secret", time.Hour)
		require.NoError(t, err)
		tok, err := other.Issue(testIdentity)
		require.NoError(t, err)

		_, err = svc.Verify(tok)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expired token", func(t *testing.T) {
		now := time.Now()
		raw := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			},
			UserID: testIdentity.ID,
		})
		tok, err := raw.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = svc.Verify(tok)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("rejects non-HMAC alg", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: testIdentity.ID})
		tok, err := raw.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.Verify(tok)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestService_Decode(t *testing.T) {
	svc, err := NewService("test-secret", time.Hour)
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		_, err := svc.Decode("")
		assert.ErrorIs(t, err, ErrTokenMissing)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Decode("not-a-token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("decodes without verifying signature", func(t *testing.T) {
		other, err := NewService("other-secret", time.Hour)
		require.NoError(t, err)
		tok, err := other.Issue(testIdentity)
		require.NoError(t, err)

		got, err := svc.Decode(tok)
		require.NoError(t, err)
		assert.Equal(t, testIdentity.ID, got.ID)
	})
}
