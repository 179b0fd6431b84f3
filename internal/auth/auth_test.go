package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepoCreateAndAuthenticate(t *testing.T) {
	t.Parallel()
	repo := NewUserRepo()

	user, err := repo.Create("alice", "s3cret", "")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "user", user.Role)
	assert.NotEqual(t, "s3cret", string(user.PasswordHash))

	got, err := repo.Authenticate("alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestUserRepoDuplicateUsername(t *testing.T) {
	t.Parallel()
	repo := NewUserRepo()

	_, err := repo.Create("alice", "s3cret", "")
	require.NoError(t, err)

	_, err = repo.Create("alice", "other", "admin")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUserExists))
}

func TestUserRepoAuthenticateFailures(t *testing.T) {
	t.Parallel()
	repo := NewUserRepo()

	_, err := repo.Create("alice", "s3cret", "")
	require.NoError(t, err)

	_, err = repo.Authenticate("alice", "wrong")
	assert.True(t, eris.Is(err, ErrInvalidCredentials))

	_, err = repo.Authenticate("nobody", "s3cret")
	assert.True(t, eris.Is(err, ErrInvalidCredentials))
}

func TestUserRepoExplicitRole(t *testing.T) {
	t.Parallel()
	repo := NewUserRepo()

	user, err := repo.Create("root", "s3cret", "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()
	svc := NewTokenService("test-secret", time.Hour)
	user := User{ID: "u-1", Username: "alice", Role: "user"}

	token, err := svc.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "u-1", claims.Subject)
}

func TestTokenWrongSecret(t *testing.T) {
	t.Parallel()
	token, err := NewTokenService("secret-a", time.Hour).Issue(User{ID: "u-1"})
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Hour).Verify(token)
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	t.Parallel()
	// The constructor clamps non-positive expiry, so build an already-expired
	// service by hand.
	svc := &TokenService{secret: []byte("test-secret"), expiry: -2 * time.Hour}

	token, err := svc.Issue(User{ID: "u-1"})
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.Error(t, err)
}

func TestTokenGarbage(t *testing.T) {
	t.Parallel()
	_, err := NewTokenService("test-secret", time.Hour).Verify("not.a.token")
	assert.Error(t, err)
}

func TestRequireToken(t *testing.T) {
	t.Parallel()
	svc := NewTokenService("test-secret", time.Hour)

	var gotClaims *Claims
	handler := svc.RequireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "missing bearer token")
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid token")
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := svc.Issue(User{ID: "u-1", Username: "alice", Role: "user"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, "alice", gotClaims.Username)
	})
}
