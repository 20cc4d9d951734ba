package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook-app/daybook-api/internal/authz"
	"github.com/daybook-app/daybook-api/internal/models"
	"github.com/daybook-app/daybook-api/internal/repository"
)

type userRepoStub struct {
	repository.UserRepository
	user models.User
	err  error
}

func (s userRepoStub) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	return s.user, s.err
}

func meRequest(withUser bool) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	if withUser {
		r = r.WithContext(authz.WithUser(r.Context(), "user-1"))
	}
	return r
}

func TestMeReturnsAccount(t *testing.T) {
	repo := userRepoStub{user: models.User{ID: "user-1", Email: "ada@example.com", PasswordHash: "secret"}}
	h := NewAuthHandler(repo, "test-secret", zerolog.Nop())
	w := httptest.NewRecorder()

	h.Me(w, meRequest(true))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "user-1", resp["id"])
	assert.Equal(t, "ada@example.com", resp["email"])
	_, leaked := resp["password_hash"]
	assert.False(t, leaked, "password hash must never serialize")
}

func TestMeUnknownUser(t *testing.T) {
	h := NewAuthHandler(userRepoStub{err: sql.ErrNoRows}, "test-secret", zerolog.Nop())
	w := httptest.NewRecorder()

	h.Me(w, meRequest(true))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMeRequiresUserContext(t *testing.T) {
	h := NewAuthHandler(userRepoStub{}, "test-secret", zerolog.Nop())
	w := httptest.NewRecorder()

	h.Me(w, meRequest(false))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
