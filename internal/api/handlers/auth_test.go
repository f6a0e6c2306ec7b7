package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsar-relay/relay/internal/api/middleware"
	"github.com/pulsar-relay/relay/internal/authz"
	"github.com/pulsar-relay/relay/internal/domain"
	"github.com/pulsar-relay/relay/internal/testutil"
	"github.com/pulsar-relay/relay/internal/topicstore"
	"github.com/pulsar-relay/relay/internal/userstore"
)

func newTestAuthHandler(t *testing.T) (*AuthHandler, *authz.Service, userstore.Store) {
	t.Helper()
	users := userstore.NewMemoryStore()
	topics := topicstore.NewMemoryStore()
	tokens := authz.NewTokenIssuer("test-secret", time.Hour)
	cache := authz.NewUserCache(100, time.Hour)
	az := authz.NewService(users, topics, tokens, cache)
	return NewAuthHandler(az, users), az, users
}

func TestAuthHandler_Login_ValidCredentials_ReturnsToken(t *testing.T) {
	h, az, _ := newTestAuthHandler(t)
	hashed, err := authz.HashPassword("sup3rsecret!")
	require.NoError(t, err)
	_, err = az.Users.CreateUser(context.Background(), &domain.User{
		UserID: "usr_1", Username: "alice", HashedPassword: hashed, IsActive: true,
		Permissions: []domain.Permission{domain.PermRead},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader("username=alice&password=sup3rsecret%21"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	h.Login(w, req)

	var resp tokenResponse
	testutil.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestAuthHandler_Login_WrongPassword_Returns401(t *testing.T) {
	h, az, _ := newTestAuthHandler(t)
	hashed, _ := authz.HashPassword("correct-password")
	_, _ = az.Users.CreateUser(context.Background(), &domain.User{UserID: "usr_1", Username: "bob", HashedPassword: hashed, IsActive: true})

	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader("username=bob&password=wrong"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	h.Login(w, req)

	assert.Equal(t, 401, w.Code)
}

func TestAuthHandler_Me_ReturnsCallerProfile(t *testing.T) {
	h, _, _ := newTestAuthHandler(t)
	user := testutil.NewTestUser("usr_1", "carol", domain.PermRead)

	req := testutil.NewAuthenticatedRequest("GET", "/auth/me", "", user)
	w := httptest.NewRecorder()

	h.Me(w, req)

	var resp domain.UserPublic
	testutil.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "carol", resp.Username)
}

func TestAuthHandler_Register_NewUser_Created(t *testing.T) {
	h, _, users := newTestAuthHandler(t)
	body := `{"username":"newuser","password":"longenoughpass"}`

	req := testutil.NewTestRequest("POST", "/auth/register", body)
	w := httptest.NewRecorder()

	h.Register(w, req)

	var resp domain.UserPublic
	testutil.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "newuser", resp.Username)
	assert.Empty(t, resp.Permissions, "permissions default to empty, not [read]")

	stored, err := users.GetByUsername(context.Background(), "newuser")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.HashedPassword)
}

func TestAuthHandler_Register_DuplicateUsername_Returns400(t *testing.T) {
	h, _, users := newTestAuthHandler(t)
	hashed, _ := authz.HashPassword("whatever1")
	_, _ = users.CreateUser(context.Background(), &domain.User{UserID: "usr_1", Username: "dupe", HashedPassword: hashed})

	req := testutil.NewTestRequest("POST", "/auth/register", `{"username":"dupe","password":"longenoughpass"}`)
	w := httptest.NewRecorder()

	h.Register(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestAuthHandler_Register_ShortPassword_Returns422(t *testing.T) {
	h, _, _ := newTestAuthHandler(t)

	req := testutil.NewTestRequest("POST", "/auth/register", `{"username":"shorty","password":"123"}`)
	w := httptest.NewRecorder()

	h.Register(w, req)

	assert.Equal(t, 422, w.Code)
}

func TestAuthHandler_ListUsers_ReturnsPublicProjections(t *testing.T) {
	h, _, users := newTestAuthHandler(t)
	hashed, _ := authz.HashPassword("whatever1")
	_, _ = users.CreateUser(context.Background(), &domain.User{UserID: "usr_1", Username: "dana", HashedPassword: hashed})

	req := testutil.NewTestRequest("GET", "/auth/users", "")
	w := httptest.NewRecorder()

	h.ListUsers(w, req)

	var resp []domain.UserPublic
	testutil.AssertJSONResponse(t, w, 200, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, "dana", resp[0].Username)
}

func TestAuthHandler_UpdateUser_PartialUpdate_AppliesOnlySetFields(t *testing.T) {
	h, az, users := newTestAuthHandler(t)
	hashed, _ := authz.HashPassword("whatever1")
	_, _ = users.CreateUser(context.Background(), &domain.User{UserID: "usr_1", Username: "erin", HashedPassword: hashed, IsActive: true})
	az.Cache.Put(&domain.User{UserID: "usr_1", Username: "erin", IsActive: true})

	req := testutil.NewRequestWithVars("PATCH", "/auth/users/usr_1", `{"is_active":false}`, nil, map[string]string{"id": "usr_1"})
	w := httptest.NewRecorder()

	h.UpdateUser(w, req)

	var resp domain.UserPublic
	testutil.AssertJSONResponse(t, w, 200, &resp)
	assert.False(t, resp.IsActive)
	assert.Equal(t, "erin", resp.Username)

	_, ok := az.Cache.Get("usr_1")
	assert.False(t, ok, "update must invalidate the cache entry")
}

func TestAuthHandler_DeleteUser_Self_Rejected(t *testing.T) {
	h, _, users := newTestAuthHandler(t)
	hashed, _ := authz.HashPassword("whatever1")
	_, _ = users.CreateUser(context.Background(), &domain.User{UserID: "usr_1", Username: "frank", HashedPassword: hashed})
	actor := testutil.NewTestAdmin("usr_1", "frank")

	req := testutil.NewRequestWithVars("DELETE", "/auth/users/usr_1", "", actor, map[string]string{"id": "usr_1"})
	w := httptest.NewRecorder()

	h.DeleteUser(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestAuthHandler_DeleteUser_OtherUser_Removed(t *testing.T) {
	h, _, users := newTestAuthHandler(t)
	hashed, _ := authz.HashPassword("whatever1")
	_, _ = users.CreateUser(context.Background(), &domain.User{UserID: "usr_2", Username: "greg", HashedPassword: hashed})
	actor := testutil.NewTestAdmin("usr_1", "admin")

	req := testutil.NewRequestWithVars("DELETE", "/auth/users/usr_2", "", actor, map[string]string{"id": "usr_2"})
	w := httptest.NewRecorder()

	h.DeleteUser(w, req)

	assert.Equal(t, 204, w.Code)
	_, err := users.GetByID(context.Background(), "usr_2")
	assert.Error(t, err)
}

func TestAuthHandler_Stats_CountsActiveAndTotal(t *testing.T) {
	h, _, users := newTestAuthHandler(t)
	hashed, _ := authz.HashPassword("whatever1")
	_, _ = users.CreateUser(context.Background(), &domain.User{UserID: "usr_1", Username: "active1", HashedPassword: hashed, IsActive: true})
	_, _ = users.CreateUser(context.Background(), &domain.User{UserID: "usr_2", Username: "inactive1", HashedPassword: hashed, IsActive: false})

	req := testutil.NewTestRequest("GET", "/auth/users/stats", "")
	w := httptest.NewRecorder()

	h.Stats(w, req)

	var resp userStats
	testutil.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 2, resp.TotalUsers)
	assert.Equal(t, 1, resp.ActiveUsers)
}

func TestMiddlewareGetUser_RoundTrips(t *testing.T) {
	user := testutil.NewTestUser("usr_1", "who", domain.PermRead)
	req := testutil.NewAuthenticatedRequest("GET", "/x", "", user)
	got := middleware.GetUser(req.Context())
	require.NotNil(t, got)
	assert.Equal(t, "who", got.Username)
}
