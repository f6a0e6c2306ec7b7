package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/pulsar-relay/relay/internal/api/middleware"
	"github.com/pulsar-relay/relay/internal/domain"
)

const (
	TestUserID   = "usr_test0000000000000000000000"
	TestUsername = "test-user"
)

// NewTestRequest creates an HTTP request with JSON content type.
func NewTestRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewAuthenticatedRequest creates an HTTP request with the given user
// injected into the request context, the way AuthMiddleware.Authenticate
// does after verifying a bearer token.
func NewAuthenticatedRequest(method, path, body string, user *domain.User) *http.Request {
	req := NewTestRequest(method, path, body)
	return req.WithContext(middleware.WithUser(req.Context(), user))
}

// NewRequestWithVars creates an authenticated request with mux route variables.
func NewRequestWithVars(method, path, body string, user *domain.User, vars map[string]string) *http.Request {
	req := NewAuthenticatedRequest(method, path, body, user)
	if len(vars) > 0 {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

// NewTestUser builds a *domain.User suitable for injecting into a request
// context with the given permissions.
func NewTestUser(userID, username string, perms ...domain.Permission) *domain.User {
	if userID == "" {
		userID = TestUserID
	}
	if username == "" {
		username = TestUsername
	}
	return &domain.User{
		UserID:      userID,
		Username:    username,
		Permissions: perms,
		IsActive:    true,
	}
}

// NewTestAdmin builds a *domain.User with the admin permission set.
func NewTestAdmin(userID, username string) *domain.User {
	return NewTestUser(userID, username, domain.PermAdmin, domain.PermRead, domain.PermWrite)
}

// AssertJSONResponse validates status code, content type, and optionally
// decodes the response body into target.
func AssertJSONResponse(t testing.TB, recorder *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	if recorder.Code != expectedStatus {
		t.Errorf("expected status %d, got %d; body: %s", expectedStatus, recorder.Code, recorder.Body.String())
	}

	contentType := recorder.Header().Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "application/json") {
		t.Errorf("expected JSON content-type, got %s", contentType)
	}

	if target != nil && recorder.Body.Len() > 0 {
		if err := json.NewDecoder(recorder.Body).Decode(target); err != nil {
			t.Fatalf("failed to decode response body: %v", err)
		}
	}
}
