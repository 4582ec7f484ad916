package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/spec-kit/auth-service/internal/api/http"
	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/persistence"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/internal/service"
	"github.com/spec-kit/auth-service/internal/testutil"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type authData struct {
	User  map[string]any `json:"user"`
	Token string         `json:"token"`
}

type downProbe struct{}

func (downProbe) Ping(context.Context) error { return errors.New("dial tcp 10.0.0.7:6379: connection refused") }

// brokenUsers embeds a working repository and fails List with a driver error.
type brokenUsers struct {
	repository.UserRepository
}

func (brokenUsers) List(context.Context) ([]*domain.User, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, probes map[string]persistence.Pinger) *testServer {
	t.Helper()
	return newTestServerWithUsers(t, probes, nil)
}

// newTestServerWithUsers lets wrap replace the SQLite user repository.
func newTestServerWithUsers(t *testing.T, probes map[string]persistence.Pinger, wrap func(repository.UserRepository) repository.UserRepository) *testServer {
	t.Helper()
	db := testutil.NewSQLite(t)
	if probes == nil {
		probes = map[string]persistence.Pinger{"sqlite": db}
	}

	var users repository.UserRepository = repository.NewSQLiteUserRepository(db.DB)
	if wrap != nil {
		users = wrap(users)
	}

	tokens := testutil.NewTokenManager(t)
	svc := service.NewAuthService(service.AuthDependencies{
		UserRepo: users,
		Hasher:   auth.NewPasswordHasher(bcrypt.MinCost),
		Tokens:   tokens,
	})
	metrics := observability.NewMetrics()

	app := httptransport.NewServer(httptransport.ServerConfig{
		AppName: "auth-service-test",
		Metrics: metrics,
		Routes: httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler("auth-service-test", "test", probes, metrics, nil),
			Users:          handlers.NewUsersHandler(svc),
			AuthMiddleware: auth.NewAuthMiddleware(tokens),
		},
	})
	return &testServer{app: app, tokens: tokens, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope, *http.Response) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env, resp
}

func (s *testServer) raw(t *testing.T, method, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func (s *testServer) register(t *testing.T, name, email, password string) authData {
	t.Helper()
	status, env, _ := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, status)
	var data authData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, nil)

	data := s.register(t, "Alice", "ALICE@Example.com ", "Secret1!")
	assert.Equal(t, "alice@example.com", data.User["email"])
	assert.Equal(t, "USER", data.User["role"])
	assert.NotContains(t, data.User, "password")
	assert.NotContains(t, data.User, "password_hash")
	require.NotEmpty(t, data.Token)

	status, env, _ := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "Secret1!",
	})
	require.Equal(t, http.StatusOK, status)
	var login authData
	require.NoError(t, json.Unmarshal(env.Data, &login))

	first, err := s.tokens.VerifyIdentity(data.Token)
	require.NoError(t, err)
	second, err := s.tokens.VerifyIdentity(login.Token)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestRegisterConflict(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "Alice", "alice@example.com", "pw")

	status, env, _ := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Other", "email": " Alice@EXAMPLE.com", "password": "pw2",
	})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	assert.Equal(t, "Email already in use", env.Error.Message)
}

func TestRegisterInvalidInput(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		body any
	}{
		{"missing fields", map[string]string{"email": "a@example.com"}},
		{"bad email", map[string]string{"name": "A", "email": "nope", "password": "pw"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env, _ := s.do(t, http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, "INVALID_INPUT", env.Error.Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "Bob", "bob@example.com", "right")

	statusA, envA, _ := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "bob@example.com", "password": "wrong",
	})
	statusB, envB, _ := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ghost@example.com", "password": "right",
	})

	assert.Equal(t, http.StatusUnauthorized, statusA)
	assert.Equal(t, statusA, statusB)
	require.NotNil(t, envA.Error)
	require.NotNil(t, envB.Error)
	assert.Equal(t, *envA.Error, *envB.Error)
	assert.Equal(t, "Invalid credentials", envA.Error.Message)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/auth/me", "/auth/users", "/auth/users/1"} {
		status, env, _ := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		require.NotNil(t, env.Error, path)
		assert.Equal(t, "UNAUTHENTICATED", env.Error.Code, path)
	}

	status, _, _ := s.do(t, http.MethodGet, "/auth/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMeAnswersFromTokenAlone(t *testing.T) {
	s := newTestServer(t, nil)

	// The identity does not need to exist in the store.
	token, _, err := s.tokens.Issue(auth.Identity{ID: 4242, Email: "ghost@example.com"})
	require.NoError(t, err)

	status, env, _ := s.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	var me map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, float64(4242), me["id"])
	assert.Equal(t, "ghost@example.com", me["email"])
}

func TestUserManagement(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.register(t, "Alice", "alice@example.com", "pw")
	bob := s.register(t, "Bob", "bob@example.com", "pw")
	bobID := strconv.FormatInt(int64(bob.User["id"].(float64)), 10)

	status, env, _ := s.do(t, http.MethodGet, "/auth/users", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	for _, u := range list {
		assert.NotContains(t, u, "password_hash")
	}

	status, env, _ = s.do(t, http.MethodGet, "/auth/users/"+bobID, alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var got map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "bob@example.com", got["email"])

	status, env, _ = s.do(t, http.MethodGet, "/auth/users/999", alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "User not found", env.Error.Message)

	status, env, _ = s.do(t, http.MethodGet, "/auth/users/abc", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)

	status, env, _ = s.do(t, http.MethodDelete, "/auth/users/"+bobID, alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var deleted map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &deleted))
	assert.Equal(t, "bob@example.com", deleted["email"])

	status, _, _ = s.do(t, http.MethodGet, "/auth/users/"+bobID, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = s.do(t, http.MethodDelete, "/auth/users/"+bobID, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	status, _, resp := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, resp.Header.Get(observability.RequestIDHeader))

	status, _, _ = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)

	s.do(t, http.MethodGet, "/auth/me", "", nil)
	status, env, _ := s.do(t, http.MethodGet, "/health/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	var snap observability.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, int64(1), snap.Requests["/health/live|GET|200"].Count)
	assert.Equal(t, int64(1), snap.Errors["/auth/me|GET|UNAUTHENTICATED"])
}

func TestReadinessReportsDownDependency(t *testing.T) {
	s := newTestServer(t, map[string]persistence.Pinger{"redis": downProbe{}})

	status, env, _ := s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", env.Error.Code)
	assert.Equal(t, "unavailable", env.Error.Details["redis"])

	_, body := s.raw(t, http.MethodGet, "/health/ready", "")
	assert.NotContains(t, body, "connection refused")
	assert.NotContains(t, body, "10.0.0.7")
}

func TestStoreFailureRendersGenericInternal(t *testing.T) {
	s := newTestServerWithUsers(t, nil, func(users repository.UserRepository) repository.UserRepository {
		return brokenUsers{UserRepository: users}
	})
	member := s.register(t, "Member", "member@example.com", "pw")

	status, env, _ := s.do(t, http.MethodGet, "/auth/users", member.Token, nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL", env.Error.Code)
	assert.Equal(t, "Failed to fetch users", env.Error.Message)

	status, body := s.raw(t, http.MethodGet, "/auth/users", member.Token)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, body, "10.0.0.5")
	assert.NotContains(t, body, "connection refused")
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	status, env, _ := s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestAdminOnlyUsersGuard(t *testing.T) {
	db := testutil.NewSQLite(t)
	users := repository.NewSQLiteUserRepository(db.DB)
	tokens := testutil.NewTokenManager(t)
	svc := service.NewAuthService(service.AuthDependencies{
		UserRepo: users,
		Hasher:   auth.NewPasswordHasher(bcrypt.MinCost),
		Tokens:   tokens,
	})
	s := &testServer{
		tokens: tokens,
		app: httptransport.NewServer(httptransport.ServerConfig{
			Routes: httptransport.RouteConfig{
				Health:         handlers.NewHealthHandler("auth-service-test", "test", nil, nil, nil),
				Users:          handlers.NewUsersHandler(svc),
				AuthMiddleware: auth.NewAuthMiddleware(tokens),
				UsersGuard:     auth.RequireRole(users, domain.RoleAdmin),
			},
		}),
	}

	admin, _ := testutil.NewUserBuilder().WithRole(domain.RoleAdmin).Build(t, users)
	adminToken, _, err := tokens.Issue(auth.Identity{ID: admin.ID, Email: admin.Email})
	require.NoError(t, err)
	member := s.register(t, "Member", "member@example.com", "pw")

	status, env, _ := s.do(t, http.MethodGet, "/auth/users", member.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _, _ = s.do(t, http.MethodGet, "/auth/me", member.Token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _, _ = s.do(t, http.MethodGet, "/auth/users", adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
}
