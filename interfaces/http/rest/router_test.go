package rest_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindlink-backend/application/services"
	"mindlink-backend/infrastructure/config"
	"mindlink-backend/infrastructure/di"
	"mindlink-backend/infrastructure/persistence/memory"
	"mindlink-backend/interfaces/http/rest"
	"mindlink-backend/interfaces/ws"
	"mindlink-backend/pkg/auth"
	"mindlink-backend/pkg/common"
	"mindlink-backend/pkg/observability"
)

func startAPI(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zap.NewNop()
	mapRepo := memory.NewMapRepository()
	userRepo := memory.NewUserRepository()
	tokens := auth.NewJWTService("test-secret", "mindlink-backend", []string{"mindlink-api"}, time.Hour)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	container := &di.Container{
		Config: &config.Config{
			Environment:       "test",
			PersistenceDriver: "memory",
		},
		Logger:      logger,
		MapRepo:     mapRepo,
		UserRepo:    userRepo,
		Tokens:      tokens,
		RateLimiter: auth.NewTokenBucketLimiter(1000, time.Minute),
		Metrics:     metrics,
		AuthService: services.NewAuthService(userRepo, tokens, logger),
		MapService:  services.NewMapService(mapRepo, userRepo, logger),
	}

	hub := ws.NewHub(mapRepo, logger, metrics)
	srv := httptest.NewServer(rest.NewRouter(container, hub).Setup())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body interface{}) (*http.Response, common.APIResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope common.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func registerAndLogin(t *testing.T, srv *httptest.Server, username, email string) string {
	t.Helper()

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealthEndpoints(t *testing.T) {
	srv := startAPI(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthFlow(t *testing.T) {
	srv := startAPI(t)

	token := registerAndLogin(t, srv, "alice", "alice@example.com")
	assert.NotEmpty(t, token)

	// Duplicate registration is rejected.
	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", map[string]string{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "User already exists.", envelope.Error.Message)

	// Wrong password is a 401.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMapsRequireAuth(t *testing.T) {
	srv := startAPI(t)

	resp, err := http.Get(srv.URL + "/api/maps")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/maps", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMapLifecycle(t *testing.T) {
	srv := startAPI(t)
	token := registerAndLogin(t, srv, "alice", "alice@example.com")

	// Create.
	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/maps", token, map[string]interface{}{
		"title": "Roadmap",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	mapID, _ := created["id"].(string)
	require.NotEmpty(t, mapID)
	assert.Equal(t, "Roadmap", created["title"])

	// List.
	resp, envelope = doJSON(t, http.MethodGet, srv.URL+"/api/maps", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list, ok := envelope.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 1)

	// Update title only.
	resp, envelope = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/maps/%s", srv.URL, mapID), token, map[string]interface{}{
		"title": "Renamed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Renamed", updated["title"])

	// Get.
	resp, envelope = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/maps/%s", srv.URL, mapID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Delete.
	resp, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/maps/%s", srv.URL, mapID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/maps/%s", srv.URL, mapID), token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInviteEndpoint(t *testing.T) {
	srv := startAPI(t)
	aliceToken := registerAndLogin(t, srv, "alice", "alice@example.com")
	bobToken := registerAndLogin(t, srv, "bob", "bob@example.com")

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/maps", aliceToken, map[string]interface{}{
		"title": "Shared",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := envelope.Data.(map[string]interface{})
	mapID := created["id"].(string)

	// Only the owner may invite.
	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/maps/%s/invite", srv.URL, mapID), bobToken, map[string]string{
		"email": "bob@example.com",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/maps/%s/invite", srv.URL, mapID), aliceToken, map[string]string{
		"email": "bob@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The map now shows up in Bob's list.
	resp, envelope = doJSON(t, http.MethodGet, srv.URL+"/api/maps", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := envelope.Data.([]interface{})
	assert.Len(t, list, 1)
}
