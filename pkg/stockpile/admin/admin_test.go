package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikepea/stockpile/pkg/stockpile/auth"
	"github.com/mikepea/stockpile/pkg/stockpile/backing/memory"
	"github.com/mikepea/stockpile/pkg/stockpile/membership"
	"github.com/mikepea/stockpile/pkg/stockpile/models"
	"github.com/mikepea/stockpile/pkg/stockpile/store"
)

type testEnv struct {
	store  *store.Store
	router *gin.Engine
	tokens *auth.TokenIssuer
	admin  models.User
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := store.New(store.Options{Backing: memory.New(), Logger: zerolog.Nop()})
	tokens := auth.NewTokenIssuer("test-secret", time.Hour, "test")

	r := gin.New()
	NewHandler(s, membership.New(s, zerolog.Nop())).RegisterRoutes(r.Group("/api", auth.Middleware(tokens, s)))
	env := &testEnv{store: s, router: r, tokens: tokens}
	env.admin = env.createUser(t, models.User{Username: "root", Role: models.SystemRoleAdmin})
	return env
}

func (e *testEnv) createUser(t *testing.T, u models.User) models.User {
	t.Helper()
	created, err := e.store.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return created
}

func (e *testEnv) do(t *testing.T, method, path string, u models.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	token, err := e.tokens.GenerateToken(u)
	require.NoError(t, err)
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestUserRoutesRequireAdmin(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.createUser(t, models.User{Username: "alice"})

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/users"},
		{"POST", "/api/users"},
		{"GET", "/api/users/" + alice.ID},
		{"PATCH", "/api/users/" + alice.ID},
		{"DELETE", "/api/users/" + env.admin.ID},
		{"GET", "/api/admin/stats"},
	} {
		w := env.do(t, tc.method, tc.path, alice, map[string]any{})
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestListUsers(t *testing.T) {
	env := setupTestEnv(t)
	env.createUser(t, models.User{Username: "alice", Password: "hash"})
	env.createUser(t, models.User{Username: "bob"})

	w := env.do(t, "GET", "/api/users", env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []auth.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 3)
	assert.NotContains(t, w.Body.String(), "hash")

	w = env.do(t, "GET", "/api/users?q=ALI", env.admin, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	w = env.do(t, "GET", "/api/users?role=admin", env.admin, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "root", users[0].Username)
}

func TestGetUser(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.createUser(t, models.User{Username: "alice"})

	w := env.do(t, "GET", "/api/users/"+alice.ID, env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, "GET", "/api/users/missing", env.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateUserWithGroups(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	_, err := env.store.CreateGroup(ctx, models.Group{ID: "g1", Name: "Lab"})
	require.NoError(t, err)

	w := env.do(t, "POST", "/api/users", env.admin, map[string]any{
		"username": "carol", "password": "secret1", "groups": []string{"g1"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got auth.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "user", got.Role)
	assert.Equal(t, []string{"g1"}, got.Groups)

	g, _ := env.store.GetGroup(ctx, "g1")
	assert.Equal(t, []string{got.ID}, g.MemberIDs)

	stored, _ := env.store.GetUser(ctx, got.ID)
	assert.True(t, auth.CheckPassword("secret1", stored.Password))
}

func TestCreateUserValidation(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "POST", "/api/users", env.admin, map[string]any{"username": "root", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	w = env.do(t, "POST", "/api/users", env.admin, map[string]any{"username": "x", "password": "secret1", "role": "owner"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"role"`)

	w = env.do(t, "POST", "/api/users", env.admin, map[string]any{"username": "x", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/api/users", env.admin, map[string]any{"username": "x", "password": "secret1", "groups": []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown group nope")
}

func TestUpdateUser(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, models.User{Username: "alice"})
	env.createUser(t, models.User{Username: "bob"})
	_, err := env.store.CreateGroup(ctx, models.Group{ID: "g1", Name: "Lab"})
	require.NoError(t, err)

	w := env.do(t, "PATCH", "/api/users/"+alice.ID, env.admin, map[string]any{"role": "admin", "groups": []string{"g1"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got auth.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "admin", got.Role)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, []string{"g1"}, got.Groups)

	w = env.do(t, "PATCH", "/api/users/"+alice.ID, env.admin, map[string]any{"groups": []string{}})
	require.Equal(t, http.StatusOK, w.Code)
	g, _ := env.store.GetGroup(ctx, "g1")
	assert.Empty(t, g.MemberIDs)

	w = env.do(t, "PATCH", "/api/users/"+alice.ID, env.admin, map[string]any{"username": "bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "PATCH", "/api/users/missing", env.admin, map[string]any{"role": "user"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateUserMovesBetweenGroups(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, models.User{Username: "alice"})
	bob := env.createUser(t, models.User{Username: "bob"})
	for _, g := range []models.Group{
		{ID: "g1", Name: "Old", MemberIDs: []string{alice.ID, bob.ID}},
		{ID: "g2", Name: "Kept", MemberIDs: []string{bob.ID, alice.ID}},
		{ID: "g3", Name: "New", MemberIDs: []string{bob.ID}},
	} {
		_, err := env.store.CreateGroup(ctx, g)
		require.NoError(t, err)
	}

	w := env.do(t, "PATCH", "/api/users/"+alice.ID, env.admin, map[string]any{"groups": []string{"g2", "g3"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	g1, _ := env.store.GetGroup(ctx, "g1")
	assert.Equal(t, []string{bob.ID}, g1.MemberIDs)
	g2, _ := env.store.GetGroup(ctx, "g2")
	assert.Equal(t, []string{bob.ID, alice.ID}, g2.MemberIDs, "unchanged groups keep their member order")
	g3, _ := env.store.GetGroup(ctx, "g3")
	assert.Equal(t, []string{bob.ID, alice.ID}, g3.MemberIDs)

	u, _ := env.store.GetUser(ctx, alice.ID)
	assert.Equal(t, []string{"g2", "g3"}, u.Groups)
}

func TestUpdateUserCannotDemoteSelf(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "PATCH", "/api/users/"+env.admin.ID, env.admin, map[string]any{"role": "user"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	u, _ := env.store.GetUser(context.Background(), env.admin.ID)
	assert.True(t, u.IsAdmin())
}

func TestDeleteUserRemovesMembership(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, models.User{Username: "alice"})
	bob := env.createUser(t, models.User{Username: "bob"})
	_, err := env.store.CreateGroup(ctx, models.Group{ID: "g1", Name: "Lab", MemberIDs: []string{alice.ID, bob.ID}})
	require.NoError(t, err)

	w := env.do(t, "DELETE", "/api/users/"+alice.ID, env.admin, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	_, ok := env.store.GetUser(ctx, alice.ID)
	assert.False(t, ok)
	g, _ := env.store.GetGroup(ctx, "g1")
	assert.Equal(t, []string{bob.ID}, g.MemberIDs)
	b, _ := env.store.GetUser(ctx, bob.ID)
	assert.Equal(t, []string{"g1"}, b.Groups)

	w = env.do(t, "DELETE", "/api/users/"+alice.ID, env.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteUserCannotDeleteSelf(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, "DELETE", "/api/users/"+env.admin.ID, env.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, ok := env.store.GetUser(context.Background(), env.admin.ID)
	assert.True(t, ok)
}

func TestGetStats(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createUser(t, models.User{Username: "alice"})
	_, err := env.store.CreateGroup(ctx, models.Group{Name: "Lab"})
	require.NoError(t, err)
	_, err = env.store.CreateComponent(ctx, models.ComponentInput{Name: "Loose", Quantity: intPtr(50)})
	require.NoError(t, err)

	w := env.do(t, "GET", "/api/admin/stats", env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, StatsResponse{
		TotalUsers:         2,
		AdminUsers:         1,
		TotalGroups:        1,
		TotalWarehouses:    1,
		TotalComponents:    6,
		LowStockComponents: 3,
		OrphanedComponents: 1,
	}, stats)
}

func intPtr(v int) *int { return &v }
