package groups

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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
}

func setupTestEnv(t *testing.T, sync Syncer) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := store.New(store.Options{Backing: memory.New(), Logger: zerolog.Nop()})
	if sync == nil {
		sync = membership.New(s, zerolog.Nop())
	}
	tokens := auth.NewTokenIssuer("test-secret", time.Hour, "test")

	r := gin.New()
	NewHandler(s, sync).RegisterRoutes(r.Group("/api", auth.Middleware(tokens, s)))
	return &testEnv{store: s, router: r, tokens: tokens}
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

func (e *testEnv) userGroups(t *testing.T, id string) []string {
	t.Helper()
	u, ok := e.store.GetUser(context.Background(), id)
	require.True(t, ok)
	return u.Groups
}

func TestCreateGroupSyncsMembers(t *testing.T) {
	env := setupTestEnv(t, nil)
	admin := env.createUser(t, models.User{Username: "root", Role: models.SystemRoleAdmin})
	alice := env.createUser(t, models.User{Username: "alice"})

	w := env.do(t, "POST", "/api/groups", admin, map[string]any{"name": "Lab", "memberIds": []string{alice.ID, alice.ID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got GroupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Lab", got.Name)
	assert.Equal(t, []string{alice.ID}, got.MemberIDs)
	assert.Equal(t, 1, got.MemberCount)
	assert.Equal(t, []string{got.ID}, env.userGroups(t, alice.ID))
}

func TestCreateGroupRequiresAdmin(t *testing.T) {
	env := setupTestEnv(t, nil)
	alice := env.createUser(t, models.User{Username: "alice"})

	w := env.do(t, "POST", "/api/groups", alice, map[string]any{"name": "Lab"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, env.store.ListGroups(context.Background()))
}

func TestCreateGroupValidation(t *testing.T) {
	env := setupTestEnv(t, nil)
	admin := env.createUser(t, models.User{Username: "root", Role: models.SystemRoleAdmin})

	w := env.do(t, "POST", "/api/groups", admin, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"name"`)

	w = env.do(t, "POST", "/api/groups", admin, map[string]any{"name": "Lab", "memberIds": []string{"ghost"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown user ghost")
}

func TestListGroupsVisibility(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()
	admin := env.createUser(t, models.User{Username: "root", Role: models.SystemRoleAdmin})
	alice := env.createUser(t, models.User{Username: "alice"})
	_, err := env.store.CreateGroup(ctx, models.Group{ID: "g1", Name: "Lab", MemberIDs: []string{alice.ID}})
	require.NoError(t, err)
	_, err = env.store.CreateGroup(ctx, models.Group{ID: "g2", Name: "Other"})
	require.NoError(t, err)

	var got []GroupResponse
	w := env.do(t, "GET", "/api/groups", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "g1", got[0].ID)

	w = env.do(t, "GET", "/api/groups", admin, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	w = env.do(t, "GET", "/api/groups/g2", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, "GET", "/api/groups/g1", alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateGroupRoundTrip(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()
	admin := env.createUser(t, models.User{Username: "root", Role: models.SystemRoleAdmin})
	alice := env.createUser(t, models.User{Username: "alice"})
	bob := env.createUser(t, models.User{Username: "bob"})

	w := env.do(t, "POST", "/api/groups", admin, map[string]any{"name": "Lab", "memberIds": []string{alice.ID}})
	require.Equal(t, http.StatusCreated, w.Code)
	var g GroupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))

	w = env.do(t, "PATCH", "/api/groups/"+g.ID, admin, map[string]any{"memberIds": []string{bob.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.userGroups(t, alice.ID))
	assert.Equal(t, []string{g.ID}, env.userGroups(t, bob.ID))

	stored, _ := env.store.GetGroup(ctx, g.ID)
	assert.Equal(t, "Lab", stored.Name, "name untouched when omitted")

	w = env.do(t, "PATCH", "/api/groups/missing", admin, map[string]any{"name": "X"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "DELETE", "/api/groups/"+g.ID, admin, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, env.userGroups(t, bob.ID))

	w = env.do(t, "DELETE", "/api/groups/"+g.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMembersSubresource(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()
	admin := env.createUser(t, models.User{Username: "root", Role: models.SystemRoleAdmin})
	alice := env.createUser(t, models.User{Username: "alice"})
	_, err := env.store.CreateGroup(ctx, models.Group{ID: "g1", Name: "Lab"})
	require.NoError(t, err)

	w := env.do(t, "POST", "/api/groups/g1/members", admin, map[string]any{"userId": alice.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"g1"}, env.userGroups(t, alice.ID))

	w = env.do(t, "POST", "/api/groups/g1/members", admin, map[string]any{"userId": alice.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, "POST", "/api/groups/g1/members", admin, map[string]any{"userId": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	aliceNow, _ := env.store.GetUser(ctx, alice.ID)
	w = env.do(t, "GET", "/api/groups/g1/members", aliceNow, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var members []auth.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].Username)
	assert.NotContains(t, w.Body.String(), "password")

	w = env.do(t, "DELETE", "/api/groups/g1/members/"+alice.ID, alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "DELETE", "/api/groups/g1/members/"+alice.ID, admin, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, env.userGroups(t, alice.ID))
}

type failingSyncer struct{}

func (failingSyncer) Sync(context.Context) error { return errors.New("boom") }

func TestSyncFailureIsServerError(t *testing.T) {
	env := setupTestEnv(t, failingSyncer{})
	admin := env.createUser(t, models.User{Username: "root", Role: models.SystemRoleAdmin})

	w := env.do(t, "POST", "/api/groups", admin, map[string]any{"name": "Lab"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
