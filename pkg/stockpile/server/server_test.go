package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikepea/stockpile/pkg/stockpile/auth"
	"github.com/mikepea/stockpile/pkg/stockpile/backing/memory"
	"github.com/mikepea/stockpile/pkg/stockpile/config"
	"github.com/mikepea/stockpile/pkg/stockpile/membership"
	"github.com/mikepea/stockpile/pkg/stockpile/models"
	"github.com/mikepea/stockpile/pkg/stockpile/store"
)

const adminPassword = "s3cret-admin"

type testServer struct {
	router *gin.Engine
	store  *store.Store
}

// setupFullServer mirrors the wiring in cmd/stockpile-server.
func setupFullServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	s := store.New(store.Options{Backing: memory.New(), Logger: zerolog.Nop(), Metrics: store.NewMetrics(reg)})
	ctx := context.Background()
	s.Init(ctx)
	require.NoError(t, EnsureAdmin(ctx, s, config.AdminConfig{Username: "admin", Password: adminPassword}, zerolog.Nop()))

	sync := membership.New(s, zerolog.Nop())
	router := NewRouter(Deps{
		Store:    s,
		Tokens:   auth.NewTokenIssuer("test-secret", time.Hour, "test"),
		Sync:     sync,
		Logger:   zerolog.Nop(),
		Registry: reg,
	})
	return &testServer{router: router, store: s}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T, username, password string) auth.AuthResponse {
	t.Helper()
	w := ts.do(t, "POST", "/api/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp auth.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (ts *testServer) register(t *testing.T, username, password string) auth.AuthResponse {
	t.Helper()
	w := ts.do(t, "POST", "/api/register", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp auth.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// TestServerStartup verifies that all routes can be registered without conflicts
func TestServerStartup(t *testing.T) {
	ts := setupFullServer(t)
	require.NotNil(t, ts.router)
}

func TestHealthEndpoints(t *testing.T) {
	ts := setupFullServer(t)

	w := ts.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = ts.do(t, "GET", "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"stockpile"}`, w.Body.String())
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	ts := setupFullServer(t)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/session"},
		{"GET", "/api/me"},
		{"GET", "/api/components"},
		{"POST", "/api/components"},
		{"GET", "/api/stats"},
		{"GET", "/api/warehouses"},
		{"GET", "/api/groups"},
		{"POST", "/api/groups"},
		{"GET", "/api/users"},
		{"GET", "/api/export"},
		{"POST", "/api/import"},
		{"GET", "/api/admin/stats"},
	} {
		w := ts.do(t, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestPublicEndpointsNoAuth(t *testing.T) {
	ts := setupFullServer(t)

	w := ts.do(t, "POST", "/api/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, "POST", "/api/login", "", map[string]string{"username": "admin", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupFullServer(t)
	ts.do(t, "GET", "/health", "", nil)

	w := ts.do(t, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `stockpile_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, body, `stockpile_store_records{collection="components"} 5`)
}

// TestInventoryWorkflow walks the main flow: an admin groups two users, one
// of them stocks a group warehouse, and the other sees it on the next request.
func TestInventoryWorkflow(t *testing.T) {
	ts := setupFullServer(t)
	adminTok := ts.login(t, "admin", adminPassword).Token

	alice := ts.register(t, "alice", "alice-pw")
	bob := ts.register(t, "bob", "bob-pw")
	assert.NotEmpty(t, alice.User.DefaultWarehouseID)

	// Bob cannot see alice's personal warehouse.
	w := ts.do(t, "GET", "/api/warehouses/"+alice.User.DefaultWarehouseID, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Only admins create groups.
	w = ts.do(t, "POST", "/api/groups", alice.Token, map[string]any{"name": "Makers"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, "POST", "/api/groups", adminTok, map[string]any{"name": "Makers", "memberIds": []string{alice.User.ID, bob.User.ID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	group := decode[models.Group](t, w)

	// Membership shows up on the very next request with the same token.
	w = ts.do(t, "GET", "/api/session", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), group.ID)

	w = ts.do(t, "POST", "/api/warehouses", alice.Token, map[string]any{"name": "Makerspace", "type": "group", "groupId": group.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	shared := decode[models.Warehouse](t, w)

	w = ts.do(t, "POST", "/api/components", alice.Token, map[string]any{
		"name": "Arduino Nano", "category": "Microcontrollers", "quantity": 3, "warehouseId": shared.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	nano := decode[models.Component](t, w)
	assert.Equal(t, models.WarehouseTypeGroup, nano.WarehouseType)
	assert.Equal(t, group.ID, *nano.WarehouseGroupID)

	// Bob sees it through the group and gets it flagged as low stock.
	w = ts.do(t, "GET", "/api/components?warehouseId="+shared.ID, bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Component](t, w), 1)

	w = ts.do(t, "GET", "/api/components/alerts/low-stock", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Arduino Nano")

	// Bob may use the warehouse but not delete it.
	w = ts.do(t, "DELETE", "/api/warehouses/"+shared.ID, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Removing bob from the group hides the warehouse immediately.
	w = ts.do(t, "PATCH", "/api/groups/"+group.ID, adminTok, map[string]any{"memberIds": []string{alice.User.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, "GET", "/api/components/"+nano.ID, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Deleting the warehouse orphans the component; nobody can see it.
	w = ts.do(t, "DELETE", "/api/warehouses/"+shared.ID, alice.Token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, "GET", "/api/components/"+nano.ID, adminTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	orphan, ok := ts.store.GetComponent(context.Background(), nano.ID)
	require.True(t, ok)
	assert.Nil(t, orphan.WarehouseID)

	w = ts.do(t, "GET", "/api/admin/stats", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"orphanedComponents":1`)
}

func TestAdminSeesSeededInventory(t *testing.T) {
	ts := setupFullServer(t)
	adminTok := ts.login(t, "admin", adminPassword).Token

	w := ts.do(t, "GET", "/api/stats", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalComponents":5,"totalQuantity":308,"categories":5,"lowStockCount":3}`, w.Body.String())

	w = ts.do(t, "GET", "/api/warehouses", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.DefaultWarehouseID)
}

func TestEnsureAdminIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.New(store.Options{Backing: memory.New(), Logger: zerolog.Nop()})
	cfg := config.AdminConfig{Username: "boss", Password: "first-pw"}

	require.NoError(t, EnsureAdmin(ctx, s, cfg, zerolog.Nop()))
	require.NoError(t, EnsureAdmin(ctx, s, config.AdminConfig{Username: "boss", Password: "second-pw"}, zerolog.Nop()))

	u, ok := s.GetUser(ctx, store.AdminUserID)
	require.True(t, ok)
	assert.Equal(t, "boss", u.Username)
	assert.True(t, u.IsAdmin())
	assert.Equal(t, models.DefaultWarehouseID, u.DefaultWarehouseID)
	assert.True(t, auth.CheckPassword("first-pw", u.Password))
	assert.Len(t, s.ListUsers(ctx), 1)

	count := 0
	for _, w := range s.ListWarehouses(ctx) {
		if w.ID == models.DefaultWarehouseID {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEnsureAdminGeneratesPassword(t *testing.T) {
	ctx := context.Background()
	s := store.New(store.Options{Backing: memory.New(), Logger: zerolog.Nop()})

	var logs bytes.Buffer
	require.NoError(t, EnsureAdmin(ctx, s, config.AdminConfig{Username: "admin"}, zerolog.New(&logs)))

	var entry struct {
		Level    string `json:"level"`
		Password string `json:"password"`
	}
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "warn", entry.Level)
	require.NotEmpty(t, entry.Password)

	u, _ := s.GetUser(ctx, store.AdminUserID)
	assert.True(t, auth.CheckPassword(entry.Password, u.Password))
}

func TestEnsureAdminUsernameTaken(t *testing.T) {
	ctx := context.Background()
	s := store.New(store.Options{Backing: memory.New(), Logger: zerolog.Nop()})
	_, err := s.CreateUser(ctx, models.User{Username: "admin"})
	require.NoError(t, err)

	err = EnsureAdmin(ctx, s, config.AdminConfig{Username: "admin", Password: "pw-pw-pw"}, zerolog.Nop())
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestOpenBacking(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, driver := range []string{config.DriverMemory, config.DriverFile, config.DriverSQLite, config.DriverBolt} {
		t.Run(driver, func(t *testing.T) {
			b, err := OpenBacking(ctx, config.StorageConfig{
				Driver:     driver,
				DataDir:    filepath.Join(dir, "json"),
				SQLitePath: filepath.Join(dir, "stockpile.db"),
				BoltPath:   filepath.Join(dir, "stockpile.bolt"),
			})
			require.NoError(t, err)
			defer b.Close()

			require.NoError(t, b.Save(ctx, models.CollectionGroups, []byte(`[]`)))
			payload, err := b.Load(ctx, models.CollectionGroups)
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(payload))
		})
	}

	_, err := OpenBacking(ctx, config.StorageConfig{Driver: "redis"})
	assert.Error(t, err)
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stockpile.bolt")
	cfg := config.StorageConfig{Driver: config.DriverBolt, BoltPath: path}

	b, err := OpenBacking(ctx, cfg)
	require.NoError(t, err)
	s := store.New(store.Options{Backing: b, Logger: zerolog.Nop()})
	require.NoError(t, EnsureAdmin(ctx, s, config.AdminConfig{Username: "admin", Password: "pw-pw-pw"}, zerolog.Nop()))
	seeded := s.ListComponents(ctx)
	require.NoError(t, s.Close())

	b, err = OpenBacking(ctx, cfg)
	require.NoError(t, err)
	s = store.New(store.Options{Backing: b, Logger: zerolog.Nop()})
	defer s.Close()

	assert.Equal(t, seeded, s.ListComponents(ctx), "samples are not seeded twice")
	_, ok := s.GetUser(ctx, store.AdminUserID)
	assert.True(t, ok)
}
