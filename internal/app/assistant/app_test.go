package assistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"restaurant-assistant/internal/config"
	"restaurant-assistant/internal/connections/database"
	"restaurant-assistant/internal/microservices/dispatcher"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Store = "memory"
	cfg.Business.CurrencySymbol = "₹"
	return cfg
}

func TestBuild_MemoryStoreServesGateway(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer app.Close()

	srv := httptest.NewServer(app.Handler)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("X-Tenant-ID", "R1")
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-Role", "waiter")
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestBuild_DispatcherReachesEngines(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer app.Close()

	res := app.Dispatcher.Execute(context.Background(), dispatcher.Call{
		Tool: "get_order_details", TenantID: "R1", UserID: "u1", Role: "manager",
		Args: []byte(`{"order_id":"ORD_20260101_001"}`),
	})
	assert.False(t, res.Success)
	assert.Equal(t, "OrderNotFound", res.Code)
}

func TestBuild_RedisCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.Close()

	s, err := app.Tracker.StartSession(context.Background(), "R1", "u1", "waiter")
	require.NoError(t, err)
	_, err = app.Tracker.GetSession(context.Background(), "R1", s.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("session:R1:"+s.ID))
}

func TestBuild_UnreachableRedisIsSkipped(t *testing.T) {
	cfg := memoryConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	app.Close()
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	err := Migrate(context.Background(), memoryConfig(), zap.NewNop())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "postgres"))
}

func TestMigrate_AppliesSchema(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range database.Schema {
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, migrate(context.Background(), db, zap.NewNop()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
