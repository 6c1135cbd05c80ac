package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/persistence/schema"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeProbe struct {
	pingErr error
	stats   persistence.ConnectionStats
}

func (p *fakeProbe) Ping(context.Context) error { return p.pingErr }
func (p *fakeProbe) Dialect() string            { return "mysql" }
func (p *fakeProbe) Stats() (persistence.ConnectionStats, error) {
	return p.stats, nil
}

func newRouter(h *HealthHandler, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(logger.RequestID(), logger.GinMiddleware(log))
	h.Register(r)
	return r
}

func get(t *testing.T, r *gin.Engine, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthHandler_Healthy(t *testing.T) {
	probe := &fakeProbe{stats: persistence.ConnectionStats{MaxOpenConnections: 25, OpenConnections: 2, Idle: 2}}
	r := newRouter(NewHealthHandler(probe, nil), zap.NewNop())

	code, body := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "mysql", body["dialect"])
	pool, ok := body["pool"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 25, pool["max_open_connections"])
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	probe := &fakeProbe{pingErr: errors.New("connection refused")}
	r := newRouter(NewHealthHandler(probe, nil), zap.New(core))

	code, body := get(t, r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, 1, logs.FilterMessage("Health check failed").Len())
}

func TestHealthHandler_Schema(t *testing.T) {
	decl := &schema.Declaration{
		Charset:   "utf8mb4",
		Collation: "utf8mb4_unicode_ci",
		Engine:    "InnoDB",
		Tables: []schema.TableDeclaration{{
			Name: "identity_users",
			Columns: []schema.ColumnDeclaration{
				{Name: "id", Class: schema.KeyColumn, Size: 191},
				{Name: "user_name", Class: schema.BoundedColumn, Size: 255},
				{Name: "access_failed_count"},
			},
		}},
	}
	r := newRouter(NewHealthHandler(&fakeProbe{}, decl), zap.NewNop())

	code, body := get(t, r, "/schema")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "utf8mb4_unicode_ci", body["collation"])

	tables := body["tables"].([]any)
	require.Len(t, tables, 1)
	users := tables[0].(map[string]any)
	assert.Equal(t, "identity_users", users["name"])
	assert.EqualValues(t, 3, users["columns"])
	assert.Equal(t, map[string]any{"id": float64(191), "user_name": float64(255)}, users["capped"])
}

func TestHealthHandler_SchemaNotDeclared(t *testing.T) {
	r := newRouter(NewHealthHandler(&fakeProbe{}, nil), zap.NewNop())

	code, _ := get(t, r, "/schema")
	assert.Equal(t, http.StatusNotFound, code)
}
