// Package handler serves the CRM ops endpoints.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/persistence/schema"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DatabaseProbe is the part of persistence.Database the health check reads
type DatabaseProbe interface {
	Ping(ctx context.Context) error
	Dialect() string
	Stats() (persistence.ConnectionStats, error)
}

// HealthHandler reports database reachability and the declared schema
type HealthHandler struct {
	db      DatabaseProbe
	decl    *schema.Declaration
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler. decl may be nil when the schema
// was not declared at startup.
func NewHealthHandler(db DatabaseProbe, decl *schema.Declaration) *HealthHandler {
	return &HealthHandler{db: db, decl: decl, timeout: 2 * time.Second}
}

// Register mounts GET /health and GET /schema
func (h *HealthHandler) Register(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/schema", h.Schema)
}

// Health pings the database and reports pool statistics
func (h *HealthHandler) Health(c *gin.Context) {
	reqLog := logger.GetGinLogger(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := h.db.Ping(ctx); err != nil {
		reqLog.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"time":     now,
			"database": "error",
		})
		return
	}

	body := gin.H{
		"status":   "healthy",
		"time":     now,
		"database": "ok",
		"dialect":  h.db.Dialect(),
	}
	if stats, err := h.db.Stats(); err == nil {
		body["pool"] = stats
	}
	c.JSON(http.StatusOK, body)
}

// SchemaSummary is the JSON shape of GET /schema
type SchemaSummary struct {
	Charset   string         `json:"charset"`
	Collation string         `json:"collation"`
	Engine    string         `json:"engine"`
	Tables    []TableSummary `json:"tables"`
}

// TableSummary lists a table's capped text columns
type TableSummary struct {
	Name    string         `json:"name"`
	Columns int            `json:"columns"`
	Capped  map[string]int `json:"capped,omitempty"`
}

// Schema returns the declaration the server registered at startup
func (h *HealthHandler) Schema(c *gin.Context) {
	if h.decl == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "schema not declared"})
		return
	}
	c.JSON(http.StatusOK, summarize(h.decl))
}

func summarize(decl *schema.Declaration) SchemaSummary {
	out := SchemaSummary{
		Charset:   decl.Charset,
		Collation: decl.Collation,
		Engine:    decl.Engine,
		Tables:    make([]TableSummary, 0, len(decl.Tables)),
	}
	for _, t := range decl.Tables {
		ts := TableSummary{Name: t.Name, Columns: len(t.Columns)}
		for _, col := range t.Columns {
			if col.Class == schema.KeyColumn || col.Class == schema.BoundedColumn {
				if ts.Capped == nil {
					ts.Capped = make(map[string]int)
				}
				ts.Capped[col.Name] = col.Size
			}
		}
		out.Tables = append(out.Tables, ts)
	}
	return out
}
