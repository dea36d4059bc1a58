package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/chemsus-backend/internal/logger"
)

const healthPingTimeout = 5 * time.Second

// DBProbe часть пула соединений, нужная health check (*sqlx.DB подходит).
type DBProbe interface {
	PingContext(ctx context.Context) error
	Stats() sql.DBStats
}

// HealthHandler отвечает на проверки живости балансировщика.
type HealthHandler struct {
	db      DBProbe
	started time.Time
}

func NewHealthHandler(db DBProbe) *HealthHandler {
	return &HealthHandler{db: db, started: time.Now()}
}

// HealthResponse тело ответа /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	UptimeSec int64             `json:"uptime_sec"`
	Checks    map[string]string `json:"checks"`
	Pool      PoolStats         `json:"pool"`
}

// PoolStats снимок sql.DBStats.
type PoolStats struct {
	Open     int   `json:"open"`
	InUse    int   `json:"in_use"`
	Idle     int   `json:"idle"`
	MaxOpen  int   `json:"max_open"`
	WaitCnt  int64 `json:"wait_count"`
	WaitMsec int64 `json:"wait_ms"`
}

// Health обрабатывает GET /health и GET /api/test.
// 503 только при недоступной базе, исчерпанный пул лишь помечается.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		UptimeSec: int64(time.Since(h.started).Seconds()),
		Checks:    map[string]string{"database": "healthy", "connection_pool": "healthy"},
	}
	code := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		logger.Log.WithError(err).Warn("health: база не отвечает")
		resp.Status, resp.Checks["database"], code = "unhealthy", "unhealthy", http.StatusServiceUnavailable
	}

	st := h.db.Stats()
	if st.MaxOpenConnections > 0 && st.InUse >= st.MaxOpenConnections {
		resp.Checks["connection_pool"] = "warning: pool exhausted"
	}
	resp.Pool = PoolStats{
		Open:     st.OpenConnections,
		InUse:    st.InUse,
		Idle:     st.Idle,
		MaxOpen:  st.MaxOpenConnections,
		WaitCnt:  st.WaitCount,
		WaitMsec: st.WaitDuration.Milliseconds(),
	}

	c.JSON(code, resp)
}
