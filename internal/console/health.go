package console

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alecgard/ovpnadmin/internal/logging"
)

// health handles GET /health.
func (c *Console) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	status := http.StatusOK
	if c.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := c.deps.DB.Ping(ctx); err != nil {
			logFrom(r).Error("health check: database unreachable", "error", err)
			body["status"] = "degraded"
			body["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "connected"
		}
	}
	writeJSON(w, status, body)
}

func logFrom(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context())
}
