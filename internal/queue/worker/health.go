package worker

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessDeps is what the worker needs reachable to make progress.
type ReadinessDeps interface {
	Ping(ctx context.Context) error
}

// BreakerState is implemented by notifications.ProtectedNotifier.
type BreakerState interface {
	State() string
}

// HealthHandler serves /healthz, /readyz, /statsz and, when gatherer is
// set, /metrics for the worker process.
func (w *Worker) HealthHandler(deps ReadinessDeps, breaker BreakerState, gatherer prometheus.Gatherer) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	// liveness: process is up
	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// readiness: loops running and the database answers
	r.GET("/readyz", func(c *gin.Context) {
		if !w.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}

		if deps != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
			defer cancel()

			if err := deps.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready"})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/statsz", func(c *gin.Context) {
		body := gin.H{
			"workerId": w.cfg.WorkerID,
			"jobs":     w.metrics.Snapshot(),
		}
		if breaker != nil {
			body["notifierBreaker"] = breaker.State()
		}
		c.JSON(http.StatusOK, body)
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
