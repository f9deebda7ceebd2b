package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chatcoach/internal/bootstrap"
)

type HealthHandler struct {
	app *bootstrap.App
}

type probeResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

// Check probes every backing store the request path depends on. Any
// failed probe flips the whole response to 503.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	probes := gin.H{
		"mysql":    asProbe(h.pingMySQL(ctx)),
		"redis":    asProbe(h.app.Redis.Ping(ctx).Err()),
		"rabbitmq": asProbe(h.pingRabbitMQ()),
	}

	statusCode := http.StatusOK
	for _, p := range probes {
		if !p.(probeResult).OK {
			statusCode = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(statusCode, gin.H{
		"app":          h.app.Config.App.Name,
		"env":          h.app.Config.App.Env,
		"uptime_sec":   int(time.Since(h.app.StartedAt).Seconds()),
		"dependencies": probes,
	})
}

func (h *HealthHandler) pingMySQL(ctx context.Context) error {
	sqlDB, err := h.app.MySQL.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (h *HealthHandler) pingRabbitMQ() error {
	if h.app.MQConn == nil || h.app.MQConn.IsClosed() {
		return errors.New("connection closed")
	}
	return nil
}

func asProbe(err error) probeResult {
	if err != nil {
		return probeResult{OK: false, Message: err.Error()}
	}
	return probeResult{OK: true}
}
