package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"vidchat/backend/internal/chathub"
	"vidchat/backend/internal/config"
	"vidchat/backend/internal/iceconfig"
)

// Handler містить посилання на ChatHub
type Handler struct {
	Hub *chathub.ManagerService
	ICE *iceconfig.Manager

	logger *slog.Logger
}

func NewHandler(hub *chathub.ManagerService, ice *iceconfig.Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Hub: hub, ICE: ice, logger: logger}
}

// Routes mounts every endpoint on r. The admin API and the monitor are only
// mounted when their credentials are configured.
func (h *Handler) Routes(r *gin.Engine, cfg config.Config) {
	r.GET("/health", h.Health)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api")
	api.GET("/ice-servers", h.ListICEServers)

	if cfg.AdminJWTSecret != "" {
		admin := api.Group("/ice-servers", AdminAuth([]byte(cfg.AdminJWTSecret)))
		admin.POST("", h.AddICEServer)
		admin.PUT("/:index", h.UpdateICEServer)
		admin.DELETE("/:index", h.DeleteICEServer)
	} else {
		h.logger.Warn("ADMIN_JWT_SECRET is empty, ice server admin API disabled")
	}

	if cfg.MonitorEnabled() {
		r.GET("/monitor", gin.BasicAuth(gin.Accounts{
			cfg.MonitoringUsername: cfg.MonitoringPassword,
		}), h.Monitor)
	} else {
		h.logger.Warn("monitoring credentials are empty, /monitor disabled")
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Monitor lists the live rooms as the hub sees them.
func (h *Handler) Monitor(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.StorageTimeout)
	defer cancel()

	rooms, err := h.Hub.Snapshot(ctx)
	if err != nil {
		h.logger.Error("monitor snapshot failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hub unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "count": len(rooms)})
}
