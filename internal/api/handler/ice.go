package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vidchat/backend/internal/iceconfig"
)

func (h *Handler) ListICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, h.ICE.List())
}

func (h *Handler) AddICEServer(c *gin.Context) {
	var s iceconfig.Server
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	servers, err := h.ICE.Add(c.Request.Context(), s)
	h.respondICE(c, http.StatusCreated, servers, err)
}

func (h *Handler) UpdateICEServer(c *gin.Context) {
	index, ok := pathIndex(c)
	if !ok {
		return
	}
	var s iceconfig.Server
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	servers, err := h.ICE.Update(c.Request.Context(), index, s)
	h.respondICE(c, http.StatusOK, servers, err)
}

func (h *Handler) DeleteICEServer(c *gin.Context) {
	index, ok := pathIndex(c)
	if !ok {
		return
	}
	servers, err := h.ICE.Remove(c.Request.Context(), index)
	h.respondICE(c, http.StatusOK, servers, err)
}

// respondICE maps a mutation result to a response and pushes a successful
// change to every connected client.
func (h *Handler) respondICE(c *gin.Context, status int, servers []iceconfig.Server, err error) {
	switch {
	case errors.Is(err, iceconfig.ErrIndexOutOfRange):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, iceconfig.ErrInvalidServer):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.Error("ice server update failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update ice servers"})
	default:
		if !h.Hub.BroadcastICEServers(servers) {
			h.logger.Warn("ice servers changed but hub is stopped")
		}
		c.JSON(status, servers)
	}
}

func pathIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return 0, false
	}
	return index, true
}
