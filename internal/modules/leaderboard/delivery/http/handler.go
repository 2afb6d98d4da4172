package http

import (
	"net/http"
	"strconv"

	leaderboardService "anoa.com/runclub/internal/modules/leaderboard/service"
	"anoa.com/runclub/pkg/response"
	"github.com/gin-gonic/gin"
)

type LeaderboardHandler struct {
	service leaderboardService.LeaderboardService
}

func NewLeaderboardHandler(service leaderboardService.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit < 0 {
		limit = 0
	}

	snap, err := h.service.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

func (h *LeaderboardHandler) Rebuild(c *gin.Context) {
	snap, err := h.service.Rebuild(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}
