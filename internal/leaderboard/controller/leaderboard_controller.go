package controller

import (
	"context"
	"strconv"

	"codearena/internal/leaderboard/model"
	"codearena/internal/leaderboard/service"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// BoardReader is the read side of the leaderboard.
type BoardReader interface {
	Top(ctx context.Context, limit int) ([]model.Ranked, error)
	Standing(ctx context.Context, userID string) (*service.Standing, error)
}

// LeaderboardController serves leaderboard queries.
type LeaderboardController struct {
	board BoardReader
}

func NewLeaderboardController(board BoardReader) *LeaderboardController {
	return &LeaderboardController{board: board}
}

// Register mounts the leaderboard routes on group.
func (h *LeaderboardController) Register(group gin.IRoutes) {
	group.GET("/leaderboard", h.Top)
	group.GET("/leaderboard/:userId", h.Standing)
}

// Top handles GET /leaderboard?limit=.
func (h *LeaderboardController) Top(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	top, err := h.board.Top(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if top == nil {
		top = []model.Ranked{}
	}
	response.Success(c, top)
}

// Standing handles GET /leaderboard/:userId.
func (h *LeaderboardController) Standing(c *gin.Context) {
	standing, err := h.board.Standing(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, standing)
}
