package controller

import (
	"context"

	"codearena/internal/gateway/middleware"
	"codearena/internal/judge/model"
	"codearena/internal/judge/service"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// JobService is the part of the job lifecycle exposed over HTTP.
type JobService interface {
	Submit(ctx context.Context, in service.SubmitInput) (service.SubmitOutput, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
}

// SubmitRequest is the body of POST /jobs.
type SubmitRequest struct {
	Code         string `json:"code"`
	Language     string `json:"language"`
	ProblemID    string `json:"problemId"`
	UserID       string `json:"userId"`
	TeamName     string `json:"teamName"`
	IsSubmission bool   `json:"isSubmission"`
}

// JudgeController handles job submission and status requests.
type JudgeController struct {
	jobs  JobService
	watch WatchConfig
}

// NewJudgeController creates a new controller.
func NewJudgeController(jobs JobService, watch WatchConfig) *JudgeController {
	return &JudgeController{jobs: jobs, watch: watch.withDefaults()}
}

// Register mounts the job routes on group. extra runs before the submit handler only.
func (h *JudgeController) Register(group gin.IRoutes, extra ...gin.HandlerFunc) {
	group.POST("/jobs", append(extra, h.Submit)...)
	group.GET("/jobs/:id", h.GetJob)
	group.GET("/jobs/:id/watch", h.Watch)
}

// Submit accepts code for execution and returns the queued job id.
func (h *JudgeController) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	in := service.SubmitInput{
		Code:         req.Code,
		Language:     req.Language,
		ProblemID:    req.ProblemID,
		UserID:       req.UserID,
		TeamName:     req.TeamName,
		IsSubmission: req.IsSubmission,
	}
	// A verified bearer identity takes precedence over the body.
	if userID, team, ok := middleware.AuthenticatedUser(c); ok {
		in.UserID = userID
		if team != "" {
			in.TeamName = team
		}
	}
	out, err := h.jobs.Submit(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, out)
}

// GetJob returns the current job record.
func (h *JudgeController) GetJob(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		response.BadRequest(c, "Invalid job id")
		return
	}
	job, err := h.jobs.GetJob(c.Request.Context(), jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, job)
}
