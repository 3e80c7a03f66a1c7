package controller

import (
	"context"
	"net/http"
	"time"

	"codearena/internal/judge/model"
	"codearena/pkg/utils/logger"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 * 1024
)

// WatchConfig controls the job status stream.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	MaxWait  time.Duration `yaml:"maxWait"`
}

func (c WatchConfig) withDefaults() WatchConfig {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 10 * time.Minute
	}
	return c
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Watch streams the job record over a websocket each time it changes and closes the
// stream once the job is terminal.
func (h *JudgeController) Watch(c *gin.Context) {
	jobID := c.Param("id")
	ctx := c.Request.Context()
	// Unknown jobs fail before the upgrade so the client sees a normal error response.
	job, err := h.jobs.GetJob(ctx, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(ctx, "websocket upgrade failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, h.watch.MaxWait)
	defer cancel()
	go discardIncoming(conn, cancel)

	if err := writeJob(conn, job); err != nil || job.State.IsTerminal() {
		closeStream(conn, "job finished")
		return
	}

	ticker := time.NewTicker(h.watch.Interval)
	defer ticker.Stop()
	last := job
	for {
		select {
		case <-ctx.Done():
			closeStream(conn, "watch ended")
			return
		case <-ticker.C:
		}
		job, err := h.jobs.GetJob(ctx, jobID)
		if err != nil {
			logger.Warn(ctx, "watch lookup failed", zap.String("job_id", jobID), zap.Error(err))
			continue
		}
		if job.State == last.State && job.UpdatedAt.Equal(last.UpdatedAt) {
			continue
		}
		last = job
		if err := writeJob(conn, job); err != nil {
			return
		}
		if job.State.IsTerminal() {
			closeStream(conn, "job finished")
			return
		}
	}
}

// discardIncoming drains client frames so control messages are processed and a
// closed connection ends the watch.
func discardIncoming(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func writeJob(conn *websocket.Conn, job *model.Job) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(job)
}

func closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
