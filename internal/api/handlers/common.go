package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"aqarmatch/server/internal/domain"
)

// IAsynqClient abstracts the asynq client so handlers can be tested without
// a Redis connection.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// respondError maps domain errors to their HTTP status; anything else is a
// 500 with the detail kept out of the response body.
func respondError(c *gin.Context, err error) {
	if de, ok := domain.AsError(err); ok {
		resp := gin.H{"error": de.Message}
		if len(de.Fields) > 0 {
			resp["fields"] = de.Fields
		}
		c.JSON(de.HTTPStatus(), resp)
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
