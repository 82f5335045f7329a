package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robloxguru/gamebridge/internal/bridge/domain"
	"github.com/robloxguru/gamebridge/internal/bridge/dto"
)

// Test handles GET /test
func (h *BridgeHandler) Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "API online",
	})
}

// ExecuteCommand handles POST /command/execute
// Appends a command to the backlog of the session identified by the
// Authorization header.
func (h *BridgeHandler) ExecuteCommand(c *gin.Context) {
	apiKey := c.GetHeader("Authorization")

	var req dto.ExecuteCommandRequest
	if apiKey == "" || c.ShouldBindJSON(&req) != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing apiKey or data",
		})
		return
	}

	jobID, err := h.store.EnqueueCommand(c.Request.Context(), apiKey, req.Data)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid apiKey",
			})
			return
		}
		h.logger.Error("Failed to enqueue command", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
		return
	}

	h.events.CommandEnqueued(c.Request.Context(), jobID, apiKey)

	c.JSON(http.StatusOK, gin.H{
		"status": "Command enqueued",
	})
}

// PollCommands handles POST /internal/server/get/data/commands
// Drains the caller's backlog: every returned command is deleted before the
// response is written, so a command is handed out at most once.
func (h *BridgeHandler) PollCommands(c *gin.Context) {
	apiKey := c.GetHeader("Authentication")
	if apiKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing apiKey",
		})
		return
	}

	session, err := h.store.SessionByAPIKey(c.Request.Context(), apiKey)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}
		h.logger.Error("Failed to look up session", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
		return
	}

	commands, err := h.store.DrainCommands(c.Request.Context(), apiKey)
	if err != nil {
		h.logger.Error("Failed to drain commands",
			slog.String("job_id", session.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching commands",
		})
		return
	}

	response := dto.PollCommandsResponse{
		JobID:    session.JobID,
		Commands: make([]dto.CommandDTO, len(commands)),
	}
	for i, cmd := range commands {
		response.Commands[i] = dto.CommandDTO{
			ID:        cmd.ID,
			Timestamp: formatTimestamp(cmd.EnqueuedAt),
			Data:      cmd.Payload,
		}
	}

	c.JSON(http.StatusOK, response)
}
