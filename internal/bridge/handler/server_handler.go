package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robloxguru/gamebridge/internal/bridge/auth"
	"github.com/robloxguru/gamebridge/internal/bridge/domain"
	"github.com/robloxguru/gamebridge/internal/bridge/dto"
)

// GetPlayers handles POST /server/players
// Returns the last-known player snapshot of the session identified by the
// Authorization header. A session without a snapshot gets an empty set.
func (h *BridgeHandler) GetPlayers(c *gin.Context) {
	apiKey := c.GetHeader("Authorization")
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
				"error": "Invalid apiKey",
			})
			return
		}
		h.logger.Error("Failed to look up session", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
		return
	}

	players := domain.PlayerSet{}
	snapshot, err := h.store.Snapshot(c.Request.Context(), session.JobID)
	switch {
	case err == nil:
		players, err = snapshot.Players()
		if err != nil {
			h.logger.Warn("Stored snapshot data is not decodable",
				slog.String("job_id", session.JobID),
				slog.String("error", err.Error()),
			)
			players = domain.PlayerSet{}
		}
	case errors.Is(err, domain.ErrSnapshotNotFound):
		// no snapshot yet, empty set
	default:
		h.logger.Error("Failed to get snapshot", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
		return
	}

	c.JSON(http.StatusOK, dto.PlayersResponse{
		JobID:   session.JobID,
		Players: players,
	})
}

// SubmitPlayers handles POST /internal/server/submitPlayers
// Privileged upsert of a worker's player snapshot. The presented apiKey and
// jobId must belong to the same session.
func (h *BridgeHandler) SubmitPlayers(c *gin.Context) {
	secret := c.GetHeader("Authorization")
	apiKey := c.GetHeader("ApiKey")
	jobID := c.GetHeader("JobId")

	var req dto.SubmitPlayersRequest
	if secret == "" || apiKey == "" || jobID == "" || c.ShouldBindJSON(&req) != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing required headers or players data",
		})
		return
	}

	if _, err := h.gate.Verify(c.Request.Context(), auth.Credential{Kind: auth.KindPrivilegedSecret, Value: secret}); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid authorization header",
		})
		return
	}

	session, err := h.store.SessionByAPIKey(c.Request.Context(), apiKey)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		h.logger.Error("Failed to look up session", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
		return
	}
	if session == nil || session.JobID != jobID {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid apiKey/jobId combination",
		})
		return
	}

	if err := req.Players.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid players data",
		})
		return
	}

	data, err := json.Marshal(req.Players)
	if err != nil {
		h.logger.Error("Failed to encode players data", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
		return
	}

	if err := h.store.UpsertSnapshot(c.Request.Context(), jobID, data); err != nil {
		h.logger.Error("Failed to upsert snapshot",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "Players data updated",
	})
}

// KeepAlive handles POST /internal/server/keepAlive
// Refreshes or creates the session binding jobId to apiKey, revoking any
// conflicting prior binding.
func (h *BridgeHandler) KeepAlive(c *gin.Context) {
	secret := c.GetHeader("Authorization")
	apiKey := c.GetHeader("ApiKey")
	jobID := c.GetHeader("JobId")

	if secret == "" || apiKey == "" || jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing required headers",
		})
		return
	}

	if _, err := h.gate.Verify(c.Request.Context(), auth.Credential{Kind: auth.KindPrivilegedSecret, Value: secret}); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid authorization header",
		})
		return
	}

	if err := h.store.Heartbeat(c.Request.Context(), jobID, apiKey); err != nil {
		h.logger.Error("Failed to record heartbeat",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "KeepAlive updated",
	})
}
