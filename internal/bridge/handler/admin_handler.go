package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/robloxguru/gamebridge/internal/bridge/domain"
	"github.com/robloxguru/gamebridge/internal/bridge/dto"
)

// maxListedPlayers bounds the admin player listing response
const maxListedPlayers = 13

// GetSessionKey handles GET /admin/sessions/:jobId/key
// Returns the current apiKey bound to a worker identity.
func (h *BridgeHandler) GetSessionKey(c *gin.Context) {
	jobID := c.Param("jobId")

	session, err := h.store.SessionByJobID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No API key found for this jobId",
			})
			return
		}
		h.logger.Error("Failed to look up session", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
		return
	}

	c.JSON(http.StatusOK, dto.SessionKeyResponse{
		JobID:  session.JobID,
		APIKey: session.APIKey,
	})
}

// SearchPlayer handles GET /admin/players/search?target=
// Finds a player across all snapshots by numeric user id or by name.
func (h *BridgeHandler) SearchPlayer(c *gin.Context) {
	target := c.Query("target")
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing target",
		})
		return
	}

	snapshots, err := h.store.AllSnapshots(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list snapshots", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
		return
	}

	userID, byUserID := parseUserID(target)

	for _, snapshot := range snapshots {
		players, err := snapshot.Players()
		if err != nil {
			h.logger.Warn("Skipping undecodable snapshot",
				slog.String("job_id", snapshot.JobID),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, p := range players {
			if byUserID && p.UserID == userID || !byUserID && p.Name == target {
				c.JSON(http.StatusOK, p)
				return
			}
		}
	}

	c.JSON(http.StatusNotFound, gin.H{
		"error": "No player found",
	})
}

// ListPlayersByJob handles GET /admin/players/:jobId
// Returns up to maxListedPlayers players whose data carries the given jobId.
func (h *BridgeHandler) ListPlayersByJob(c *gin.Context) {
	jobID := c.Param("jobId")

	snapshots, err := h.store.AllSnapshots(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list snapshots", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal error",
		})
		return
	}

	var matched []domain.Player
	for _, snapshot := range snapshots {
		players, err := snapshot.Players()
		if err != nil {
			h.logger.Warn("Skipping undecodable snapshot",
				slog.String("job_id", snapshot.JobID),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, p := range players {
			if p.JobID == jobID {
				matched = append(matched, p)
				if len(matched) == maxListedPlayers {
					break
				}
			}
		}
		if len(matched) == maxListedPlayers {
			break
		}
	}

	if len(matched) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No players found",
		})
		return
	}

	c.JSON(http.StatusOK, dto.PlayerListResponse{
		JobID:   jobID,
		Players: matched,
	})
}

// parseUserID reports whether target is an all-digit user id.
func parseUserID(target string) (int64, bool) {
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
