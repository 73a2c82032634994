package queue

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/party-queue-system/internal/auth"
)

type Handler struct {
	coordinator *Coordinator
}

func NewHandler(coordinator *Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	queue := r.Group("/queue")
	{
		queue.POST("/", h.addTrack)
		queue.POST("/:id/vote", h.castVote)
		queue.DELETE("/:id", h.removeEntry)
	}

	playback := r.Group("/playback")
	{
		playback.POST("/skip", h.skip)
		playback.POST("/play", h.play)
		playback.POST("/pause", h.pause)
	}
}

// StatusFor maps the engine error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrInactive):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidVote):
		return http.StatusBadRequest
	case errors.Is(err, ErrStoreFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	c.JSON(StatusFor(err), gin.H{"error": err.Error()})
}

type AddTrackRequest struct {
	SpotifyID string `json:"spotify_id" binding:"required"`
}

func (h *Handler) addTrack(c *gin.Context) {
	participant := auth.CurrentParticipant(c)

	var req AddTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.coordinator.AddTrack(c.Request.Context(), participant, req.SpotifyID)
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

type VoteRequest struct {
	Value int `json:"value" binding:"required,oneof=-1 1"`
}

func (h *Handler) castVote(c *gin.Context) {
	participant := auth.CurrentParticipant(c)

	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tally, err := h.coordinator.CastVote(c.Request.Context(), participant, entryID, req.Value)
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"vote_count": tally})
}

func (h *Handler) removeEntry(c *gin.Context) {
	participant := auth.CurrentParticipant(c)

	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	if err := h.coordinator.RemoveEntry(c.Request.Context(), participant, entryID); err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "entry removed"})
}

func (h *Handler) skip(c *gin.Context) {
	participant := auth.CurrentParticipant(c)

	next, err := h.coordinator.Skip(c.Request.Context(), participant)
	if err != nil {
		abortWith(c, err)
		return
	}

	if next == nil {
		c.JSON(http.StatusOK, gin.H{"next_entry_id": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"next_entry_id": next.ID})
}

func (h *Handler) play(c *gin.Context) {
	participant := auth.CurrentParticipant(c)
	if err := h.coordinator.Play(c.Request.Context(), participant); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "playback resumed"})
}

func (h *Handler) pause(c *gin.Context) {
	participant := auth.CurrentParticipant(c)
	if err := h.coordinator.Pause(c.Request.Context(), participant); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "playback paused"})
}
