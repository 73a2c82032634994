package auth

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/party-queue-system/internal/spotify"
	"github.com/party-queue-system/pkg/models"
	"github.com/party-queue-system/pkg/redis"
)

// Handler owns the OAuth glue for linking the host's Spotify account to a
// room, and the catalog search passthrough.
type Handler struct {
	spotifyClient *spotify.Client
	tokenStore    *redis.TokenStore
	stateStore    *redis.StateStore
	log           *log.Logger
}

func NewHandler(spotifyClient *spotify.Client, tokenStore *redis.TokenStore, stateStore *redis.StateStore, logger *log.Logger) *Handler {
	return &Handler{
		spotifyClient: spotifyClient,
		tokenStore:    tokenStore,
		stateStore:    stateStore,
		log:           logger.With("component", "auth"),
	}
}

// RegisterPublicRoutes mounts the OAuth callback, which Spotify calls
// without a session.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/auth/callback", h.callback)
}

// RegisterRoutes mounts the session-scoped endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/auth/login", h.login)
	r.GET("/auth/refresh", h.refresh)
	r.GET("/search", h.search)
}

func (h *Handler) login(c *gin.Context) {
	participant := CurrentParticipant(c)
	if participant.Role != models.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "host privileges required"})
		return
	}

	state := uuid.New().String()
	if err := h.stateStore.Put(c.Request.Context(), state, participant.RoomID.String()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": h.spotifyClient.GetAuthURL(state)})
}

func (h *Handler) callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and state are required"})
		return
	}

	roomID, err := h.stateStore.Take(c.Request.Context(), state)
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or expired state"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate state"})
		return
	}

	token, err := h.spotifyClient.ExchangeToken(c.Request.Context(), code)
	if err != nil {
		h.log.Error("token exchange failed", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "token exchange failed"})
		return
	}

	info := &redis.TokenInfo{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	if err := h.tokenStore.StoreTokens(c.Request.Context(), roomID, info); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "account linked"})
}

func (h *Handler) refresh(c *gin.Context) {
	participant := CurrentParticipant(c)
	if participant.Role != models.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "host privileges required"})
		return
	}
	roomID := participant.RoomID.String()

	info, err := h.tokenStore.GetTokens(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no linked account"})
		return
	}

	token, err := h.spotifyClient.RefreshToken(c.Request.Context(), info.RefreshToken)
	if err != nil {
		h.log.Error("token refresh failed", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "token refresh failed"})
		return
	}

	expiresAt := time.Now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second)
	if err := h.tokenStore.RefreshTokens(c.Request.Context(), roomID, token.AccessToken, expiresAt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "token refreshed"})
}

func (h *Handler) search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	tracks, err := h.spotifyClient.SearchTracks(c.Request.Context(), query, limit)
	if err != nil {
		h.log.Error("search failed", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tracks": tracks})
}
