package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/party-queue-system/pkg/database"
	"github.com/party-queue-system/pkg/jwt"
	"github.com/party-queue-system/pkg/models"
)

const participantKey = "participant"

// Middleware validates the session token, loads the participant and checks
// that their room is still open. WebSocket clients pass the token as a query
// parameter since browsers cannot set headers on the upgrade request.
func Middleware(store *database.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no authorization token"})
			return
		}

		claims, err := jwt.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		participantID, err := uuid.Parse(claims.ParticipantID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		participant, err := store.GetParticipantByID(participantID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown participant"})
			return
		}

		room, err := store.GetRoomByID(participant.RoomID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown room"})
			return
		}
		if !room.Open(time.Now()) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "room is no longer active"})
			return
		}

		c.Set(participantKey, participant)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return header
	}
	return c.Query("token")
}

// CurrentParticipant returns the participant set by Middleware. It panics if
// called on a route that is not behind the middleware.
func CurrentParticipant(c *gin.Context) *models.Participant {
	return c.MustGet(participantKey).(*models.Participant)
}
