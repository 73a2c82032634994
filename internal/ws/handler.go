// Package ws exposes the per-room event feed over WebSocket. Each
// connection subscribes to the broadcast hub and relays events until the
// client goes away.
package ws

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/party-queue-system/internal/auth"
	"github.com/party-queue-system/internal/hub"
	"github.com/party-queue-system/pkg/database"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the CORS layer in front
	},
}

type Handler struct {
	hub   *hub.Hub
	store *database.Store
	log   *log.Logger
}

func NewHandler(h *hub.Hub, store *database.Store, logger *log.Logger) *Handler {
	return &Handler{
		hub:   h,
		store: store,
		log:   logger.With("component", "ws"),
	}
}

// HandleWebSocket upgrades the connection and streams the participant's room
// events in publish order until the client disconnects or falls too far
// behind (in which case the hub closes the subscription).
func (h *Handler) HandleWebSocket(c *gin.Context) {
	participant := auth.CurrentParticipant(c)

	room, err := h.store.GetRoomByID(participant.RoomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("failed to upgrade connection", "err", err)
		return
	}
	defer conn.Close()

	ch := h.hub.Subscribe(room.Code)
	defer h.hub.Unsubscribe(room.Code, ch)

	h.log.Info("client connected", "room", room.Code, "participant", participant.ID)

	// Reader loop: we expect no client messages, but reading is how a
	// closed connection is noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug("read error", "room", room.Code, "err", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				// Pruned by the hub for lagging.
				h.log.Warn("subscriber dropped by hub", "room", room.Code, "participant", participant.ID)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				h.log.Debug("write failed", "room", room.Code, "err", err)
				return
			}
		case <-done:
			h.log.Info("client disconnected", "room", room.Code, "participant", participant.ID)
			return
		}
	}
}
