package room

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/party-queue-system/internal/auth"
	"github.com/party-queue-system/internal/queue"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes mounts the endpoints reachable without a session:
// room creation and joining.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.POST("/", h.createRoom)
		rooms.POST("/join", h.joinRoom)
	}
}

// RegisterRoutes mounts the endpoints that require a session.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.GET("/status", h.getStatus)
		rooms.GET("/qr-code", h.getQRCode)
		rooms.POST("/close", h.closeRoom)
	}
}

func abortWith(c *gin.Context, err error) {
	c.JSON(queue.StatusFor(err), gin.H{"error": err.Error()})
}

type CreateRoomRequest struct {
	HostName string `json:"host_name" binding:"required"`
}

type CreateRoomResponse struct {
	RoomCode  string `json:"room_code"`
	HostToken string `json:"host_token"`
	QRCodeURL string `json:"qr_code_url"`
}

func (h *Handler) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, _, token, err := h.service.CreateRoom(c.Request.Context(), req.HostName)
	if err != nil {
		abortWith(c, err)
		return
	}

	qr, err := qrDataURL(h.service.JoinURL(room.Code))
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateRoomResponse{
		RoomCode:  room.Code,
		HostToken: token,
		QRCodeURL: qr,
	})
}

type JoinRoomRequest struct {
	RoomCode  string `json:"room_code" binding:"required"`
	GuestName string `json:"guest_name" binding:"required"`
}

type JoinRoomResponse struct {
	GuestToken string `json:"guest_token"`
	RoomCode   string `json:"room_code"`
}

func (h *Handler) joinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, token, err := h.service.JoinRoom(c.Request.Context(), normalizeCode(req.RoomCode), req.GuestName)
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, JoinRoomResponse{
		GuestToken: token,
		RoomCode:   normalizeCode(req.RoomCode),
	})
}

func (h *Handler) getStatus(c *gin.Context) {
	participant := auth.CurrentParticipant(c)

	status, err := h.service.GetStatus(c.Request.Context(), participant.RoomID)
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) getQRCode(c *gin.Context) {
	participant := auth.CurrentParticipant(c)

	room, err := h.service.store.GetRoomByID(participant.RoomID)
	if err != nil {
		abortWith(c, queue.ErrNotFound)
		return
	}

	qr, err := qrDataURL(h.service.JoinURL(room.Code))
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"qr_code_url": qr})
}

func (h *Handler) closeRoom(c *gin.Context) {
	participant := auth.CurrentParticipant(c)

	if err := h.service.CloseRoom(c.Request.Context(), participant); err != nil {
		if errors.Is(err, queue.ErrInactive) {
			c.JSON(http.StatusOK, gin.H{"message": "room already closed"})
			return
		}
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "room closed"})
}
