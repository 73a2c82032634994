// Package room manages the lifecycle of listening rooms: creation with a
// short join code, guest joins, status snapshots and close.
package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/party-queue-system/internal/queue"
	"github.com/party-queue-system/pkg/database"
	"github.com/party-queue-system/pkg/events"
	"github.com/party-queue-system/pkg/jwt"
	"github.com/party-queue-system/pkg/models"
)

const roomLifetime = 24 * time.Hour

// codeRetries bounds how often room creation retries on a code collision
// before giving up.
const codeRetries = 5

// Cache is the read-through room cache. redis.RoomCache is the production
// implementation.
type Cache interface {
	Get(ctx context.Context, code string) (*models.Room, error)
	Put(ctx context.Context, room *models.Room) error
	Invalidate(ctx context.Context, code string) error
}

type Service struct {
	store       *database.Store
	cache       Cache
	coordinator *queue.Coordinator
	baseURL     string
	log         *log.Logger
}

func NewService(store *database.Store, cache Cache, coordinator *queue.Coordinator, baseURL string, logger *log.Logger) *Service {
	return &Service{
		store:       store,
		cache:       cache,
		coordinator: coordinator,
		baseURL:     baseURL,
		log:         logger.With("component", "room"),
	}
}

// CreateRoom opens a new room with the given host. Returns the room, the
// host participant and the host's session token.
func (s *Service) CreateRoom(ctx context.Context, hostName string) (*models.Room, *models.Participant, string, error) {
	roomID := uuid.New()
	host := &models.Participant{
		ID:        uuid.New(),
		RoomID:    roomID,
		Name:      hostName,
		Role:      models.RoleOwner,
		CreatedAt: time.Now().UTC(),
	}

	var room *models.Room
	err := s.store.WithTx(ctx, func(tx *database.Store) error {
		code, err := s.uniqueCode(tx)
		if err != nil {
			return err
		}
		room = &models.Room{
			ID:        roomID,
			Code:      code,
			HostID:    host.ID,
			Active:    true,
			CreatedAt: time.Now().UTC(),
			ExpiresAt: time.Now().UTC().Add(roomLifetime),
		}
		if err := tx.CreateRoom(room); err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
		if err := tx.CreateParticipant(host); err != nil {
			return fmt.Errorf("failed to create host: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, "", err
	}

	token, err := jwt.GenerateToken(host.ID.String())
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to generate session token: %w", err)
	}

	if err := s.cache.Put(ctx, room); err != nil {
		s.log.Warn("failed to cache room", "room", room.Code, "err", err)
	}

	s.log.Info("room created", "room", room.Code, "host", hostName)
	return room, host, token, nil
}

func (s *Service) uniqueCode(tx *database.Store) (string, error) {
	for i := 0; i < codeRetries; i++ {
		code := generateRoomCode()
		_, err := tx.GetRoomByCode(code)
		if errors.Is(err, database.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check room code: %w", err)
		}
	}
	return "", fmt.Errorf("failed to find a free room code")
}

// JoinRoom adds a guest to an open room and announces the join to everyone
// connected. Returns the guest participant and their session token.
func (s *Service) JoinRoom(ctx context.Context, code, guestName string) (*models.Participant, string, error) {
	room, err := s.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, "", err
	}
	if !room.Open(time.Now()) {
		return nil, "", queue.ErrInactive
	}

	guest := &models.Participant{
		ID:        uuid.New(),
		RoomID:    room.ID,
		Name:      guestName,
		Role:      models.RoleMember,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateParticipant(guest); err != nil {
		return nil, "", fmt.Errorf("failed to create participant: %w", err)
	}

	token, err := jwt.GenerateToken(guest.ID.String())
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate session token: %w", err)
	}

	s.coordinator.Broadcast(events.ParticipantJoined(room.Code, guest.ID, guest.Name))
	s.log.Info("participant joined", "room", room.Code, "name", guestName)
	return guest, token, nil
}

// GetRoomByCode reads through the cache.
func (s *Service) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	if room, err := s.cache.Get(ctx, code); err == nil {
		return room, nil
	}

	room, err := s.store.GetRoomByCode(code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, queue.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if err := s.cache.Put(ctx, room); err != nil {
		s.log.Warn("failed to cache room", "room", code, "err", err)
	}
	return room, nil
}

// CloseRoom deactivates the room. Owner only; terminal — every mutation
// afterwards fails with ErrInactive.
func (s *Service) CloseRoom(ctx context.Context, actor *models.Participant) error {
	if actor.Role != models.RoleOwner {
		return queue.ErrForbidden
	}

	room, err := s.store.GetRoomByID(actor.RoomID)
	if errors.Is(err, database.ErrNotFound) {
		return queue.ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}
	if !room.Active {
		return queue.ErrInactive
	}

	room.Active = false
	if err := s.store.UpdateRoom(room); err != nil {
		return fmt.Errorf("failed to close room: %w", err)
	}

	if err := s.cache.Invalidate(ctx, room.Code); err != nil {
		s.log.Warn("failed to invalidate room cache", "room", room.Code, "err", err)
	}
	s.coordinator.ForgetRoom(room.ID)
	s.log.Info("room closed", "room", room.Code)
	return nil
}

type QueueEntryStatus struct {
	ID        uuid.UUID     `json:"id"`
	Track     *models.Track `json:"track"`
	AddedByID uuid.UUID     `json:"added_by_id"`
	Position  int           `json:"position"`
	VoteCount int           `json:"vote_count"`
	CreatedAt time.Time     `json:"created_at"`
}

type Status struct {
	Room         *models.Room          `json:"room"`
	Participants []*models.Participant `json:"participants"`
	Queue        []*QueueEntryStatus   `json:"queue"`
}

// GetStatus snapshots the room, its participants and its unplayed queue in
// position order. Reads run in one transaction so the snapshot is consistent
// with respect to concurrent mutations.
func (s *Service) GetStatus(ctx context.Context, roomID uuid.UUID) (*Status, error) {
	var status Status
	err := s.store.WithTx(ctx, func(tx *database.Store) error {
		room, err := tx.GetRoomByID(roomID)
		if errors.Is(err, database.ErrNotFound) {
			return queue.ErrNotFound
		} else if err != nil {
			return err
		}
		status.Room = room

		status.Participants, err = tx.GetRoomParticipants(roomID)
		if err != nil {
			return err
		}

		entries, err := tx.GetUnplayedEntries(roomID)
		if err != nil {
			return err
		}

		trackIDs := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			trackIDs = append(trackIDs, e.TrackID)
		}
		tracks, err := tx.GetTracksByIDs(trackIDs)
		if err != nil {
			return err
		}

		status.Queue = make([]*QueueEntryStatus, 0, len(entries))
		for _, e := range entries {
			status.Queue = append(status.Queue, &QueueEntryStatus{
				ID:        e.ID,
				Track:     tracks[e.TrackID],
				AddedByID: e.AddedByID,
				Position:  e.Position,
				VoteCount: e.VoteCount,
				CreatedAt: e.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// JoinURL is the address encoded into the room's QR code.
func (s *Service) JoinURL(code string) string {
	return fmt.Sprintf("%s/join/%s", s.baseURL, code)
}
