package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/party-queue-system/internal/hub"
	"github.com/party-queue-system/pkg/database"
	"github.com/party-queue-system/pkg/events"
	"github.com/party-queue-system/pkg/models"
)

// Catalog resolves a track identifier against the external music catalog.
// Implementations return (nil, nil) when the catalog has no such track.
type Catalog interface {
	GetTrack(ctx context.Context, spotifyID string) (*models.TrackMetadata, error)
}

// Coordinator serializes each room's queue mutations, runs them through the
// ranking engine inside one store transaction, and publishes the resulting
// event only after the transaction commits. Operations on distinct rooms do
// not block each other.
type Coordinator struct {
	store   *database.Store
	engine  *Engine
	hub     *hub.Hub
	catalog Catalog
	kafka   *events.KafkaClient // optional event mirror, may be nil
	log     *log.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewCoordinator(store *database.Store, h *hub.Hub, catalog Catalog, kafka *events.KafkaClient, logger *log.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		engine:  NewEngine(),
		hub:     h,
		catalog: catalog,
		kafka:   kafka,
		log:     logger.With("component", "coordinator"),
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (c *Coordinator) roomLock(roomID uuid.UUID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[roomID] = l
	}
	return l
}

// ForgetRoom drops the room's lock entry. Called when a room closes so the
// lock map does not grow with every room the process has ever served.
func (c *Coordinator) ForgetRoom(roomID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, roomID)
}

// storeErr passes engine errors through and folds everything else into
// ErrStoreFailure, which callers may treat as retryable.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrForbidden, ErrConflict, ErrInvalidVote, ErrInactive} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreFailure, err)
}

// publish fans the event out to the room's live subscribers and, when a
// Kafka mirror is configured, writes it there on a best-effort basis. Mirror
// failures are logged, never surfaced to the mutation's caller.
func (c *Coordinator) publish(event events.Event) {
	c.hub.Publish(event.RoomCode, event)
	if c.kafka == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.kafka.PublishEvent(ctx, event); err != nil {
			c.log.Warn("failed to mirror event", "room", event.RoomCode, "type", event.Type, "err", err)
		}
	}()
}

// Broadcast publishes a non-queue event (participant joins and similar) with
// the same fan-out path the queue mutations use.
func (c *Coordinator) Broadcast(event events.Event) {
	c.publish(event)
}

// AddTrack resolves the track and appends it to the participant's room
// queue. The catalog lookup happens before the room lock is taken so a slow
// catalog response cannot serialize unrelated work on the room.
func (c *Coordinator) AddTrack(ctx context.Context, participant *models.Participant, spotifyID string) (*models.QueueEntry, error) {
	room, err := c.store.GetRoomByID(participant.RoomID)
	if err != nil {
		return nil, lookupErr(err)
	}

	// Resolve metadata outside the lock; the row itself is written inside
	// the transaction so concurrent adds of the same track stay consistent.
	var meta *models.TrackMetadata
	if _, err := c.store.GetTrackBySpotifyID(spotifyID); errors.Is(err, database.ErrNotFound) {
		meta, err = c.catalog.GetTrack(ctx, spotifyID)
		if err != nil {
			return nil, fmt.Errorf("catalog lookup failed: %w", err)
		}
		if meta == nil {
			return nil, fmt.Errorf("track %s: %w", spotifyID, ErrNotFound)
		}
	} else if err != nil {
		return nil, storeErr(err)
	}

	lock := c.roomLock(room.ID)
	lock.Lock()

	var (
		entry      *models.QueueEntry
		shouldPlay bool
	)
	err = c.store.WithTx(ctx, func(tx *database.Store) error {
		room, err := tx.GetRoomByID(room.ID)
		if err != nil {
			return lookupErr(err)
		}
		track, err := getOrCreateTrack(tx, spotifyID, meta)
		if err != nil {
			return err
		}
		entry, shouldPlay, err = c.engine.AddTrack(tx, room, participant, track)
		return err
	})
	lock.Unlock()

	if err != nil {
		return nil, storeErr(err)
	}

	c.log.Info("track queued", "room", room.Code, "entry", entry.ID, "position", entry.Position)
	c.publish(events.TrackAdded(room.Code, entry.ID, shouldPlay))
	return entry, nil
}

func getOrCreateTrack(tx *database.Store, spotifyID string, meta *models.TrackMetadata) (*models.Track, error) {
	track, err := tx.GetTrackBySpotifyID(spotifyID)
	if err == nil {
		return track, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if meta == nil {
		// Cached row vanished between the pre-lock check and now.
		return nil, ErrNotFound
	}
	track = &models.Track{
		ID:            uuid.New(),
		SpotifyID:     meta.SpotifyID,
		Title:         meta.Title,
		Artist:        meta.Artist,
		DurationMS:    meta.DurationMS,
		AlbumCoverURL: meta.AlbumCoverURL,
		PreviewURL:    meta.PreviewURL,
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.CreateTrack(track); err != nil {
		return nil, fmt.Errorf("failed to cache track: %w", err)
	}
	return track, nil
}

// CastVote applies the participant's vote to the entry and returns the new
// tally.
func (c *Coordinator) CastVote(ctx context.Context, participant *models.Participant, entryID uuid.UUID, value int) (int, error) {
	target, err := c.store.GetQueueEntry(entryID)
	if err != nil {
		return 0, lookupErr(err)
	}
	room, err := c.store.GetRoomByID(target.RoomID)
	if err != nil {
		return 0, lookupErr(err)
	}

	lock := c.roomLock(room.ID)
	lock.Lock()

	var tally int
	err = c.store.WithTx(ctx, func(tx *database.Store) error {
		room, err := tx.GetRoomByID(room.ID)
		if err != nil {
			return lookupErr(err)
		}
		entry, err := tx.GetQueueEntry(entryID)
		if err != nil {
			return lookupErr(err)
		}
		tally, err = c.engine.CastVote(tx, room, participant, entry, value)
		return err
	})
	lock.Unlock()

	if err != nil {
		return 0, storeErr(err)
	}

	c.publish(events.VoteChanged(room.Code, entryID))
	return tally, nil
}

// Skip marks the now-playing entry played and promotes the top-ranked
// waiting entry. Returns the new now-playing entry, or nil when the queue
// is empty.
func (c *Coordinator) Skip(ctx context.Context, participant *models.Participant) (*models.QueueEntry, error) {
	room, err := c.store.GetRoomByID(participant.RoomID)
	if err != nil {
		return nil, lookupErr(err)
	}

	lock := c.roomLock(room.ID)
	lock.Lock()

	var next *models.QueueEntry
	err = c.store.WithTx(ctx, func(tx *database.Store) error {
		room, err := tx.GetRoomByID(room.ID)
		if err != nil {
			return lookupErr(err)
		}
		next, err = c.engine.Skip(tx, room)
		return err
	})
	lock.Unlock()

	if err != nil {
		return nil, storeErr(err)
	}

	var nextID *uuid.UUID
	if next != nil {
		nextID = &next.ID
	}
	c.log.Info("track skipped", "room", room.Code, "next", nextID)
	c.publish(events.TrackChanged(room.Code, nextID))
	return next, nil
}

// RemoveEntry deletes a waiting entry on behalf of the room owner.
func (c *Coordinator) RemoveEntry(ctx context.Context, actor *models.Participant, entryID uuid.UUID) error {
	target, err := c.store.GetQueueEntry(entryID)
	if err != nil {
		return lookupErr(err)
	}
	room, err := c.store.GetRoomByID(target.RoomID)
	if err != nil {
		return lookupErr(err)
	}

	lock := c.roomLock(room.ID)
	lock.Lock()

	err = c.store.WithTx(ctx, func(tx *database.Store) error {
		room, err := tx.GetRoomByID(room.ID)
		if err != nil {
			return lookupErr(err)
		}
		entry, err := tx.GetQueueEntry(entryID)
		if err != nil {
			return lookupErr(err)
		}
		return c.engine.RemoveEntry(tx, room, actor, entry)
	})
	lock.Unlock()

	if err != nil {
		return storeErr(err)
	}

	c.publish(events.TrackRemoved(room.Code, entryID))
	return nil
}

// Play broadcasts a playback-resume signal. Owner only.
func (c *Coordinator) Play(ctx context.Context, actor *models.Participant) error {
	room, err := c.playbackRoom(actor)
	if err != nil {
		return err
	}
	c.publish(events.PlaybackStarted(room.Code))
	return nil
}

// Pause broadcasts a playback-pause signal. Owner only.
func (c *Coordinator) Pause(ctx context.Context, actor *models.Participant) error {
	room, err := c.playbackRoom(actor)
	if err != nil {
		return err
	}
	c.publish(events.PlaybackPaused(room.Code))
	return nil
}

func (c *Coordinator) playbackRoom(actor *models.Participant) (*models.Room, error) {
	if actor.Role != models.RoleOwner {
		return nil, ErrForbidden
	}
	room, err := c.store.GetRoomByID(actor.RoomID)
	if err != nil {
		return nil, lookupErr(err)
	}
	if !room.Open(time.Now()) {
		return nil, ErrInactive
	}
	return room, nil
}

func lookupErr(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	return storeErr(err)
}
