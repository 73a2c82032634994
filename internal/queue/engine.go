// Package queue implements the ranking engine behind each room's queue:
// vote tallying, position assignment and play-state transitions. All engine
// methods run inside a store transaction owned by the Coordinator, which
// also serializes mutations per room.
package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/party-queue-system/pkg/database"
	"github.com/party-queue-system/pkg/models"
)

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// AddTrack appends a queue entry for the track. The new entry lands at the
// tail of the unplayed set; in an empty queue that is position 0, which means
// it should start playing immediately. Returns the entry and whether playback
// should (re)start.
func (e *Engine) AddTrack(tx *database.Store, room *models.Room, participant *models.Participant, track *models.Track) (*models.QueueEntry, bool, error) {
	if !room.Open(time.Now()) {
		return nil, false, ErrInactive
	}
	if participant.RoomID != room.ID {
		return nil, false, ErrForbidden
	}

	if _, err := tx.GetUnplayedEntryForTrack(room.ID, track.ID); err == nil {
		return nil, false, ErrConflict
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to check for duplicate entry: %w", err)
	}

	count, err := tx.CountUnplayedEntries(room.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to count queue: %w", err)
	}

	entry := &models.QueueEntry{
		ID:        uuid.New(),
		RoomID:    room.ID,
		TrackID:   track.ID,
		AddedByID: participant.ID,
		Position:  count,
		VoteCount: 0,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.CreateQueueEntry(entry); err != nil {
		return nil, false, fmt.Errorf("failed to create queue entry: %w", err)
	}

	return entry, entry.Position == 0, nil
}

// CastVote applies toggle voting to a waiting entry and returns the new
// tally. Casting the same value twice cancels the vote; casting the opposite
// value flips it. The tally cache moves in the same transaction as the vote
// row, and waiting positions are recomputed before returning.
func (e *Engine) CastVote(tx *database.Store, room *models.Room, participant *models.Participant, entry *models.QueueEntry, value int) (int, error) {
	if !room.Open(time.Now()) {
		return 0, ErrInactive
	}
	if value != 1 && value != -1 {
		return 0, ErrInvalidVote
	}
	if participant.RoomID != entry.RoomID {
		return 0, ErrForbidden
	}
	if entry.Played() || entry.NowPlaying() {
		return 0, ErrInvalidVote
	}

	existing, err := tx.GetVote(entry.ID, participant.ID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		vote := &models.Vote{
			ID:            uuid.New(),
			QueueEntryID:  entry.ID,
			ParticipantID: participant.ID,
			Value:         value,
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.CreateVote(vote); err != nil {
			return 0, fmt.Errorf("failed to create vote: %w", err)
		}
		entry.VoteCount += value
	case err != nil:
		return 0, fmt.Errorf("failed to look up vote: %w", err)
	case existing.Value == value:
		// Repeating the same vote cancels it.
		if err := tx.DeleteVote(existing); err != nil {
			return 0, fmt.Errorf("failed to delete vote: %w", err)
		}
		entry.VoteCount -= value
	default:
		existing.Value = value
		if err := tx.UpdateVote(existing); err != nil {
			return 0, fmt.Errorf("failed to update vote: %w", err)
		}
		entry.VoteCount += 2 * value
	}

	if err := tx.UpdateQueueEntry(entry); err != nil {
		return 0, fmt.Errorf("failed to update tally: %w", err)
	}

	if err := e.Reorder(tx, entry.RoomID); err != nil {
		return 0, err
	}

	return entry.VoteCount, nil
}

// Reorder re-ranks the waiting entries by tally descending, earlier
// submissions first on ties, and assigns positions 1..N. The now-playing
// entry keeps position 0. Running it twice with no intervening mutation
// assigns the same positions.
func (e *Engine) Reorder(tx *database.Store, roomID uuid.UUID) error {
	waiting, err := tx.GetWaitingEntries(roomID)
	if err != nil {
		return fmt.Errorf("failed to load waiting entries: %w", err)
	}

	for i, entry := range waiting {
		pos := i + 1
		if entry.Position == pos {
			continue
		}
		entry.Position = pos
		if err := tx.UpdateQueueEntry(entry); err != nil {
			return fmt.Errorf("failed to reassign position: %w", err)
		}
	}
	return nil
}

// Skip marks the now-playing entry played and promotes the top-ranked
// waiting entry to position 0, shifting the rest to 1..N-1. Returns the new
// now-playing entry, or nil when the queue is drained.
func (e *Engine) Skip(tx *database.Store, room *models.Room) (*models.QueueEntry, error) {
	if !room.Open(time.Now()) {
		return nil, ErrInactive
	}

	current, err := tx.GetNowPlaying(room.ID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to load now playing: %w", err)
	}

	now := time.Now().UTC()
	current.PlayedAt = &now
	if err := tx.UpdateQueueEntry(current); err != nil {
		return nil, fmt.Errorf("failed to mark played: %w", err)
	}

	waiting, err := tx.GetWaitingEntries(room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load waiting entries: %w", err)
	}

	for i, entry := range waiting {
		if entry.Position == i {
			continue
		}
		entry.Position = i
		if err := tx.UpdateQueueEntry(entry); err != nil {
			return nil, fmt.Errorf("failed to reassign position: %w", err)
		}
	}

	if len(waiting) == 0 {
		return nil, nil
	}
	return waiting[0], nil
}

// RemoveEntry deletes a waiting entry and its votes. Only the room owner may
// remove entries; the now-playing entry and played entries are not removable.
func (e *Engine) RemoveEntry(tx *database.Store, room *models.Room, actor *models.Participant, entry *models.QueueEntry) error {
	if !room.Open(time.Now()) {
		return ErrInactive
	}
	if actor.RoomID != entry.RoomID {
		return ErrForbidden
	}
	if actor.Role != models.RoleOwner {
		return ErrForbidden
	}
	if entry.Played() || entry.NowPlaying() {
		return ErrInvalidVote
	}

	if err := tx.DeleteQueueEntry(entry); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	return e.Reorder(tx, entry.RoomID)
}
