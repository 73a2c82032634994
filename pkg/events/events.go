package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeTrackAdded        EventType = "track_added"
	EventTypeVoteChanged       EventType = "vote_changed"
	EventTypeTrackChanged      EventType = "track_changed"
	EventTypeTrackRemoved      EventType = "track_removed"
	EventTypeParticipantJoined EventType = "participant_joined"
	EventTypePlaybackStarted   EventType = "playback_started"
	EventTypePlaybackPaused    EventType = "playback_paused"
)

// Event is one room state change fanned out to subscribers. Payload holds
// the variant-specific fields; it is nil for the playback signals.
type Event struct {
	Type      EventType `json:"type"`
	RoomCode  string    `json:"room_code"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

type TrackAddedPayload struct {
	EntryID    uuid.UUID `json:"queue_entry_id"`
	ShouldPlay bool      `json:"should_play"`
}

type VoteChangedPayload struct {
	EntryID uuid.UUID `json:"queue_entry_id"`
}

type TrackChangedPayload struct {
	// NextEntryID is nil when the skip drained the queue.
	NextEntryID *uuid.UUID `json:"next_entry_id"`
}

type TrackRemovedPayload struct {
	EntryID uuid.UUID `json:"queue_entry_id"`
}

type ParticipantJoinedPayload struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Name          string    `json:"name"`
}

func newEvent(roomCode string, typ EventType, payload any) Event {
	return Event{
		Type:      typ,
		RoomCode:  roomCode,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

func TrackAdded(roomCode string, entryID uuid.UUID, shouldPlay bool) Event {
	return newEvent(roomCode, EventTypeTrackAdded, TrackAddedPayload{EntryID: entryID, ShouldPlay: shouldPlay})
}

func VoteChanged(roomCode string, entryID uuid.UUID) Event {
	return newEvent(roomCode, EventTypeVoteChanged, VoteChangedPayload{EntryID: entryID})
}

func TrackChanged(roomCode string, nextEntryID *uuid.UUID) Event {
	return newEvent(roomCode, EventTypeTrackChanged, TrackChangedPayload{NextEntryID: nextEntryID})
}

func TrackRemoved(roomCode string, entryID uuid.UUID) Event {
	return newEvent(roomCode, EventTypeTrackRemoved, TrackRemovedPayload{EntryID: entryID})
}

func ParticipantJoined(roomCode string, participantID uuid.UUID, name string) Event {
	return newEvent(roomCode, EventTypeParticipantJoined, ParticipantJoinedPayload{ParticipantID: participantID, Name: name})
}

func PlaybackStarted(roomCode string) Event {
	return newEvent(roomCode, EventTypePlaybackStarted, nil)
}

func PlaybackPaused(roomCode string) Event {
	return newEvent(roomCode, EventTypePlaybackPaused, nil)
}
