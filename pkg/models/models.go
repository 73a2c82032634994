package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

type Room struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	Code      string    `json:"code" gorm:"unique"`
	HostID    uuid.UUID `json:"host_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Open reports whether the room still accepts mutations.
func (r *Room) Open(now time.Time) bool {
	return r.Active && now.Before(r.ExpiresAt)
}

type Participant struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	RoomID    uuid.UUID `json:"room_id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Track is catalog metadata cached on first use. Rows are immutable once
// written; queue entries across rooms share them.
type Track struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey"`
	SpotifyID     string    `json:"spotify_id" gorm:"unique"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist"`
	DurationMS    int       `json:"duration_ms"`
	AlbumCoverURL string    `json:"album_cover_url"`
	PreviewURL    string    `json:"preview_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// QueueEntry is one track's slot in a room's queue. Position 0 is the
// now-playing slot; waiting entries hold 1..N. VoteCount caches the sum of
// the entry's votes and is updated in the same transaction as the vote rows.
type QueueEntry struct {
	ID        uuid.UUID  `json:"id" gorm:"primaryKey"`
	RoomID    uuid.UUID  `json:"room_id"`
	TrackID   uuid.UUID  `json:"track_id"`
	AddedByID uuid.UUID  `json:"added_by_id"`
	Position  int        `json:"position"`
	VoteCount int        `json:"vote_count"`
	CreatedAt time.Time  `json:"created_at"`
	PlayedAt  *time.Time `json:"played_at"`
}

func (e *QueueEntry) Played() bool {
	return e.PlayedAt != nil
}

func (e *QueueEntry) NowPlaying() bool {
	return e.PlayedAt == nil && e.Position == 0
}

type Vote struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey"`
	QueueEntryID  uuid.UUID `json:"queue_entry_id" gorm:"uniqueIndex:idx_vote_entry_participant"`
	ParticipantID uuid.UUID `json:"participant_id" gorm:"uniqueIndex:idx_vote_entry_participant"`
	Value         int       `json:"value"` // 1 for upvote, -1 for downvote
	CreatedAt     time.Time `json:"created_at"`
}

// TrackMetadata is what the catalog lookup returns for a single track. It is
// not a stored record; see Track for the cached row.
type TrackMetadata struct {
	SpotifyID     string `json:"spotify_id"`
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	DurationMS    int    `json:"duration_ms"`
	AlbumCoverURL string `json:"album_cover_url"`
	PreviewURL    string `json:"preview_url"`
}
