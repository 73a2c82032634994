package queue

import "errors"

var (
	// ErrNotFound covers missing rooms, entries and catalog tracks.
	ErrNotFound = errors.New("not found")
	// ErrForbidden covers role and room-membership mismatches.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict means the track already has an unplayed entry in the room.
	ErrConflict = errors.New("track already queued")
	// ErrInvalidVote means the entry is not eligible for the vote or removal:
	// it is played, or it is the now-playing entry.
	ErrInvalidVote = errors.New("entry not eligible")
	// ErrInactive means the room was closed or has expired.
	ErrInactive = errors.New("room is no longer active")
	// ErrStoreFailure means the transaction failed to commit. The mutation
	// was not applied; callers may retry.
	ErrStoreFailure = errors.New("store commit failed")
)
