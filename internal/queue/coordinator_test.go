package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/party-queue-system/internal/hub"
	"github.com/party-queue-system/pkg/database"
	"github.com/party-queue-system/pkg/events"
	"github.com/party-queue-system/pkg/models"
)

type fakeCatalog struct {
	tracks map[string]*models.TrackMetadata
}

func (f *fakeCatalog) GetTrack(ctx context.Context, spotifyID string) (*models.TrackMetadata, error) {
	return f.tracks[spotifyID], nil
}

func newTestCoordinator(t *testing.T, s *database.Store) (*Coordinator, *hub.Hub, *fakeCatalog) {
	t.Helper()

	logger := log.New(io.Discard)
	h := hub.New(logger)
	catalog := &fakeCatalog{tracks: map[string]*models.TrackMetadata{
		"track-1": {SpotifyID: "track-1", Title: "First", Artist: "Artist"},
		"track-2": {SpotifyID: "track-2", Title: "Second", Artist: "Artist"},
	}}
	return NewCoordinator(s, h, catalog, nil, logger), h, catalog
}

func nextEvent(t *testing.T, ch chan events.Event) events.Event {
	t.Helper()

	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
		return events.Event{}
	}
}

func assertNoEvent(t *testing.T, ch chan events.Event) {
	t.Helper()

	select {
	case event := <-ch:
		t.Fatalf("Unexpected event %s", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCoordinatorAddTrack(t *testing.T) {
	s := newTestStore(t)
	room, host := newTestRoom(t, s)
	coordinator, h, _ := newTestCoordinator(t, s)

	ch := h.Subscribe(room.Code)
	defer h.Unsubscribe(room.Code, ch)

	entry, err := coordinator.AddTrack(context.Background(), host, "track-1")
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	event := nextEvent(t, ch)
	if event.Type != events.EventTypeTrackAdded {
		t.Fatalf("Event type = %s, want %s", event.Type, events.EventTypeTrackAdded)
	}
	payload := event.Payload.(events.TrackAddedPayload)
	if payload.EntryID != entry.ID {
		t.Errorf("Event entry = %s, want %s", payload.EntryID, entry.ID)
	}
	if !payload.ShouldPlay {
		t.Error("First track should signal playback start")
	}

	// Second add queues behind and does not restart playback.
	if _, err := coordinator.AddTrack(context.Background(), host, "track-2"); err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}
	payload = nextEvent(t, ch).Payload.(events.TrackAddedPayload)
	if payload.ShouldPlay {
		t.Error("Second track should not signal playback start")
	}
}

func TestCoordinatorAddTrackNotInCatalog(t *testing.T) {
	s := newTestStore(t)
	room, host := newTestRoom(t, s)
	coordinator, h, _ := newTestCoordinator(t, s)

	ch := h.Subscribe(room.Code)
	defer h.Unsubscribe(room.Code, ch)

	if _, err := coordinator.AddTrack(context.Background(), host, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddTrack for unknown track: got %v, want ErrNotFound", err)
	}
	assertNoEvent(t, ch)
}

func TestCoordinatorCachesTrack(t *testing.T) {
	s := newTestStore(t)
	_, host := newTestRoom(t, s)
	coordinator, _, catalog := newTestCoordinator(t, s)

	if _, err := coordinator.AddTrack(context.Background(), host, "track-1"); err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	// A second room resolves the same track without hitting the catalog.
	_, host2 := newTestRoom(t, s)
	delete(catalog.tracks, "track-1")
	if _, err := coordinator.AddTrack(context.Background(), host2, "track-1"); err != nil {
		t.Fatalf("AddTrack from cache failed: %v", err)
	}
}

func TestCoordinatorCastVote(t *testing.T) {
	s := newTestStore(t)
	room, host := newTestRoom(t, s)
	voter := newMember(t, s, room, "Bob")
	coordinator, h, _ := newTestCoordinator(t, s)

	if _, err := coordinator.AddTrack(context.Background(), host, "track-1"); err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}
	entry, err := coordinator.AddTrack(context.Background(), host, "track-2")
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	ch := h.Subscribe(room.Code)
	defer h.Unsubscribe(room.Code, ch)

	tally, err := coordinator.CastVote(context.Background(), voter, entry.ID, 1)
	if err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	if tally != 1 {
		t.Errorf("Tally = %d, want 1", tally)
	}

	event := nextEvent(t, ch)
	if event.Type != events.EventTypeVoteChanged {
		t.Fatalf("Event type = %s, want %s", event.Type, events.EventTypeVoteChanged)
	}
	if got := event.Payload.(events.VoteChangedPayload).EntryID; got != entry.ID {
		t.Errorf("Event entry = %s, want %s", got, entry.ID)
	}
}

func TestCoordinatorSkip(t *testing.T) {
	s := newTestStore(t)
	room, host := newTestRoom(t, s)
	coordinator, h, _ := newTestCoordinator(t, s)

	if _, err := coordinator.AddTrack(context.Background(), host, "track-1"); err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}
	second, err := coordinator.AddTrack(context.Background(), host, "track-2")
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	ch := h.Subscribe(room.Code)
	defer h.Unsubscribe(room.Code, ch)

	next, err := coordinator.Skip(context.Background(), host)
	if err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("Skip promoted %v, want %s", next, second.ID)
	}

	event := nextEvent(t, ch)
	if event.Type != events.EventTypeTrackChanged {
		t.Fatalf("Event type = %s, want %s", event.Type, events.EventTypeTrackChanged)
	}
	payload := event.Payload.(events.TrackChangedPayload)
	if payload.NextEntryID == nil || *payload.NextEntryID != second.ID {
		t.Errorf("Event next entry = %v, want %s", payload.NextEntryID, second.ID)
	}

	// Draining the queue reports a nil next entry.
	if _, err := coordinator.Skip(context.Background(), host); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	payload = nextEvent(t, ch).Payload.(events.TrackChangedPayload)
	if payload.NextEntryID != nil {
		t.Errorf("Event next entry = %v, want nil", payload.NextEntryID)
	}
}

func TestCoordinatorRemoveEntry(t *testing.T) {
	s := newTestStore(t)
	room, host := newTestRoom(t, s)
	coordinator, h, _ := newTestCoordinator(t, s)

	if _, err := coordinator.AddTrack(context.Background(), host, "track-1"); err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}
	entry, err := coordinator.AddTrack(context.Background(), host, "track-2")
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	ch := h.Subscribe(room.Code)
	defer h.Unsubscribe(room.Code, ch)

	if err := coordinator.RemoveEntry(context.Background(), host, entry.ID); err != nil {
		t.Fatalf("RemoveEntry failed: %v", err)
	}

	event := nextEvent(t, ch)
	if event.Type != events.EventTypeTrackRemoved {
		t.Fatalf("Event type = %s, want %s", event.Type, events.EventTypeTrackRemoved)
	}
}

func TestCoordinatorNoEventOnRejectedMutation(t *testing.T) {
	s := newTestStore(t)
	room, host := newTestRoom(t, s)
	voter := newMember(t, s, room, "Bob")
	coordinator, h, _ := newTestCoordinator(t, s)

	// The only entry is now playing, so the vote must be rejected.
	entry, err := coordinator.AddTrack(context.Background(), host, "track-1")
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	ch := h.Subscribe(room.Code)
	defer h.Unsubscribe(room.Code, ch)

	if _, err := coordinator.CastVote(context.Background(), voter, entry.ID, 1); !errors.Is(err, ErrInvalidVote) {
		t.Fatalf("CastVote: got %v, want ErrInvalidVote", err)
	}
	assertNoEvent(t, ch)
}

func TestCoordinatorPlaybackSignals(t *testing.T) {
	s := newTestStore(t)
	room, host := newTestRoom(t, s)
	member := newMember(t, s, room, "Bob")
	coordinator, h, _ := newTestCoordinator(t, s)

	ch := h.Subscribe(room.Code)
	defer h.Unsubscribe(room.Code, ch)

	if err := coordinator.Play(context.Background(), member); !errors.Is(err, ErrForbidden) {
		t.Errorf("Play by member: got %v, want ErrForbidden", err)
	}
	assertNoEvent(t, ch)

	if err := coordinator.Play(context.Background(), host); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if got := nextEvent(t, ch).Type; got != events.EventTypePlaybackStarted {
		t.Errorf("Event type = %s, want %s", got, events.EventTypePlaybackStarted)
	}

	if err := coordinator.Pause(context.Background(), host); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if got := nextEvent(t, ch).Type; got != events.EventTypePlaybackPaused {
		t.Errorf("Event type = %s, want %s", got, events.EventTypePlaybackPaused)
	}
}

func TestCoordinatorConcurrentVotes(t *testing.T) {
	s := newTestStore(t)
	room, host := newTestRoom(t, s)
	coordinator, _, _ := newTestCoordinator(t, s)

	if _, err := coordinator.AddTrack(context.Background(), host, "track-1"); err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}
	entry, err := coordinator.AddTrack(context.Background(), host, "track-2")
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	const voters = 8
	participants := make([]*models.Participant, voters)
	for i := range participants {
		participants[i] = newMember(t, s, room, uuid.NewString()[:8])
	}

	var wg sync.WaitGroup
	for _, p := range participants {
		wg.Add(1)
		go func(p *models.Participant) {
			defer wg.Done()
			if _, err := coordinator.CastVote(context.Background(), p, entry.ID, 1); err != nil {
				t.Errorf("CastVote failed: %v", err)
			}
		}(p)
	}
	wg.Wait()

	final := reloadEntry(t, s, entry.ID)
	if final.VoteCount != voters {
		t.Errorf("Tally after %d concurrent upvotes = %d", voters, final.VoteCount)
	}
	checkInvariants(t, s, room.ID)
}

func TestCoordinatorStoreFailure(t *testing.T) {
	s := newTestStore(t)
	room, host := newTestRoom(t, s)
	coordinator, h, _ := newTestCoordinator(t, s)

	entry, err := coordinator.AddTrack(context.Background(), host, "track-1")
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	ch := h.Subscribe(room.Code)
	defer h.Unsubscribe(room.Code, ch)

	// Pull the database out from under the coordinator.
	sqlDB, err := s.DB.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.Close()

	if _, err := coordinator.CastVote(context.Background(), host, entry.ID, 1); !errors.Is(err, ErrStoreFailure) {
		t.Errorf("CastVote on closed store: got %v, want ErrStoreFailure", err)
	}
	assertNoEvent(t, ch)
}
