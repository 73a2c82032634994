package queue

import (
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/party-queue-system/pkg/database"
	"github.com/party-queue-system/pkg/models"
)

func newTestStore(t *testing.T) *database.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	// A single connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return &database.Store{DB: db}
}

func newTestRoom(t *testing.T, s *database.Store) (*models.Room, *models.Participant) {
	t.Helper()

	host := &models.Participant{
		ID:        uuid.New(),
		Name:      "Host",
		Role:      models.RoleOwner,
		CreatedAt: time.Now().UTC(),
	}
	room := &models.Room{
		ID:        uuid.New(),
		Code:      "R-" + uuid.NewString()[:8],
		HostID:    host.ID,
		Active:    true,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
	host.RoomID = room.ID

	if err := s.CreateRoom(room); err != nil {
		t.Fatalf("Failed to create test room: %v", err)
	}
	if err := s.CreateParticipant(host); err != nil {
		t.Fatalf("Failed to create host: %v", err)
	}
	return room, host
}

func newMember(t *testing.T, s *database.Store, room *models.Room, name string) *models.Participant {
	t.Helper()

	p := &models.Participant{
		ID:        uuid.New(),
		RoomID:    room.ID,
		Name:      name,
		Role:      models.RoleMember,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateParticipant(p); err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}
	return p
}

func newTrack(t *testing.T, s *database.Store, spotifyID string) *models.Track {
	t.Helper()

	track := &models.Track{
		ID:        uuid.New(),
		SpotifyID: spotifyID,
		Title:     "Track " + spotifyID,
		Artist:    "Artist",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateTrack(track); err != nil {
		t.Fatalf("Failed to create track: %v", err)
	}
	return track
}

// addEntry queues a fresh track and pins its creation time so ordering
// assertions are deterministic.
func addEntry(t *testing.T, s *database.Store, e *Engine, room *models.Room, p *models.Participant, spotifyID string, createdAt time.Time) *models.QueueEntry {
	t.Helper()

	track := newTrack(t, s, spotifyID)
	entry, _, err := e.AddTrack(s, room, p, track)
	if err != nil {
		t.Fatalf("AddTrack(%s) failed: %v", spotifyID, err)
	}
	entry.CreatedAt = createdAt
	if err := s.UpdateQueueEntry(entry); err != nil {
		t.Fatalf("Failed to pin creation time: %v", err)
	}
	return entry
}

func reloadEntry(t *testing.T, s *database.Store, id uuid.UUID) *models.QueueEntry {
	t.Helper()

	entry, err := s.GetQueueEntry(id)
	if err != nil {
		t.Fatalf("Failed to reload entry: %v", err)
	}
	return entry
}

// checkInvariants asserts the structural queue invariants: at most one
// unplayed entry at position 0, waiting positions exactly 1..N with no gaps
// or duplicates, and every tally equal to the sum of its vote rows.
func checkInvariants(t *testing.T, s *database.Store, roomID uuid.UUID) {
	t.Helper()

	entries, err := s.GetUnplayedEntries(roomID)
	if err != nil {
		t.Fatalf("Failed to load unplayed entries: %v", err)
	}

	var zero int
	var waiting []int
	for _, entry := range entries {
		if entry.Position == 0 {
			zero++
		} else {
			waiting = append(waiting, entry.Position)
		}

		sum, err := s.SumVotes(entry.ID)
		if err != nil {
			t.Fatalf("Failed to sum votes: %v", err)
		}
		if sum != entry.VoteCount {
			t.Errorf("Entry %s tally = %d, vote rows sum to %d", entry.ID, entry.VoteCount, sum)
		}
	}

	if zero > 1 {
		t.Errorf("Expected at most one now-playing entry, got %d", zero)
	}

	sort.Ints(waiting)
	for i, pos := range waiting {
		if pos != i+1 {
			t.Errorf("Waiting positions %v are not contiguous 1..N", waiting)
			break
		}
	}
}

func positionsByID(t *testing.T, s *database.Store, roomID uuid.UUID) map[uuid.UUID]int {
	t.Helper()

	entries, err := s.GetUnplayedEntries(roomID)
	if err != nil {
		t.Fatalf("Failed to load unplayed entries: %v", err)
	}
	byID := make(map[uuid.UUID]int, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry.Position
	}
	return byID
}
