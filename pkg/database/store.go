package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/party-queue-system/pkg/models"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("record not found")

type Store struct {
	*gorm.DB
}

func NewMySQL(host, port, user, password, dbname string) (*Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{DB: db}, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Room{},
		&models.Participant{},
		&models.Track{},
		&models.QueueEntry{},
		&models.Vote{},
	)
}

// WithTx runs fn inside a single transaction. All row changes made through
// the passed Store are committed together or rolled back together.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{DB: tx})
	})
}

func wrapLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Room operations

func (s *Store) CreateRoom(room *models.Room) error {
	return s.Create(room).Error
}

func (s *Store) GetRoomByID(id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := s.First(&room, "id = ?", id).Error; err != nil {
		return nil, wrapLookup(err)
	}
	return &room, nil
}

func (s *Store) GetRoomByCode(code string) (*models.Room, error) {
	var room models.Room
	if err := s.First(&room, "code = ?", code).Error; err != nil {
		return nil, wrapLookup(err)
	}
	return &room, nil
}

func (s *Store) UpdateRoom(room *models.Room) error {
	return s.Save(room).Error
}

// Participant operations

func (s *Store) CreateParticipant(p *models.Participant) error {
	return s.Create(p).Error
}

func (s *Store) GetParticipantByID(id uuid.UUID) (*models.Participant, error) {
	var p models.Participant
	if err := s.First(&p, "id = ?", id).Error; err != nil {
		return nil, wrapLookup(err)
	}
	return &p, nil
}

func (s *Store) GetRoomParticipants(roomID uuid.UUID) ([]*models.Participant, error) {
	var ps []*models.Participant
	if err := s.Where("room_id = ?", roomID).
		Order("created_at ASC").
		Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

// Track operations

func (s *Store) CreateTrack(track *models.Track) error {
	return s.Create(track).Error
}

func (s *Store) GetTrackByID(id uuid.UUID) (*models.Track, error) {
	var track models.Track
	if err := s.First(&track, "id = ?", id).Error; err != nil {
		return nil, wrapLookup(err)
	}
	return &track, nil
}

func (s *Store) GetTrackBySpotifyID(spotifyID string) (*models.Track, error) {
	var track models.Track
	if err := s.First(&track, "spotify_id = ?", spotifyID).Error; err != nil {
		return nil, wrapLookup(err)
	}
	return &track, nil
}

// GetTracksByIDs loads the given tracks keyed by ID.
func (s *Store) GetTracksByIDs(ids []uuid.UUID) (map[uuid.UUID]*models.Track, error) {
	var tracks []*models.Track
	if err := s.Where("id IN ?", ids).Find(&tracks).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Track, len(tracks))
	for _, t := range tracks {
		byID[t.ID] = t
	}
	return byID, nil
}

// Queue operations

func (s *Store) CreateQueueEntry(entry *models.QueueEntry) error {
	return s.Create(entry).Error
}

func (s *Store) GetQueueEntry(id uuid.UUID) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	if err := s.First(&entry, "id = ?", id).Error; err != nil {
		return nil, wrapLookup(err)
	}
	return &entry, nil
}

func (s *Store) UpdateQueueEntry(entry *models.QueueEntry) error {
	return s.Save(entry).Error
}

// DeleteQueueEntry removes the entry together with its votes.
func (s *Store) DeleteQueueEntry(entry *models.QueueEntry) error {
	if err := s.Where("queue_entry_id = ?", entry.ID).Delete(&models.Vote{}).Error; err != nil {
		return err
	}
	return s.Delete(entry).Error
}

// GetNowPlaying returns the unplayed position-0 entry for the room, or
// ErrNotFound when the queue is empty.
func (s *Store) GetNowPlaying(roomID uuid.UUID) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	if err := s.Where("room_id = ? AND played_at IS NULL AND position = 0", roomID).
		First(&entry).Error; err != nil {
		return nil, wrapLookup(err)
	}
	return &entry, nil
}

// GetWaitingEntries returns the room's unplayed entries with position > 0,
// ranked by vote count descending with earlier submissions first on ties.
func (s *Store) GetWaitingEntries(roomID uuid.UUID) ([]*models.QueueEntry, error) {
	var entries []*models.QueueEntry
	if err := s.Where("room_id = ? AND played_at IS NULL AND position > 0", roomID).
		Order("vote_count DESC, created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// GetUnplayedEntries returns every unplayed entry for the room ordered by
// position, now-playing first.
func (s *Store) GetUnplayedEntries(roomID uuid.UUID) ([]*models.QueueEntry, error) {
	var entries []*models.QueueEntry
	if err := s.Where("room_id = ? AND played_at IS NULL", roomID).
		Order("position ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CountUnplayedEntries(roomID uuid.UUID) (int, error) {
	var n int64
	if err := s.Model(&models.QueueEntry{}).
		Where("room_id = ? AND played_at IS NULL", roomID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// GetUnplayedEntryForTrack finds an unplayed entry referencing the track, so
// callers can reject duplicate submissions.
func (s *Store) GetUnplayedEntryForTrack(roomID, trackID uuid.UUID) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	if err := s.Where("room_id = ? AND track_id = ? AND played_at IS NULL", roomID, trackID).
		First(&entry).Error; err != nil {
		return nil, wrapLookup(err)
	}
	return &entry, nil
}

// Vote operations

func (s *Store) CreateVote(vote *models.Vote) error {
	return s.Create(vote).Error
}

func (s *Store) GetVote(entryID, participantID uuid.UUID) (*models.Vote, error) {
	var vote models.Vote
	if err := s.Where("queue_entry_id = ? AND participant_id = ?", entryID, participantID).
		First(&vote).Error; err != nil {
		return nil, wrapLookup(err)
	}
	return &vote, nil
}

func (s *Store) UpdateVote(vote *models.Vote) error {
	return s.Save(vote).Error
}

func (s *Store) DeleteVote(vote *models.Vote) error {
	return s.Delete(vote).Error
}

// SumVotes recomputes an entry's tally from its vote rows. Used to verify
// the denormalized QueueEntry.VoteCount.
func (s *Store) SumVotes(entryID uuid.UUID) (int, error) {
	var sum struct {
		Total int
	}
	if err := s.Model(&models.Vote{}).
		Select("COALESCE(SUM(value), 0) as total").
		Where("queue_entry_id = ?", entryID).
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	return sum.Total, nil
}
