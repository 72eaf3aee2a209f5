package repositories

import (
	"context"
	"time"

	"example.com/partybot/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ErrDuplicateKey reports a unique-constraint violation. Callers that
// generate their own identifiers retry on it.
var ErrDuplicateKey = errors.New("duplicate key")

// EventRepository provides access to event data
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create persists a new event
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Wrapf(ErrDuplicateKey, "event id %s", event.ID)
	}
	return err
}

// GetByID gets an event by its short id. Returns (nil, nil) when missing.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get event by ID")
	}
	return &event, nil
}

// GetByThreadID gets the event linked to a discussion thread. Returns (nil, nil) when missing.
func (r *EventRepository) GetByThreadID(ctx context.Context, threadID string) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get event by thread ID")
	}
	return &event, nil
}

// ListOpen lists open events in a guild, newest first
func (r *EventRepository) ListOpen(ctx context.Context, guildID string, limit int) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND status = ?", guildID, models.EventStatusOpen).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list open events")
	}
	return events, nil
}

// ListAllOpen returns open events across all guilds, newest first
func (r *EventRepository) ListAllOpen(ctx context.Context, limit int) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("status = ?", models.EventStatusOpen).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list open events")
	}
	return events, nil
}

// UpdatePointers stores the platform-assigned message/thread/voice ids
func (r *EventRepository) UpdatePointers(ctx context.Context, id, messageID, threadID, voiceChannelID string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"message_id":       messageID,
			"thread_id":        threadID,
			"voice_channel_id": voiceChannelID,
		}).Error
	return errors.Wrap(err, "failed to update event pointers")
}

// CloseIfOpen flips status to closed only when still open. The returned
// bool reports whether this call performed the transition, which keeps
// Close idempotent at the state level.
func (r *EventRepository) CloseIfOpen(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ? AND status = ?", id, models.EventStatusOpen).
		Update("status", models.EventStatusClosed)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to close event")
	}
	return result.RowsAffected > 0, nil
}

// ListDueReminders lists open events whose reminder window has started
func (r *EventRepository) ListDueReminders(ctx context.Context, now time.Time) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("status = ? AND reminder_sent = ? AND start_time > ? AND start_time <= ? + make_interval(mins => reminder_offset_min)",
			models.EventStatusOpen, false, now, now).
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due reminders")
	}
	return events, nil
}

// MarkReminded records that the reminder for an event was sent
func (r *EventRepository) MarkReminded(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Update("reminder_sent", true).Error
	return errors.Wrap(err, "failed to mark event reminded")
}

// LaneRepository provides access to lane data
type LaneRepository struct {
	db *gorm.DB
}

// NewLaneRepository creates a new lane repository
func NewLaneRepository(db *gorm.DB) *LaneRepository {
	return &LaneRepository{db: db}
}

// CreateBatch bulk-inserts the lanes for a new event
func (r *LaneRepository) CreateBatch(ctx context.Context, lanes []models.Lane) error {
	if len(lanes) == 0 {
		return nil
	}
	return errors.Wrap(r.db.WithContext(ctx).Create(&lanes).Error, "failed to insert lanes")
}

// ListByEvent lists the lanes of an event in display order
func (r *LaneRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Lane, error) {
	var lanes []models.Lane
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("sort_order ASC").
		Find(&lanes).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list lanes")
	}
	return lanes, nil
}

// GetByKey gets a lane by its stable key within an event. Returns (nil, nil) when missing.
func (r *LaneRepository) GetByKey(ctx context.Context, eventID, laneKey string) (*models.Lane, error) {
	var lane models.Lane
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND lane_key = ?", eventID, laneKey).
		First(&lane).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get lane by key")
	}
	return &lane, nil
}

// GetByID gets a lane by primary key. Returns (nil, nil) when missing.
func (r *LaneRepository) GetByID(ctx context.Context, id uint) (*models.Lane, error) {
	var lane models.Lane
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&lane).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get lane by ID")
	}
	return &lane, nil
}

// SignupRepository provides access to signup data. Capacity-sensitive
// mutations run in a short transaction that locks the destination lane
// row first, so the occupancy predicate is evaluated under mutual
// exclusion per lane; a snapshot COUNT alone would let two concurrent
// admissions both see the last slot free under READ COMMITTED. Callers
// still confirm the outcome with an independent read (write-then-verify).
type SignupRepository struct {
	db *gorm.DB
}

// NewSignupRepository creates a new signup repository
func NewSignupRepository(db *gorm.DB) *SignupRepository {
	return &SignupRepository{db: db}
}

// GetByEventAndUser gets a user's signup within an event. Returns (nil, nil) when missing.
func (r *SignupRepository) GetByEventAndUser(ctx context.Context, eventID, userID string) (*models.Signup, error) {
	var signup models.Signup
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&signup).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get signup")
	}
	return &signup, nil
}

// lockLane takes a FOR UPDATE lock on the lane row for the remainder of
// the transaction. Admissions into the same lane serialize on this lock,
// which is what makes the COUNT-based capacity predicate sound.
func lockLane(tx *gorm.DB, laneID uint) error {
	return tx.Exec(`SELECT id FROM lanes WHERE id = ? FOR UPDATE`, laneID).Error
}

// InsertIfBelowCapacity creates a signup only if the user has none for the
// event and the destination lane still has room. A capacity of zero means
// unlimited. Matching zero rows is not an error: the caller detects a lost
// race by re-reading.
func (r *SignupRepository) InsertIfBelowCapacity(ctx context.Context, eventID string, laneID uint, userID string, gearScore *int, capacity int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockLane(tx, laneID); err != nil {
			return err
		}
		return tx.Exec(`
			INSERT INTO signups (event_id, lane_id, user_id, gear_score, joined_at)
			SELECT ?, ?, ?, ?, ?
			WHERE NOT EXISTS (SELECT 1 FROM signups WHERE event_id = ? AND user_id = ?)
			  AND (? <= 0 OR (SELECT COUNT(*) FROM signups WHERE lane_id = ?) < ?)`,
			eventID, laneID, userID, gearScore, time.Now().UTC(),
			eventID, userID,
			capacity, laneID, capacity,
		).Error
	})
	return errors.Wrap(err, "failed to insert signup")
}

// RelocateIfBelowCapacity moves an existing signup to another lane only if
// the destination still has room. On a lost race the statement matches zero
// rows and the prior signup is left untouched.
func (r *SignupRepository) RelocateIfBelowCapacity(ctx context.Context, eventID string, laneID uint, userID string, gearScore *int, capacity int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockLane(tx, laneID); err != nil {
			return err
		}
		return tx.Exec(`
			UPDATE signups SET lane_id = ?, gear_score = ?, joined_at = ?
			WHERE event_id = ? AND user_id = ? AND lane_id <> ?
			  AND (? <= 0 OR (SELECT COUNT(*) FROM signups WHERE lane_id = ?) < ?)`,
			laneID, gearScore, time.Now().UTC(),
			eventID, userID, laneID,
			capacity, laneID, capacity,
		).Error
	})
	return errors.Wrap(err, "failed to relocate signup")
}

// DeleteByID deletes a signup by its own identity
func (r *SignupRepository) DeleteByID(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Delete(&models.Signup{}, id).Error
	return errors.Wrap(err, "failed to delete signup")
}

// DeleteFromLane removes the given users' signups from one lane. Removing
// an already-absent user is a no-op.
func (r *SignupRepository) DeleteFromLane(ctx context.Context, eventID string, laneID uint, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND lane_id = ? AND user_id IN ?", eventID, laneID, userIDs).
		Delete(&models.Signup{}).Error
	return errors.Wrap(err, "failed to delete signups from lane")
}

// ListByEvent lists an event's signups in join order
func (r *SignupRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Signup, error) {
	var signups []models.Signup
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("joined_at ASC, id ASC").
		Find(&signups).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list signups")
	}
	return signups, nil
}

// PartyLogRepository appends to the audit trail
type PartyLogRepository struct {
	db *gorm.DB
}

// NewPartyLogRepository creates a new party log repository
func NewPartyLogRepository(db *gorm.DB) *PartyLogRepository {
	return &PartyLogRepository{db: db}
}

// Append writes one audit row
func (r *PartyLogRepository) Append(ctx context.Context, entry *models.PartyLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return errors.Wrap(r.db.WithContext(ctx).Create(entry).Error, "failed to append party log")
}
