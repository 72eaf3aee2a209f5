package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Event status values. Transitions are one-way: open -> closed.
// "cancelled" exists only as a rendered label and is never persisted.
const (
	EventStatusOpen   = "open"
	EventStatusClosed = "closed"
)

// PartyLog action values
const (
	ActionJoin   = "join"
	ActionLeave  = "leave"
	ActionRemove = "remove"
	ActionSwitch = "switch"
)

// Event represents one scheduled party
type Event struct {
	ID                string    `gorm:"primaryKey;size:16" json:"id"`
	GuildID           string    `gorm:"not null;index" json:"guild_id"`
	ChannelID         string    `gorm:"not null" json:"channel_id"`
	MessageID         string    `gorm:"not null;default:''" json:"message_id"`
	ThreadID          string    `gorm:"not null;default:'';index" json:"thread_id"`
	VoiceChannelID    string    `gorm:"not null;default:''" json:"voice_channel_id"`
	TemplateID        string    `gorm:"not null" json:"template_id"`
	Title             string    `gorm:"not null" json:"title"`
	Description       string    `json:"description"`
	ImageURL          string    `json:"image_url"`
	StartTime         time.Time `gorm:"not null" json:"start_time"`
	ReminderOffsetMin int       `gorm:"not null;default:10" json:"reminder_offset_min"`
	ReminderSent      bool      `gorm:"not null;default:false" json:"reminder_sent"`
	Status            string    `gorm:"not null;default:'open';index" json:"status"`
	CreatorID         string    `gorm:"not null" json:"creator_id"`
	MinGearScore      *int      `json:"min_gear_score"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Lanes             []Lane    `gorm:"foreignKey:EventID" json:"-"`
}

// IsOpen reports whether the event still accepts signups
func (e *Event) IsOpen() bool {
	return e.Status == EventStatusOpen
}

// Lane represents one role slot group within an event. The lane set is
// copied from the template at event creation and never altered afterward.
type Lane struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	EventID   string `gorm:"not null;index" json:"event_id"`
	LaneKey   string `gorm:"not null" json:"lane_key"`
	Name      string `gorm:"not null" json:"name"`
	Emoji     string `json:"emoji"`
	Capacity  int    `gorm:"not null;default:0" json:"capacity"`
	SortOrder int    `gorm:"not null;default:0" json:"sort_order"`
}

// Unlimited reports whether the lane has no capacity bound
func (l *Lane) Unlimited() bool {
	return l.Capacity <= 0
}

// Signup represents a user's current lane assignment within an event.
// The unique index enforces at most one signup row per (event, user).
type Signup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"not null;uniqueIndex:idx_signups_event_user" json:"event_id"`
	LaneID    uint      `gorm:"not null;index" json:"lane_id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_signups_event_user" json:"user_id"`
	GearScore *int      `json:"gear_score"`
	JoinedAt  time.Time `gorm:"not null" json:"joined_at"`
}

// PartyLog is the append-only audit trail of signup-affecting actions.
// Writes are best-effort and must never block the user-facing operation.
type PartyLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GuildID    string    `gorm:"not null" json:"guild_id"`
	EventID    string    `gorm:"not null;index" json:"event_id"`
	Action     string    `gorm:"not null" json:"action"`
	ActorName  string    `gorm:"not null" json:"actor_name"`
	MemberName string    `gorm:"not null" json:"member_name"`
	Reason     *string   `json:"reason"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Class represents a playable class and the party role it fills
type Class struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	SubClass string `gorm:"not null" json:"sub_class"`
	Role     string `gorm:"not null;index" json:"role"`
}

// Character is a user's roster entry in a guild
type Character struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_characters_user_guild_class" json:"user_id"`
	GuildID   string    `gorm:"not null;uniqueIndex:idx_characters_user_guild_class" json:"guild_id"`
	ClassID   uint      `gorm:"not null;uniqueIndex:idx_characters_user_guild_class" json:"class_id"`
	Nickname  string    `json:"nickname"`
	GearScore int       `gorm:"not null;default:0" json:"gear_score"`
	IsMain    bool      `gorm:"not null;default:false" json:"is_main"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Class     Class     `gorm:"foreignKey:ClassID" json:"-"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Event{},
		&Lane{},
		&Signup{},
		&PartyLog{},
		&Class{},
		&Character{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
