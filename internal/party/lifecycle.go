// Package party owns the event lifecycle: creation from a template,
// the one-way open -> closed transition, and the platform side effects
// (listing message, thread, voice channel) around both.
package party

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"example.com/partybot/internal/cache"
	"example.com/partybot/internal/metrics"
	"example.com/partybot/internal/models"
	"example.com/partybot/internal/reject"
	"example.com/partybot/internal/repositories"
	"example.com/partybot/internal/signup"
	"example.com/partybot/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventStore is the event access the lifecycle manager needs
type EventStore interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	UpdatePointers(ctx context.Context, id, messageID, threadID, voiceChannelID string) error
	CloseIfOpen(ctx context.Context, id string) (bool, error)
	ListDueReminders(ctx context.Context, now time.Time) ([]models.Event, error)
	MarkReminded(ctx context.Context, id string) error
}

// LaneStore is the lane access the lifecycle manager needs
type LaneStore interface {
	CreateBatch(ctx context.Context, lanes []models.Lane) error
	ListByEvent(ctx context.Context, eventID string) ([]models.Lane, error)
}

// CharacterStore resolves the host's roster for eligibility and auto-enroll
type CharacterStore interface {
	MainForUser(ctx context.Context, userID, guildID string) (*models.Character, error)
}

// SignupEngine is the slice of the signup engine the manager drives
type SignupEngine interface {
	Join(ctx context.Context, eventID, userID, laneKey string, candidateGS int, actorName string) (*signup.JoinResult, error)
	Snapshot(ctx context.Context, eventID string) ([]signup.LaneView, error)
}

// ListingView is everything the platform needs to render a party listing
type ListingView struct {
	Event models.Event
	Lanes []signup.LaneView
}

// Platform is the chat-platform collaborator. All of its operations are
// side effects outside the persistence boundary; callers decide per call
// whether a failure is fatal or best-effort.
type Platform interface {
	PublishListing(ctx context.Context, channelID string, view ListingView) (messageID string, err error)
	EditListing(ctx context.Context, channelID, messageID string, view ListingView) error
	CreateThread(ctx context.Context, channelID, messageID, name string) (threadID string, err error)
	ArchiveThread(ctx context.Context, threadID string) error
	CreateVoiceChannel(ctx context.Context, guildID, name string) (channelID string, err error)
	DeleteVoiceChannel(ctx context.Context, channelID string) error
	SendChannelMessage(ctx context.Context, channelID, content string) error
}

// Manager orchestrates party creation and closing
type Manager struct {
	events     EventStore
	lanes      LaneStore
	characters CharacterStore
	engine     SignupEngine
	templates  *TemplateSet
	display    *cache.DisplayCache
	platform   Platform
	tracer     tracing.Tracer
	metrics    *metrics.Metrics
	adminIDs   []string
	minLead    time.Duration
}

// NewManager creates a new lifecycle manager
func NewManager(
	events EventStore,
	lanes LaneStore,
	characters CharacterStore,
	engine SignupEngine,
	templates *TemplateSet,
	display *cache.DisplayCache,
	platform Platform,
	tracer tracing.Tracer,
	collector *metrics.Metrics,
	adminIDs []string,
	minLead time.Duration,
) *Manager {
	if minLead <= 0 {
		minLead = 30 * time.Second
	}
	return &Manager{
		events:     events,
		lanes:      lanes,
		characters: characters,
		engine:     engine,
		templates:  templates,
		display:    display,
		platform:   platform,
		tracer:     tracer,
		metrics:    collector,
		adminIDs:   adminIDs,
		minLead:    minLead,
	}
}

// AdminIDs returns the configured manager allow-list
func (m *Manager) AdminIDs() []string {
	return m.adminIDs
}

// Templates returns the loaded template set
func (m *Manager) Templates() *TemplateSet {
	return m.templates
}

// CreateRequest carries the host's /party create input
type CreateRequest struct {
	GuildID      string
	ChannelID    string
	CreatorID    string
	CreatorName  string
	TemplateID   string
	Date         string // YYYY-MM-DD
	Time         string // HH:mm
	TZOffset     string // e.g. +13, +08:30, -05
	MinGearScore *int
	Description  string
}

// CreateResult reports a created party plus informational notes for the host
type CreateResult struct {
	Event models.Event
	Lanes []signup.LaneView
	Notes []string
}

// Create validates, persists and publishes a new party. Failures after the
// event row is persisted leave a degraded event (missing pointers) that is
// surfaced via logs, never rolled back.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	txn := m.tracer.StartTransaction("party-create")
	defer m.tracer.EndTransaction(txn)
	m.tracer.AddAttribute(txn, "template_id", req.TemplateID)

	tpl, ok := m.templates.Get(req.TemplateID)
	if !ok {
		return nil, reject.New(reject.Validation, "Unknown event template.")
	}

	start, err := parseStartTime(req.Date, req.Time, req.TZOffset)
	if err != nil {
		return nil, err
	}
	if time.Until(start) < m.minLead {
		return nil, reject.New(reject.Validation,
			"Start time must be at least %s in the future.", m.minLead)
	}

	// Resolve the host's main character once: it gates eligibility and
	// drives the auto-enroll below.
	mainChar, err := m.characters.MainForUser(ctx, req.CreatorID, req.GuildID)
	if err != nil {
		m.tracer.RecordError(txn, err)
		return nil, err
	}

	if req.MinGearScore != nil && *req.MinGearScore > 0 {
		if mainChar == nil {
			return nil, reject.New(reject.Validation,
				"You set a minimum GS of %d, but you don't have a main character. Add one with /character add or remove the minimum.",
				*req.MinGearScore)
		}
		if mainChar.GearScore < *req.MinGearScore {
			return nil, reject.New(reject.Eligibility,
				"Your main character's GS is %d, below the minimum GS %d. Raise it or lower the minimum.",
				mainChar.GearScore, *req.MinGearScore)
		}
	}

	event := models.Event{
		GuildID:      req.GuildID,
		ChannelID:    req.ChannelID,
		TemplateID:   tpl.ID,
		Title:        tpl.Name,
		Description:  req.Description,
		ImageURL:     tpl.ImageURL,
		StartTime:    start.UTC(),
		Status:       models.EventStatusOpen,
		CreatorID:    req.CreatorID,
		MinGearScore: req.MinGearScore,
	}
	// The short random id can collide; regenerate on a duplicate key
	// instead of surfacing the failure to the host.
	for attempt := 0; ; attempt++ {
		event.ID = newEventID()
		err := m.events.Create(ctx, &event)
		if err == nil {
			break
		}
		if errors.Is(err, repositories.ErrDuplicateKey) && attempt < maxIDAttempts-1 {
			continue
		}
		m.tracer.RecordError(txn, err)
		return nil, errors.Wrap(err, "failed to persist event")
	}

	lanes := make([]models.Lane, 0, len(tpl.Lanes))
	for i, lane := range tpl.Lanes {
		lanes = append(lanes, models.Lane{
			EventID:   event.ID,
			LaneKey:   lane.Key,
			Name:      lane.Name,
			Emoji:     lane.Emoji,
			Capacity:  lane.Capacity,
			SortOrder: i,
		})
	}
	if err := m.lanes.CreateBatch(ctx, lanes); err != nil {
		m.tracer.RecordError(txn, err)
		return nil, errors.Wrap(err, "failed to persist lanes")
	}

	notes := m.autoEnrollHost(ctx, &event, mainChar, req.CreatorName)

	view, err := m.engine.Snapshot(ctx, event.ID)
	if err != nil {
		m.tracer.RecordError(txn, err)
		return nil, err
	}

	messageID, err := m.platform.PublishListing(ctx, req.ChannelID, ListingView{Event: event, Lanes: view})
	if err != nil {
		// The event row already exists; surface the degraded state and stop.
		log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to publish party listing")
		m.tracer.RecordError(txn, err)
		return nil, errors.Wrap(err, "failed to publish listing")
	}

	// Thread and voice channel are independent best-effort side effects:
	// either may fail without affecting the created party.
	threadID, err := m.platform.CreateThread(ctx, req.ChannelID, messageID, "party-"+event.ID)
	if err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("Thread creation failed")
		threadID = ""
	}
	voiceID, err := m.platform.CreateVoiceChannel(ctx, req.GuildID, fmt.Sprintf("%s's – %s", req.CreatorName, tpl.Name))
	if err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("Voice channel creation failed")
		voiceID = ""
	}

	if err := m.events.UpdatePointers(ctx, event.ID, messageID, threadID, voiceID); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to store platform pointers")
		m.tracer.RecordError(txn, err)
	}
	event.MessageID = messageID
	event.ThreadID = threadID
	event.VoiceChannelID = voiceID

	m.display.Put(event.ID, cache.DisplayEntry{
		Title:        event.Title,
		Description:  event.Description,
		ImageURL:     event.ImageURL,
		StartTime:    event.StartTime,
		CreatorID:    event.CreatorID,
		ChannelID:    event.ChannelID,
		MessageID:    messageID,
		MinGearScore: event.MinGearScore,
	})

	m.metrics.IncrementCounter(metrics.CounterPartiesCreated)
	log.Info().
		Str("event_id", event.ID).
		Str("template", tpl.ID).
		Time("start", event.StartTime).
		Msg("Party created")

	return &CreateResult{Event: event, Lanes: view, Notes: notes}, nil
}

// autoEnrollHost signs the host into the lane matching their main
// character's role. Any miss is informational, never an error.
func (m *Manager) autoEnrollHost(ctx context.Context, event *models.Event, mainChar *models.Character, creatorName string) []string {
	if mainChar == nil {
		return []string{"You don't have a main character set — use /character add with main:true to mark one."}
	}

	role := strings.ToLower(mainChar.Class.Role)
	lanes, err := m.lanes.ListByEvent(ctx, event.ID)
	if err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("Auto-enroll lane listing failed")
		return nil
	}
	for _, lane := range lanes {
		if strings.ToLower(lane.LaneKey) == role {
			if _, err := m.engine.Join(ctx, event.ID, event.CreatorID, lane.LaneKey, mainChar.GearScore, creatorName); err != nil {
				log.Warn().Err(err).Str("event_id", event.ID).Msg("Host auto-enroll failed")
				return []string{fmt.Sprintf("Could not auto-enroll you into %s.", lane.Name)}
			}
			return nil
		}
	}
	return []string{fmt.Sprintf("No lane matches your main's role (%s), so you weren't auto-enrolled.", mainChar.Class.Role)}
}

// Close transitions an event to closed and tears down its platform
// surfaces. The status write is the durability-critical step; the voice
// channel, thread and listing edit are each best-effort.
func (m *Manager) Close(ctx context.Context, eventID string, requester Requester) (*models.Event, error) {
	txn := m.tracer.StartTransaction("party-close")
	defer m.tracer.EndTransaction(txn)
	m.tracer.AddAttribute(txn, "event_id", eventID)

	event, err := m.events.GetByID(ctx, eventID)
	if err != nil {
		m.tracer.RecordError(txn, err)
		return nil, err
	}
	if event == nil {
		return nil, reject.New(reject.NotFound, "Party not found.")
	}

	if !IsManager(requester, event.CreatorID, m.adminIDs) {
		return nil, reject.New(reject.Authorization, "You don't have permission to close this party.")
	}
	if !event.IsOpen() {
		return nil, reject.New(reject.State, "This party is already %s.", event.Status)
	}

	changed, err := m.events.CloseIfOpen(ctx, eventID)
	if err != nil {
		m.tracer.RecordError(txn, err)
		return nil, err
	}
	if !changed {
		return nil, reject.New(reject.State, "This party is already closed.")
	}
	event.Status = models.EventStatusClosed

	if event.VoiceChannelID != "" {
		if err := m.platform.DeleteVoiceChannel(ctx, event.VoiceChannelID); err != nil {
			log.Warn().Err(err).Str("event_id", eventID).Msg("Voice channel teardown failed")
		}
	}
	if event.ThreadID != "" {
		if err := m.platform.ArchiveThread(ctx, event.ThreadID); err != nil {
			log.Warn().Err(err).Str("event_id", eventID).Msg("Thread archive failed")
		}
	}

	if event.MessageID != "" {
		view, err := m.engine.Snapshot(ctx, eventID)
		if err != nil {
			log.Warn().Err(err).Str("event_id", eventID).Msg("Could not snapshot closed party for re-render")
		} else if err := m.platform.EditListing(ctx, event.ChannelID, event.MessageID, ListingView{Event: *event, Lanes: view}); err != nil {
			log.Warn().Err(err).Str("event_id", eventID).Msg("Could not edit closed party listing")
		}
	}

	m.display.Delete(eventID)
	m.metrics.IncrementCounter(metrics.CounterPartiesClosed)
	log.Info().Str("event_id", eventID).Str("closed_by", requester.ID).Msg("Party closed")

	return event, nil
}

var offsetPattern = regexp.MustCompile(`^([+-])(\d{1,2})(?::?(\d{2}))?$`)

// parseStartTime combines the date, time and UTC offset the host supplied.
// Offsets allow hours 0..14 and minutes 00/15/30/45 to cover zones like
// +12:45.
func parseStartTime(dateStr, timeStr, tzOffset string) (time.Time, error) {
	match := offsetPattern.FindStringSubmatch(strings.TrimSpace(tzOffset))
	if match == nil {
		return time.Time{}, reject.New(reject.Validation,
			"Invalid UTC offset %q — use a form like +13, +08:30, -05.", tzOffset)
	}
	hours := atoi(match[2])
	if hours < 0 || hours > 14 {
		return time.Time{}, reject.New(reject.Validation, "UTC offset hours must be between 0 and 14.")
	}
	minutes := match[3]
	if minutes == "" {
		minutes = "00"
	}
	switch minutes {
	case "00", "15", "30", "45":
	default:
		return time.Time{}, reject.New(reject.Validation, "UTC offset minutes must be 00, 15, 30 or 45.")
	}

	stamp := fmt.Sprintf("%sT%s:00%s%02d:%s",
		strings.TrimSpace(dateStr), strings.TrimSpace(timeStr), match[1], hours, minutes)
	start, err := time.Parse("2006-01-02T15:04:05-07:00", stamp)
	if err != nil {
		return time.Time{}, reject.New(reject.Validation, "Invalid date/time — use YYYY-MM-DD and HH:mm.")
	}
	return start, nil
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}

const eventIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// maxIDAttempts bounds the duplicate-id retry loop in Create
const maxIDAttempts = 5

// newEventID builds the short random event id (evt_ + 4 base-36 chars)
func newEventID() string {
	var b strings.Builder
	b.WriteString("evt_")
	for i := 0; i < 4; i++ {
		b.WriteByte(eventIDAlphabet[rand.Intn(len(eventIDAlphabet))])
	}
	return b.String()
}
