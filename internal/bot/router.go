// Package bot wires slash commands and message components to the party
// domain. Every interaction is acknowledged before any repository call so
// slow queries can't blow the platform's response deadline.
package bot

import (
	"context"
	"strconv"
	"sync"
	"time"

	"example.com/partybot/internal/cache"
	"example.com/partybot/internal/discord"
	"example.com/partybot/internal/metrics"
	"example.com/partybot/internal/models"
	"example.com/partybot/internal/party"
	"example.com/partybot/internal/reject"
	"example.com/partybot/internal/repositories"
	"example.com/partybot/internal/signup"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const interactionTimeout = 10 * time.Second

// EventStore is the event access the router needs
type EventStore interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
	GetByThreadID(ctx context.Context, threadID string) (*models.Event, error)
	ListOpen(ctx context.Context, guildID string, limit int) ([]models.Event, error)
}

// Handler routes Discord interactions to the party domain
type Handler struct {
	session    *discordgo.Session
	engine     *signup.Engine
	manager    *party.Manager
	characters *repositories.CharacterRepository
	events     EventStore
	platform   *discord.Platform
	display    *cache.DisplayCache
	metrics    *metrics.Metrics

	partyChannelID  string
	calloutCooldown time.Duration
	calloutMu       sync.Mutex
	calloutLast     map[string]time.Time
}

// NewHandler creates a new interaction handler
func NewHandler(
	session *discordgo.Session,
	engine *signup.Engine,
	manager *party.Manager,
	characters *repositories.CharacterRepository,
	events EventStore,
	platform *discord.Platform,
	display *cache.DisplayCache,
	collector *metrics.Metrics,
	partyChannelID string,
	calloutCooldown time.Duration,
) *Handler {
	return &Handler{
		session:         session,
		engine:          engine,
		manager:         manager,
		characters:      characters,
		events:          events,
		platform:        platform,
		display:         display,
		metrics:         collector,
		partyChannelID:  partyChannelID,
		calloutCooldown: calloutCooldown,
		calloutLast:     make(map[string]time.Time),
	}
}

// Register attaches the handler to the session
func (h *Handler) Register() {
	h.session.AddHandler(h.onInteraction)
}

func (h *Handler) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	h.metrics.IncrementCounter(metrics.CounterInteractions)

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		h.dispatchCommand(ctx, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		h.dispatchAutocomplete(ctx, i)
	case discordgo.InteractionMessageComponent:
		h.dispatchComponent(ctx, i)
	}
}

func (h *Handler) dispatchCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "party":
		h.handlePartyCommand(ctx, i, data)
	case "character":
		h.handleCharacterCommand(ctx, i, data)
	case "callout":
		h.handleCalloutCommand(ctx, i, data)
	}
}

func (h *Handler) dispatchAutocomplete(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "party":
		h.handlePartyAutocomplete(ctx, i, data)
	case "character":
		h.handleCharacterAutocomplete(ctx, i, data)
	}
}

// dispatchComponent handles button and select interactions. Malformed
// custom IDs are dropped without responding; they come from messages this
// build never produced.
func (h *Handler) dispatchComponent(ctx context.Context, i *discordgo.InteractionCreate) {
	action, ok := discord.ParseComponentID(i.MessageComponentData().CustomID)
	if !ok {
		log.Debug().Str("custom_id", i.MessageComponentData().CustomID).Msg("Dropping unrecognized component")
		return
	}

	switch action.Kind {
	case discord.ActionJoin:
		h.handleJoin(ctx, i, action)
	case discord.ActionLeave:
		h.handleLeave(ctx, i, action)
	case discord.ActionManage:
		h.handleManage(ctx, i, action)
	case discord.ActionRemovalSubmit:
		h.handleRemovalSubmit(ctx, i, action)
	}
}

func (h *Handler) handleJoin(ctx context.Context, i *discordgo.InteractionCreate, action discord.ComponentAction) {
	if !h.deferUpdate(i) {
		return
	}

	entry, ok := h.lookupDisplay(ctx, action.EventID)
	if !ok {
		h.followupEphemeral(i, "This party no longer exists.")
		return
	}

	userID, userName := interactionUser(i)
	candidateGS, err := h.characters.BestScoreForRole(ctx, userID, i.GuildID, action.LaneKey)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Best score lookup failed")
		candidateGS = 0
	}

	result, err := h.engine.Join(ctx, action.EventID, userID, action.LaneKey, candidateGS, userName)
	if err != nil {
		h.replyDomainError(i, action.EventID, err)
		return
	}

	h.refreshListing(ctx, action.EventID, entry)
	switch {
	case result.AlreadyIn:
		h.followupEphemeral(i, "You're already in "+result.Lane.Name+".")
	case result.Switched:
		h.followupEphemeral(i, "Switched to "+result.Lane.Name+".")
	default:
		h.followupEphemeral(i, "Joined "+result.Lane.Name+". See you there!")
	}
}

func (h *Handler) handleLeave(ctx context.Context, i *discordgo.InteractionCreate, action discord.ComponentAction) {
	if !h.deferUpdate(i) {
		return
	}

	entry, ok := h.lookupDisplay(ctx, action.EventID)
	if !ok {
		h.followupEphemeral(i, "This party no longer exists.")
		return
	}

	userID, userName := interactionUser(i)
	if err := h.engine.Leave(ctx, action.EventID, userID, userName); err != nil {
		h.replyDomainError(i, action.EventID, err)
		return
	}

	h.refreshListing(ctx, action.EventID, entry)
	h.followupEphemeral(i, "You left the party.")
}

func (h *Handler) handleManage(ctx context.Context, i *discordgo.InteractionCreate, action discord.ComponentAction) {
	if !h.deferEphemeral(i) {
		return
	}

	entry, ok := h.lookupDisplay(ctx, action.EventID)
	if !ok {
		h.followupEphemeral(i, "This party no longer exists.")
		return
	}

	if !party.IsManager(requesterFrom(i), entry.CreatorID, h.manager.AdminIDs()) {
		h.followupEphemeral(i, "Only the host or an admin can manage this party.")
		return
	}

	view, err := h.listingView(ctx, action.EventID)
	if err != nil {
		h.replyDomainError(i, action.EventID, err)
		return
	}

	names := h.platform.DisplayNames(ctx, i.GuildID, occupantIDs(view))

	_, err = h.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content:    "Select players to remove:",
		Components: discord.RemovalSelects(*view, names),
		Flags:      discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Warn().Err(err).Str("event_id", action.EventID).Msg("Failed to send manage panel")
		h.metrics.IncrementCounter(metrics.CounterHandlerFailures)
	}
}

func (h *Handler) handleRemovalSubmit(ctx context.Context, i *discordgo.InteractionCreate, action discord.ComponentAction) {
	if !h.deferUpdate(i) {
		return
	}

	entry, ok := h.lookupDisplay(ctx, action.EventID)
	if !ok {
		h.followupEphemeral(i, "This party no longer exists.")
		return
	}
	if !party.IsManager(requesterFrom(i), entry.CreatorID, h.manager.AdminIDs()) {
		h.followupEphemeral(i, "Only the host or an admin can manage this party.")
		return
	}

	removed := i.MessageComponentData().Values
	_, actorName := interactionUser(i)
	names := h.platform.DisplayNames(ctx, i.GuildID, removed)
	if err := h.engine.RemoveMany(ctx, action.EventID, action.LaneID, removed, actorName, names); err != nil {
		h.replyDomainError(i, action.EventID, err)
		return
	}

	h.refreshListing(ctx, action.EventID, entry)
	h.refreshManagePanel(ctx, i, action.EventID)
	h.followupEphemeral(i, "Removed "+pluralize(len(removed), "player", "players")+".")
}

// refreshManagePanel rebuilds the ephemeral removal selects in place so a
// manager can keep removing without reopening the panel
func (h *Handler) refreshManagePanel(ctx context.Context, i *discordgo.InteractionCreate, eventID string) {
	view, err := h.listingView(ctx, eventID)
	if err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("Manage panel refresh snapshot failed")
		return
	}

	names := h.platform.DisplayNames(ctx, i.GuildID, occupantIDs(view))

	components := discord.RemovalSelects(*view, names)
	_, err = h.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Components: &components,
	})
	if err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("Manage panel refresh failed")
	}
}

func occupantIDs(view *party.ListingView) []string {
	ids := make([]string, 0)
	for _, lane := range view.Lanes {
		for _, occ := range lane.Occupants {
			ids = append(ids, occ.UserID)
		}
	}
	return ids
}

// lookupDisplay reads the display cache through to the event repository on
// a miss. Only open events are re-cached: Close already evicted its entry,
// and re-inserting a closed event would leave it in the cache for good.
func (h *Handler) lookupDisplay(ctx context.Context, eventID string) (cache.DisplayEntry, bool) {
	if entry, ok := h.display.Get(eventID); ok {
		return entry, true
	}
	event, err := h.events.GetByID(ctx, eventID)
	if err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("Display read-through failed")
		return cache.DisplayEntry{}, false
	}
	if event == nil {
		return cache.DisplayEntry{}, false
	}
	entry := cache.DisplayEntry{
		Title:        event.Title,
		Description:  event.Description,
		ImageURL:     event.ImageURL,
		StartTime:    event.StartTime,
		CreatorID:    event.CreatorID,
		ChannelID:    event.ChannelID,
		MessageID:    event.MessageID,
		MinGearScore: event.MinGearScore,
	}
	if event.IsOpen() {
		h.display.Put(eventID, entry)
	}
	return entry, true
}

// listingView assembles the full render view for an event
func (h *Handler) listingView(ctx context.Context, eventID string) (*party.ListingView, error) {
	event, err := h.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, reject.New(reject.NotFound, "This party no longer exists.")
	}
	lanes, err := h.engine.Snapshot(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &party.ListingView{Event: *event, Lanes: lanes}, nil
}

// refreshListing re-renders the listing message after a roster change.
// Render failures never surface to the member whose action succeeded.
func (h *Handler) refreshListing(ctx context.Context, eventID string, entry cache.DisplayEntry) {
	view, err := h.listingView(ctx, eventID)
	if err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("Listing refresh snapshot failed")
		return
	}
	if entry.MessageID == "" {
		return
	}
	if err := h.platform.EditListing(ctx, entry.ChannelID, entry.MessageID, *view); err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("Listing refresh failed")
		h.metrics.IncrementCounter(metrics.CounterHandlerFailures)
	}
}

// replyDomainError maps a domain error onto an ephemeral reply. Rejections
// carry a member-facing message; anything else gets a generic apology and
// a logged stack.
func (h *Handler) replyDomainError(i *discordgo.InteractionCreate, eventID string, err error) {
	if rej := reject.As(err); rej != nil {
		h.followupEphemeral(i, rej.Message)
		return
	}
	log.Error().Err(err).Str("event_id", eventID).Msg("Interaction handler failed")
	h.metrics.IncrementCounter(metrics.CounterHandlerFailures)
	h.followupEphemeral(i, "Something went wrong. Please try again.")
}

func (h *Handler) deferUpdate(i *discordgo.InteractionCreate) bool {
	err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to acknowledge component interaction")
		h.metrics.IncrementCounter(metrics.CounterHandlerFailures)
		return false
	}
	return true
}

func (h *Handler) deferEphemeral(i *discordgo.InteractionCreate) bool {
	err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to acknowledge interaction")
		h.metrics.IncrementCounter(metrics.CounterHandlerFailures)
		return false
	}
	return true
}

func (h *Handler) followupEphemeral(i *discordgo.InteractionCreate, content string) {
	_, err := h.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to send followup")
	}
}

func (h *Handler) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to respond")
	}
}

// interactionUser extracts the acting user's ID and display name
func interactionUser(i *discordgo.InteractionCreate) (string, string) {
	if i.Member != nil && i.Member.User != nil {
		name := i.Member.Nick
		if name == "" {
			name = i.Member.User.Username
		}
		return i.Member.User.ID, name
	}
	if i.User != nil {
		return i.User.ID, i.User.Username
	}
	return "", ""
}

// requesterFrom builds the authorization view of the acting member
func requesterFrom(i *discordgo.InteractionCreate) party.Requester {
	id, name := interactionUser(i)
	isAdmin := i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
	return party.Requester{ID: id, Name: name, IsAdmin: isAdmin}
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return strconv.Itoa(n) + " " + plural
}
