package handlers

import (
	"net/http"
	"strconv"

	"example.com/partybot/internal/models"
	"example.com/partybot/internal/repositories"
	"example.com/partybot/internal/signup"
	"example.com/partybot/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const defaultPartyLimit = 50

// PartyHandler serves the read-only party inspection endpoints
type PartyHandler struct {
	events *repositories.EventRepository
	engine *signup.Engine
	tracer tracing.Tracer
}

// NewPartyHandler creates a new party handler
func NewPartyHandler(events *repositories.EventRepository, engine *signup.Engine, tracer tracing.Tracer) *PartyHandler {
	return &PartyHandler{
		events: events,
		engine: engine,
		tracer: tracer,
	}
}

type partySummary struct {
	Event models.Event     `json:"event"`
	Lanes []signup.LaneView `json:"lanes"`
}

// HandleListParties returns open parties with their lane rosters
func (h *PartyHandler) HandleListParties(c *gin.Context) {
	txn := h.tracer.StartTransaction("list-parties")
	defer h.tracer.EndTransaction(txn)

	limit := defaultPartyLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = parsed
	}

	var (
		events []models.Event
		err    error
	)
	if guildID := c.Query("guild_id"); guildID != "" {
		events, err = h.events.ListOpen(c.Request.Context(), guildID, limit)
	} else {
		events, err = h.events.ListAllOpen(c.Request.Context(), limit)
	}
	if err != nil {
		h.tracer.RecordError(txn, err)
		log.Error().Err(err).Msg("Party listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list parties"})
		return
	}

	summaries := make([]partySummary, 0, len(events))
	for _, event := range events {
		lanes, err := h.engine.Snapshot(c.Request.Context(), event.ID)
		if err != nil {
			h.tracer.RecordError(txn, err)
			log.Error().Err(err).Str("event_id", event.ID).Msg("Party snapshot failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to snapshot party"})
			return
		}
		summaries = append(summaries, partySummary{Event: event, Lanes: lanes})
	}

	c.JSON(http.StatusOK, gin.H{"parties": summaries})
}

// HandleGetParty returns one party with its lane roster
func (h *PartyHandler) HandleGetParty(c *gin.Context) {
	txn := h.tracer.StartTransaction("get-party")
	defer h.tracer.EndTransaction(txn)

	id := c.Param("id")
	event, err := h.events.GetByID(c.Request.Context(), id)
	if err != nil {
		h.tracer.RecordError(txn, err)
		log.Error().Err(err).Str("event_id", id).Msg("Party lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load party"})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "party not found"})
		return
	}

	lanes, err := h.engine.Snapshot(c.Request.Context(), id)
	if err != nil {
		h.tracer.RecordError(txn, err)
		log.Error().Err(err).Str("event_id", id).Msg("Party snapshot failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to snapshot party"})
		return
	}

	c.JSON(http.StatusOK, partySummary{Event: *event, Lanes: lanes})
}
