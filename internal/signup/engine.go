// Package signup implements the capacity-guarded join/switch/leave protocol.
//
// Every capacity-sensitive mutation is a conditional write whose predicate
// re-checks the invariant; the store serializes admissions per lane so the
// predicate can't be satisfied twice for the last slot. The engine then
// performs an independent read confirming the post-state. A missing
// post-state is a lost race, reported as a Full rejection rather than a
// silent no-op.
package signup

import (
	"context"

	"example.com/partybot/internal/metrics"
	"example.com/partybot/internal/models"
	"example.com/partybot/internal/reject"
	"example.com/partybot/internal/tracing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventStore is the event lookup the engine needs
type EventStore interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
}

// LaneStore is the lane access the engine needs
type LaneStore interface {
	ListByEvent(ctx context.Context, eventID string) ([]models.Lane, error)
	GetByKey(ctx context.Context, eventID, laneKey string) (*models.Lane, error)
	GetByID(ctx context.Context, id uint) (*models.Lane, error)
}

// SignupStore is the signup access the engine needs. Implementations
// must serialize the two conditional admissions per destination lane;
// the capacity predicate is only sound under that mutual exclusion.
type SignupStore interface {
	GetByEventAndUser(ctx context.Context, eventID, userID string) (*models.Signup, error)
	InsertIfBelowCapacity(ctx context.Context, eventID string, laneID uint, userID string, gearScore *int, capacity int) error
	RelocateIfBelowCapacity(ctx context.Context, eventID string, laneID uint, userID string, gearScore *int, capacity int) error
	DeleteByID(ctx context.Context, id uint) error
	DeleteFromLane(ctx context.Context, eventID string, laneID uint, userIDs []string) error
	ListByEvent(ctx context.Context, eventID string) ([]models.Signup, error)
}

// AuditLog appends to the party audit trail
type AuditLog interface {
	Append(ctx context.Context, entry *models.PartyLog) error
}

// Engine enforces the single-lane-per-user and per-lane-capacity invariants
type Engine struct {
	events  EventStore
	lanes   LaneStore
	signups SignupStore
	audit   AuditLog
	tracer  tracing.Tracer
	metrics *metrics.Metrics
}

// NewEngine creates a new signup engine
func NewEngine(events EventStore, lanes LaneStore, signups SignupStore, audit AuditLog, tracer tracing.Tracer, collector *metrics.Metrics) *Engine {
	return &Engine{
		events:  events,
		lanes:   lanes,
		signups: signups,
		audit:   audit,
		tracer:  tracer,
		metrics: collector,
	}
}

// Occupant is one signed-up user with the gear score recorded at join time
type Occupant struct {
	UserID    string `json:"user_id"`
	GearScore *int   `json:"gear_score"`
}

// LaneView is one lane with its current occupants in join order
type LaneView struct {
	Lane      models.Lane `json:"lane"`
	Occupants []Occupant  `json:"occupants"`
}

// JoinResult reports the outcome of a successful (or short-circuited) join
type JoinResult struct {
	Lane          models.Lane
	RecordedScore *int
	AlreadyIn     bool
	Switched      bool
}

// Join places the user into the requested lane, creating a new signup or
// relocating an existing one. candidateGS is the caller's best gear score
// for the lane's role, checked against the event threshold when one is set.
func (e *Engine) Join(ctx context.Context, eventID, userID, laneKey string, candidateGS int, actorName string) (*JoinResult, error) {
	txn := e.tracer.StartTransaction("signup-join")
	defer e.tracer.EndTransaction(txn)
	e.tracer.AddAttribute(txn, "event_id", eventID)
	e.tracer.AddAttribute(txn, "lane_key", laneKey)

	event, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		e.tracer.RecordError(txn, err)
		return nil, err
	}
	if event == nil {
		return nil, reject.New(reject.NotFound, "This party no longer exists.")
	}
	if !event.IsOpen() {
		return nil, reject.New(reject.State, "This party is closed.")
	}

	lane, err := e.lanes.GetByKey(ctx, eventID, laneKey)
	if err != nil {
		e.tracer.RecordError(txn, err)
		return nil, err
	}
	if lane == nil {
		return nil, reject.New(reject.NotFound, "That lane doesn't exist.")
	}

	if event.MinGearScore != nil && *event.MinGearScore > 0 && candidateGS < *event.MinGearScore {
		return nil, reject.New(reject.Eligibility,
			"This party requires GS %d; your best %s gear score is %d.",
			*event.MinGearScore, lane.Name, candidateGS)
	}

	existing, err := e.signups.GetByEventAndUser(ctx, eventID, userID)
	if err != nil {
		e.tracer.RecordError(txn, err)
		return nil, err
	}
	if existing != nil && existing.LaneID == lane.ID {
		return &JoinResult{Lane: *lane, RecordedScore: existing.GearScore, AlreadyIn: true}, nil
	}

	var recorded *int
	if candidateGS > 0 {
		gs := candidateGS
		recorded = &gs
	}

	switching := existing != nil
	span := e.tracer.StartSpan("conditional-write", txn)
	if switching {
		err = e.signups.RelocateIfBelowCapacity(ctx, eventID, lane.ID, userID, recorded, lane.Capacity)
	} else {
		err = e.signups.InsertIfBelowCapacity(ctx, eventID, lane.ID, userID, recorded, lane.Capacity)
	}
	span.End()
	if err != nil {
		e.tracer.RecordError(txn, err)
		return nil, err
	}

	// Verify the post-state: the conditional write gives no affected-row
	// feedback, so an independent read decides whether admission held.
	after, err := e.signups.GetByEventAndUser(ctx, eventID, userID)
	if err != nil {
		e.tracer.RecordError(txn, err)
		return nil, err
	}
	if after == nil || after.LaneID != lane.ID {
		e.metrics.IncrementCounter(metrics.CounterFullRejections)
		return nil, reject.New(reject.Capacity, "%s is full.", lane.Name)
	}

	action := models.ActionJoin
	if switching {
		action = models.ActionSwitch
		e.metrics.IncrementCounter(metrics.CounterSwitches)
	} else {
		e.metrics.IncrementCounter(metrics.CounterJoins)
	}
	e.logAction(ctx, event.GuildID, eventID, action, actorName, actorName, lane.Name)

	log.Info().
		Str("event_id", eventID).
		Str("user_id", userID).
		Str("lane", lane.LaneKey).
		Bool("switched", switching).
		Msg("Signup admitted")

	return &JoinResult{Lane: *lane, RecordedScore: after.GearScore, Switched: switching}, nil
}

// Leave deletes the user's signup if present. Deletion is by the row's own
// identity, then verified; a row that survives its own deletion is an
// internal inconsistency, never a claimed success.
func (e *Engine) Leave(ctx context.Context, eventID, userID, actorName string) error {
	txn := e.tracer.StartTransaction("signup-leave")
	defer e.tracer.EndTransaction(txn)
	e.tracer.AddAttribute(txn, "event_id", eventID)

	event, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		e.tracer.RecordError(txn, err)
		return err
	}
	if event == nil {
		return reject.New(reject.NotFound, "This party no longer exists.")
	}
	if !event.IsOpen() {
		return reject.New(reject.State, "This party is closed.")
	}

	existing, err := e.signups.GetByEventAndUser(ctx, eventID, userID)
	if err != nil {
		e.tracer.RecordError(txn, err)
		return err
	}
	if existing == nil {
		return reject.New(reject.NotFound, "You're not signed up for this party.")
	}

	if err := e.signups.DeleteByID(ctx, existing.ID); err != nil {
		e.tracer.RecordError(txn, err)
		return err
	}

	after, err := e.signups.GetByEventAndUser(ctx, eventID, userID)
	if err != nil {
		e.tracer.RecordError(txn, err)
		return err
	}
	if after != nil && after.ID == existing.ID {
		err := errors.Wrapf(reject.ErrInternalInconsistency,
			"signup %d for user %s still present after delete", existing.ID, userID)
		log.Error().Err(err).Str("event_id", eventID).Msg("Leave verification failed")
		e.tracer.RecordError(txn, err)
		return err
	}

	e.metrics.IncrementCounter(metrics.CounterLeaves)
	e.logAction(ctx, event.GuildID, eventID, models.ActionLeave, actorName, actorName, "")

	log.Info().Str("event_id", eventID).Str("user_id", userID).Msg("Signup removed")
	return nil
}

// RemoveMany deletes the given users' signups from one lane on behalf of a
// manager. Removing an already-absent user is a no-op. memberNames maps
// user ids to display names for the audit trail.
func (e *Engine) RemoveMany(ctx context.Context, eventID string, laneID uint, userIDs []string, actorName string, memberNames map[string]string) error {
	if len(userIDs) == 0 {
		return nil
	}

	txn := e.tracer.StartTransaction("signup-remove-many")
	defer e.tracer.EndTransaction(txn)
	e.tracer.AddAttribute(txn, "event_id", eventID)

	event, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		e.tracer.RecordError(txn, err)
		return err
	}
	if event == nil {
		return reject.New(reject.NotFound, "This party no longer exists.")
	}
	if !event.IsOpen() {
		return reject.New(reject.State, "This party is closed.")
	}

	if err := e.signups.DeleteFromLane(ctx, eventID, laneID, userIDs); err != nil {
		e.tracer.RecordError(txn, err)
		return err
	}

	var laneName string
	if lane, err := e.lanes.GetByID(ctx, laneID); err == nil && lane != nil {
		laneName = lane.Name
	}

	for _, userID := range userIDs {
		memberName := memberNames[userID]
		if memberName == "" {
			memberName = userID
		}
		e.metrics.IncrementCounter(metrics.CounterRemovals)
		e.logAction(ctx, event.GuildID, eventID, models.ActionRemove, actorName, memberName, laneName)
	}

	log.Info().
		Str("event_id", eventID).
		Uint("lane_id", laneID).
		Int("count", len(userIDs)).
		Str("actor", actorName).
		Msg("Signups removed by manager")
	return nil
}

// Snapshot returns every lane of the event with its occupants, lanes in
// display order and occupants in join order. Always computed fresh from
// the store: occupancy is authoritative state and never comes from the
// display cache.
func (e *Engine) Snapshot(ctx context.Context, eventID string) ([]LaneView, error) {
	lanes, err := e.lanes.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	signups, err := e.signups.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	byLane := make(map[uint][]Occupant, len(lanes))
	for _, s := range signups {
		byLane[s.LaneID] = append(byLane[s.LaneID], Occupant{UserID: s.UserID, GearScore: s.GearScore})
	}

	views := make([]LaneView, 0, len(lanes))
	for _, lane := range lanes {
		views = append(views, LaneView{Lane: lane, Occupants: byLane[lane.ID]})
	}
	return views, nil
}

// logAction appends one audit row. Failures are logged and swallowed:
// auditing must never block the user-facing operation.
func (e *Engine) logAction(ctx context.Context, guildID, eventID, action, actorName, memberName, reason string) {
	entry := &models.PartyLog{
		GuildID:    guildID,
		EventID:    eventID,
		Action:     action,
		ActorName:  actorName,
		MemberName: memberName,
	}
	if reason != "" {
		entry.Reason = &reason
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Str("action", action).Msg("Failed to write party log")
	}
}
