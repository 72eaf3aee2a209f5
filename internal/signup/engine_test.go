package signup

import (
	"context"
	"testing"
	"time"

	"example.com/partybot/config"
	"example.com/partybot/internal/metrics"
	"example.com/partybot/internal/models"
	"example.com/partybot/internal/reject"
	"example.com/partybot/internal/tracing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock stores for testing

type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) GetByID(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

type MockLaneStore struct {
	mock.Mock
}

func (m *MockLaneStore) ListByEvent(ctx context.Context, eventID string) ([]models.Lane, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Lane), args.Error(1)
}

func (m *MockLaneStore) GetByKey(ctx context.Context, eventID, laneKey string) (*models.Lane, error) {
	args := m.Called(ctx, eventID, laneKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lane), args.Error(1)
}

func (m *MockLaneStore) GetByID(ctx context.Context, id uint) (*models.Lane, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lane), args.Error(1)
}

type MockSignupStore struct {
	mock.Mock
}

func (m *MockSignupStore) GetByEventAndUser(ctx context.Context, eventID, userID string) (*models.Signup, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Signup), args.Error(1)
}

func (m *MockSignupStore) InsertIfBelowCapacity(ctx context.Context, eventID string, laneID uint, userID string, gearScore *int, capacity int) error {
	args := m.Called(ctx, eventID, laneID, userID, gearScore, capacity)
	return args.Error(0)
}

func (m *MockSignupStore) RelocateIfBelowCapacity(ctx context.Context, eventID string, laneID uint, userID string, gearScore *int, capacity int) error {
	args := m.Called(ctx, eventID, laneID, userID, gearScore, capacity)
	return args.Error(0)
}

func (m *MockSignupStore) DeleteByID(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSignupStore) DeleteFromLane(ctx context.Context, eventID string, laneID uint, userIDs []string) error {
	args := m.Called(ctx, eventID, laneID, userIDs)
	return args.Error(0)
}

func (m *MockSignupStore) ListByEvent(ctx context.Context, eventID string) ([]models.Signup, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Signup), args.Error(1)
}

type MockAuditLog struct {
	mock.Mock
}

func (m *MockAuditLog) Append(ctx context.Context, entry *models.PartyLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func newTestEngine(events *MockEventStore, lanes *MockLaneStore, signups *MockSignupStore, audit *MockAuditLog) *Engine {
	return newTestEngineWith(events, lanes, signups, audit)
}

func newTestEngineWith(events EventStore, lanes LaneStore, signups SignupStore, audit AuditLog) *Engine {
	tracer, _ := tracing.NewTracer(config.TracingConfig{})
	return NewEngine(events, lanes, signups, audit, tracer, metrics.NewMetrics())
}

func openEvent(id string) *models.Event {
	return &models.Event{
		ID:        id,
		GuildID:   "guild-1",
		Status:    models.EventStatusOpen,
		StartTime: time.Now().Add(time.Hour),
	}
}

func intPtr(v int) *int {
	return &v
}

func TestJoinAdmitsNewSignup(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	lane := &models.Lane{ID: 7, EventID: "evt_ab12", LaneKey: "dps", Name: "DPS", Capacity: 4}
	events.On("GetByID", mock.Anything, "evt_ab12").Return(openEvent("evt_ab12"), nil)
	lanes.On("GetByKey", mock.Anything, "evt_ab12", "dps").Return(lane, nil)
	signups.On("GetByEventAndUser", mock.Anything, "evt_ab12", "user-1").Return(nil, nil).Once()
	signups.On("InsertIfBelowCapacity", mock.Anything, "evt_ab12", uint(7), "user-1", intPtr(1550), 4).Return(nil)
	signups.On("GetByEventAndUser", mock.Anything, "evt_ab12", "user-1").
		Return(&models.Signup{ID: 42, EventID: "evt_ab12", LaneID: 7, UserID: "user-1", GearScore: intPtr(1550)}, nil).Once()
	audit.On("Append", mock.Anything, mock.AnythingOfType("*models.PartyLog")).Return(nil)

	result, err := engine.Join(context.Background(), "evt_ab12", "user-1", "dps", 1550, "Alice")
	require.NoError(t, err)
	require.False(t, result.AlreadyIn)
	require.False(t, result.Switched)
	require.Equal(t, "DPS", result.Lane.Name)
	require.Equal(t, 1550, *result.RecordedScore)

	signups.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestJoinRejectsWhenRaceLost(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	lane := &models.Lane{ID: 3, EventID: "evt_ab12", LaneKey: "tank", Name: "Tank", Capacity: 1}
	events.On("GetByID", mock.Anything, "evt_ab12").Return(openEvent("evt_ab12"), nil)
	lanes.On("GetByKey", mock.Anything, "evt_ab12", "tank").Return(lane, nil)
	// No prior signup; the conditional insert silently admits nobody because
	// the lane filled between the read and the write.
	signups.On("GetByEventAndUser", mock.Anything, "evt_ab12", "user-2").Return(nil, nil)
	signups.On("InsertIfBelowCapacity", mock.Anything, "evt_ab12", uint(3), "user-2", (*int)(nil), 1).Return(nil)

	_, err := engine.Join(context.Background(), "evt_ab12", "user-2", "tank", 0, "Bob")
	require.Error(t, err)
	rej := reject.As(err)
	require.NotNil(t, rej)
	require.Equal(t, reject.Capacity, rej.Kind)
	require.Equal(t, "Tank is full.", rej.Message)

	audit.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestJoinSameLaneIsIdempotent(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	lane := &models.Lane{ID: 5, EventID: "evt_ab12", LaneKey: "heal", Name: "Healer", Capacity: 1}
	events.On("GetByID", mock.Anything, "evt_ab12").Return(openEvent("evt_ab12"), nil)
	lanes.On("GetByKey", mock.Anything, "evt_ab12", "heal").Return(lane, nil)
	signups.On("GetByEventAndUser", mock.Anything, "evt_ab12", "user-3").
		Return(&models.Signup{ID: 9, LaneID: 5, UserID: "user-3", GearScore: intPtr(1500)}, nil)

	result, err := engine.Join(context.Background(), "evt_ab12", "user-3", "heal", 1500, "Cara")
	require.NoError(t, err)
	require.True(t, result.AlreadyIn)
	require.Equal(t, 1500, *result.RecordedScore)

	signups.AssertNotCalled(t, "InsertIfBelowCapacity",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	signups.AssertNotCalled(t, "RelocateIfBelowCapacity",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestJoinSwitchKeepsOldLaneWhenTargetFull(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	target := &models.Lane{ID: 3, EventID: "evt_ab12", LaneKey: "tank", Name: "Tank", Capacity: 1}
	existing := &models.Signup{ID: 11, LaneID: 8, UserID: "user-4"}
	events.On("GetByID", mock.Anything, "evt_ab12").Return(openEvent("evt_ab12"), nil)
	lanes.On("GetByKey", mock.Anything, "evt_ab12", "tank").Return(target, nil)
	signups.On("GetByEventAndUser", mock.Anything, "evt_ab12", "user-4").Return(existing, nil).Once()
	signups.On("RelocateIfBelowCapacity", mock.Anything, "evt_ab12", uint(3), "user-4", (*int)(nil), 1).Return(nil)
	// The verify read still shows the old lane: the relocation predicate failed.
	signups.On("GetByEventAndUser", mock.Anything, "evt_ab12", "user-4").Return(existing, nil).Once()

	_, err := engine.Join(context.Background(), "evt_ab12", "user-4", "tank", 0, "Dan")
	require.Error(t, err)
	rej := reject.As(err)
	require.NotNil(t, rej)
	require.Equal(t, reject.Capacity, rej.Kind)
}

func TestJoinEnforcesMinimumGearScore(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	event := openEvent("evt_ab12")
	event.MinGearScore = intPtr(1600)
	lane := &models.Lane{ID: 7, EventID: "evt_ab12", LaneKey: "dps", Name: "DPS", Capacity: 4}
	events.On("GetByID", mock.Anything, "evt_ab12").Return(event, nil)
	lanes.On("GetByKey", mock.Anything, "evt_ab12", "dps").Return(lane, nil)

	_, err := engine.Join(context.Background(), "evt_ab12", "user-5", "dps", 1500, "Eve")
	require.Error(t, err)
	rej := reject.As(err)
	require.NotNil(t, rej)
	require.Equal(t, reject.Eligibility, rej.Kind)
	require.Contains(t, rej.Message, "1600")
	require.Contains(t, rej.Message, "1500")

	// 1650 clears the bar and proceeds to the conditional write.
	signups.On("GetByEventAndUser", mock.Anything, "evt_ab12", "user-5").Return(nil, nil).Once()
	signups.On("InsertIfBelowCapacity", mock.Anything, "evt_ab12", uint(7), "user-5", intPtr(1650), 4).Return(nil)
	signups.On("GetByEventAndUser", mock.Anything, "evt_ab12", "user-5").
		Return(&models.Signup{ID: 21, LaneID: 7, UserID: "user-5", GearScore: intPtr(1650)}, nil).Once()
	audit.On("Append", mock.Anything, mock.AnythingOfType("*models.PartyLog")).Return(nil)

	result, err := engine.Join(context.Background(), "evt_ab12", "user-5", "dps", 1650, "Eve")
	require.NoError(t, err)
	require.Equal(t, 1650, *result.RecordedScore)
}

func TestJoinClosedParty(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	event := openEvent("evt_ab12")
	event.Status = models.EventStatusClosed
	events.On("GetByID", mock.Anything, "evt_ab12").Return(event, nil)

	_, err := engine.Join(context.Background(), "evt_ab12", "user-6", "dps", 0, "Fay")
	require.Error(t, err)
	require.True(t, reject.Is(err, reject.State))
}

func TestJoinUnknownParty(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	events.On("GetByID", mock.Anything, "evt_gone").Return(nil, nil)

	_, err := engine.Join(context.Background(), "evt_gone", "user-7", "dps", 0, "Gil")
	require.Error(t, err)
	require.True(t, reject.Is(err, reject.NotFound))
}

func TestLeaveRemovesSignup(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	events.On("GetByID", mock.Anything, "evt_ab12").Return(openEvent("evt_ab12"), nil)
	signups.On("GetByEventAndUser", mock.Anything, "evt_ab12", "user-1").
		Return(&models.Signup{ID: 42, LaneID: 7, UserID: "user-1"}, nil).Once()
	signups.On("DeleteByID", mock.Anything, uint(42)).Return(nil)
	signups.On("GetByEventAndUser", mock.Anything, "evt_ab12", "user-1").Return(nil, nil).Once()
	audit.On("Append", mock.Anything, mock.AnythingOfType("*models.PartyLog")).Return(nil)

	err := engine.Leave(context.Background(), "evt_ab12", "user-1", "Alice")
	require.NoError(t, err)
	signups.AssertExpectations(t)
}

func TestLeaveWhenNotSignedUp(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	events.On("GetByID", mock.Anything, "evt_ab12").Return(openEvent("evt_ab12"), nil)
	signups.On("GetByEventAndUser", mock.Anything, "evt_ab12", "user-9").Return(nil, nil)

	err := engine.Leave(context.Background(), "evt_ab12", "user-9", "Hana")
	require.Error(t, err)
	require.True(t, reject.Is(err, reject.NotFound))
	signups.AssertNotCalled(t, "DeleteByID", mock.Anything, mock.Anything)
}

func TestLeaveSurvivingRowIsInconsistency(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	row := &models.Signup{ID: 42, LaneID: 7, UserID: "user-1"}
	events.On("GetByID", mock.Anything, "evt_ab12").Return(openEvent("evt_ab12"), nil)
	signups.On("GetByEventAndUser", mock.Anything, "evt_ab12", "user-1").Return(row, nil)
	signups.On("DeleteByID", mock.Anything, uint(42)).Return(nil)

	err := engine.Leave(context.Background(), "evt_ab12", "user-1", "Alice")
	require.Error(t, err)
	require.ErrorIs(t, err, reject.ErrInternalInconsistency)
	audit.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestRemoveManyEmptySelection(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	err := engine.RemoveMany(context.Background(), "evt_ab12", 7, nil, "Alice", nil)
	require.NoError(t, err)
	events.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestRemoveManyAuditsEachMember(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	events.On("GetByID", mock.Anything, "evt_ab12").Return(openEvent("evt_ab12"), nil)
	signups.On("DeleteFromLane", mock.Anything, "evt_ab12", uint(7), []string{"user-1", "user-2"}).Return(nil)
	lanes.On("GetByID", mock.Anything, uint(7)).Return(&models.Lane{ID: 7, Name: "DPS"}, nil)
	audit.On("Append", mock.Anything, mock.AnythingOfType("*models.PartyLog")).Return(nil).Times(2)

	err := engine.RemoveMany(context.Background(), "evt_ab12", 7,
		[]string{"user-1", "user-2"}, "Alice", map[string]string{"user-1": "Bob"})
	require.NoError(t, err)
	audit.AssertExpectations(t)
}

func TestSnapshotGroupsOccupantsByLane(t *testing.T) {
	events := new(MockEventStore)
	lanes := new(MockLaneStore)
	signups := new(MockSignupStore)
	audit := new(MockAuditLog)
	engine := newTestEngine(events, lanes, signups, audit)

	lanes.On("ListByEvent", mock.Anything, "evt_ab12").Return([]models.Lane{
		{ID: 1, LaneKey: "tank", Name: "Tank", Capacity: 1, SortOrder: 0},
		{ID: 2, LaneKey: "dps", Name: "DPS", Capacity: 4, SortOrder: 1},
		{ID: 3, LaneKey: "heal", Name: "Healer", Capacity: 1, SortOrder: 2},
	}, nil)
	signups.On("ListByEvent", mock.Anything, "evt_ab12").Return([]models.Signup{
		{ID: 1, LaneID: 2, UserID: "user-1", GearScore: intPtr(1550)},
		{ID: 2, LaneID: 1, UserID: "user-2"},
		{ID: 3, LaneID: 2, UserID: "user-3"},
	}, nil)

	views, err := engine.Snapshot(context.Background(), "evt_ab12")
	require.NoError(t, err)
	require.Len(t, views, 3)
	require.Equal(t, "Tank", views[0].Lane.Name)
	require.Len(t, views[0].Occupants, 1)
	require.Len(t, views[1].Occupants, 2)
	require.Equal(t, "user-1", views[1].Occupants[0].UserID)
	require.Empty(t, views[2].Occupants)
}
