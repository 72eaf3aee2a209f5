package signup

import (
	"context"
	"sync"
	"testing"
	"time"

	"example.com/partybot/internal/models"
	"example.com/partybot/internal/reject"

	"github.com/stretchr/testify/require"
)

// memoryStore backs the engine with a mutex-guarded map that honors the
// SignupStore contract: conditional admissions run under per-store mutual
// exclusion, the same guarantee the lane-locked transaction gives in the
// real repository. It holds a single event, which is all the engine reads.
type memoryStore struct {
	mu     sync.Mutex
	nextID uint
	event  models.Event
	lanes  []models.Lane
	rows   map[string]models.Signup
	audits int
}

func newMemoryStore(event models.Event, lanes []models.Lane) *memoryStore {
	return &memoryStore{event: event, lanes: lanes, rows: make(map[string]models.Signup)}
}

func (s *memoryStore) GetByID(ctx context.Context, id string) (*models.Event, error) {
	if id != s.event.ID {
		return nil, nil
	}
	event := s.event
	return &event, nil
}

func (s *memoryStore) ListByEvent(ctx context.Context, eventID string) ([]models.Lane, error) {
	return append([]models.Lane(nil), s.lanes...), nil
}

func (s *memoryStore) GetByKey(ctx context.Context, eventID, laneKey string) (*models.Lane, error) {
	for _, lane := range s.lanes {
		if lane.LaneKey == laneKey {
			l := lane
			return &l, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) laneByID(id uint) *models.Lane {
	for _, lane := range s.lanes {
		if lane.ID == id {
			l := lane
			return &l
		}
	}
	return nil
}

func (s *memoryStore) GetByEventAndUser(ctx context.Context, eventID, userID string) (*models.Signup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[userID]; ok {
		return &row, nil
	}
	return nil, nil
}

func (s *memoryStore) countLane(laneID uint) int {
	n := 0
	for _, row := range s.rows {
		if row.LaneID == laneID {
			n++
		}
	}
	return n
}

func (s *memoryStore) InsertIfBelowCapacity(ctx context.Context, eventID string, laneID uint, userID string, gearScore *int, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[userID]; exists {
		return nil
	}
	if capacity > 0 && s.countLane(laneID) >= capacity {
		return nil
	}
	s.nextID++
	s.rows[userID] = models.Signup{
		ID: s.nextID, EventID: eventID, LaneID: laneID,
		UserID: userID, GearScore: gearScore, JoinedAt: time.Now(),
	}
	return nil
}

func (s *memoryStore) RelocateIfBelowCapacity(ctx context.Context, eventID string, laneID uint, userID string, gearScore *int, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[userID]
	if !ok || row.LaneID == laneID {
		return nil
	}
	if capacity > 0 && s.countLane(laneID) >= capacity {
		return nil
	}
	row.LaneID = laneID
	row.GearScore = gearScore
	row.JoinedAt = time.Now()
	s.rows[userID] = row
	return nil
}

func (s *memoryStore) DeleteByID(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, row := range s.rows {
		if row.ID == id {
			delete(s.rows, userID)
			return nil
		}
	}
	return nil
}

func (s *memoryStore) DeleteFromLane(ctx context.Context, eventID string, laneID uint, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, userID := range userIDs {
		if row, ok := s.rows[userID]; ok && row.LaneID == laneID {
			delete(s.rows, userID)
		}
	}
	return nil
}

func (s *memoryStore) listSignups() []models.Signup {
	s.mu.Lock()
	defer s.mu.Unlock()
	signups := make([]models.Signup, 0, len(s.rows))
	for _, row := range s.rows {
		signups = append(signups, row)
	}
	return signups
}

func (s *memoryStore) Append(ctx context.Context, entry *models.PartyLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits++
	return nil
}

// memoryLanes and memorySignups adapt the shared store to the two engine
// interfaces whose method names collide on the struct itself.
type memoryLanes struct{ *memoryStore }

func (m memoryLanes) GetByID(ctx context.Context, id uint) (*models.Lane, error) {
	return m.laneByID(id), nil
}

type memorySignups struct{ *memoryStore }

func (m memorySignups) ListByEvent(ctx context.Context, eventID string) ([]models.Signup, error) {
	return m.listSignups(), nil
}

func newRaceFixture(t *testing.T, lanes []models.Lane) (*Engine, *memoryStore) {
	t.Helper()
	event := models.Event{
		ID:        "evt_rc01",
		GuildID:   "guild-1",
		Status:    models.EventStatusOpen,
		StartTime: time.Now().Add(time.Hour),
	}
	store := newMemoryStore(event, lanes)
	engine := newTestEngineWith(store, memoryLanes{store}, memorySignups{store}, store)
	return engine, store
}

func TestConcurrentJoinsAdmitExactlyCapacity(t *testing.T) {
	engine, store := newRaceFixture(t, []models.Lane{
		{ID: 1, EventID: "evt_rc01", LaneKey: "tank", Name: "Tank", Capacity: 1, SortOrder: 0},
		{ID: 2, EventID: "evt_rc01", LaneKey: "dps", Name: "DPS", Capacity: 4, SortOrder: 1},
	})

	const contenders = 6
	results := make([]error, contenders)
	var wg sync.WaitGroup
	for n := 0; n < contenders; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := "user-" + string(rune('a'+n))
			_, err := engine.Join(context.Background(), "evt_rc01", userID, "dps", 1500, userID)
			results[n] = err
		}(n)
	}
	wg.Wait()

	admitted, full := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			admitted++
		case reject.Is(err, reject.Capacity):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 4, admitted)
	require.Equal(t, 2, full)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Equal(t, 4, store.countLane(2))
}

func TestConcurrentSwitchesAdmitOneIntoLastSlot(t *testing.T) {
	engine, store := newRaceFixture(t, []models.Lane{
		{ID: 1, EventID: "evt_rc01", LaneKey: "tank", Name: "Tank", Capacity: 1, SortOrder: 0},
		{ID: 2, EventID: "evt_rc01", LaneKey: "dps", Name: "DPS", Capacity: 4, SortOrder: 1},
	})

	for _, userID := range []string{"user-a", "user-b"} {
		_, err := engine.Join(context.Background(), "evt_rc01", userID, "dps", 0, userID)
		require.NoError(t, err)
	}

	results := make([]error, 2)
	var wg sync.WaitGroup
	for n, userID := range []string{"user-a", "user-b"} {
		wg.Add(1)
		go func(n int, userID string) {
			defer wg.Done()
			_, err := engine.Join(context.Background(), "evt_rc01", userID, "tank", 0, userID)
			results[n] = err
		}(n, userID)
	}
	wg.Wait()

	switched, full := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			switched++
		case reject.Is(err, reject.Capacity):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, switched)
	require.Equal(t, 1, full)

	// The loser keeps its old lane: the switch is all-or-nothing.
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Equal(t, 1, store.countLane(1))
	require.Equal(t, 1, store.countLane(2))
}

func TestRemovalFreesSlotForNextJoin(t *testing.T) {
	engine, _ := newRaceFixture(t, []models.Lane{
		{ID: 1, EventID: "evt_rc01", LaneKey: "tank", Name: "Tank", Capacity: 1, SortOrder: 0},
	})

	_, err := engine.Join(context.Background(), "evt_rc01", "user-a", "tank", 0, "user-a")
	require.NoError(t, err)

	_, err = engine.Join(context.Background(), "evt_rc01", "user-b", "tank", 0, "user-b")
	require.True(t, reject.Is(err, reject.Capacity))

	err = engine.RemoveMany(context.Background(), "evt_rc01", 1, []string{"user-a"}, "Host", nil)
	require.NoError(t, err)

	result, err := engine.Join(context.Background(), "evt_rc01", "user-b", "tank", 0, "user-b")
	require.NoError(t, err)
	require.Equal(t, "Tank", result.Lane.Name)
}
