package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

const validPayload = `{
	"project_id": "5b1f1a52-8f6c-4b44-9d6e-0c5f1f7f2a01",
	"contractor_id": "9a3e7c15-1d2b-4d8e-8c1f-6f4b2e9d7c02",
	"worker_id": "e4c2b8a1-7f3d-4a6b-9e5c-1d8f2a7b3c03",
	"hours_worked": 6,
	"work_date": "2024-05-02"
}`

type MockOfflineStore struct {
	mock.Mock
	calls []string
}

func (m *MockOfflineStore) InsertOfflineEntry(ctx context.Context, entry *models.OfflineEntry) (string, error) {
	args := m.Called(entry)
	return args.String(0), args.Error(1)
}

func (m *MockOfflineStore) ListPendingOfflineEntries(ctx context.Context) ([]models.OfflineEntry, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OfflineEntry), args.Error(1)
}

func (m *MockOfflineStore) ListOfflineEntries(ctx context.Context, status models.SyncStatus) ([]models.OfflineEntry, error) {
	args := m.Called(status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OfflineEntry), args.Error(1)
}

func (m *MockOfflineStore) ClaimOfflineEntry(ctx context.Context, id string) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockOfflineStore) ReleaseOfflineEntry(ctx context.Context, id string) error {
	m.calls = append(m.calls, "release:"+id)
	return m.Called(id).Error(0)
}

func (m *MockOfflineStore) MarkOfflineEntrySynced(ctx context.Context, id string, syncedAt time.Time) error {
	m.calls = append(m.calls, "synced:"+id)
	return m.Called(id, syncedAt).Error(0)
}

func (m *MockOfflineStore) MarkOfflineEntryFailed(ctx context.Context, id string, reason string) error {
	m.calls = append(m.calls, "failed:"+id)
	return m.Called(id, reason).Error(0)
}

func (m *MockOfflineStore) InsertLaborHour(ctx context.Context, record *models.LaborHourRecord) (string, error) {
	m.calls = append(m.calls, "insert:"+record.WorkerID)
	args := m.Called(record)
	return args.String(0), args.Error(1)
}

var syncTime = time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)

func newTestReplayer(store *MockOfflineStore) *Replayer {
	r := NewReplayer(store, logger.NewNop())
	r.now = func() time.Time { return syncTime }
	return r
}

func entry(id, entryType, payload string) models.OfflineEntry {
	return models.OfflineEntry{
		ID:         id,
		UserID:     "field-tablet-3",
		EntryType:  entryType,
		EntryData:  []byte(payload),
		SyncStatus: models.SyncPending,
	}
}

func TestReplayer_Replay(t *testing.T) {
	t.Run("replays entries serially in queue order", func(t *testing.T) {
		store := new(MockOfflineStore)
		store.On("ListPendingOfflineEntries").Return([]models.OfflineEntry{
			entry("e1", models.OfflineEntryLaborHours, validPayload),
			entry("e2", models.OfflineEntryLaborHours, validPayload),
		}, nil).Once()
		store.On("ClaimOfflineEntry", mock.Anything).Return(true, nil).Twice()
		store.On("InsertLaborHour", mock.MatchedBy(func(r *models.LaborHourRecord) bool {
			return r.HoursWorked == 6 && r.CheckSum != "" && r.WorkDate.Equal(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
		})).Return("lh-1", nil).Twice()
		store.On("MarkOfflineEntrySynced", "e1", syncTime).Return(nil).Once()
		store.On("MarkOfflineEntrySynced", "e2", syncTime).Return(nil).Once()

		result, err := newTestReplayer(store).Replay(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, result.Pending)
		assert.Equal(t, 2, result.Synced)
		assert.Zero(t, result.Failed)
		assert.NotEmpty(t, result.RunID)
		worker := "e4c2b8a1-7f3d-4a6b-9e5c-1d8f2a7b3c03"
		assert.Equal(t, []string{"insert:" + worker, "synced:e1", "insert:" + worker, "synced:e2"}, store.calls)
		store.AssertExpectations(t)
	})

	t.Run("bad entries are marked failed and replay continues", func(t *testing.T) {
		store := new(MockOfflineStore)
		store.On("ListPendingOfflineEntries").Return([]models.OfflineEntry{
			entry("bad-json", models.OfflineEntryLaborHours, `{not json`),
			entry("photo", "site_photo", `{}`),
			entry("bad-date", models.OfflineEntryLaborHours, `{"work_date": "soon"}`),
			entry("ok", models.OfflineEntryLaborHours, validPayload),
		}, nil).Once()
		store.On("ClaimOfflineEntry", mock.Anything).Return(true, nil).Times(4)
		store.On("MarkOfflineEntryFailed", "bad-json", mock.MatchedBy(func(reason string) bool {
			return assert.Contains(t, reason, "decoding entry data")
		})).Return(nil).Once()
		store.On("MarkOfflineEntryFailed", "photo", mock.MatchedBy(func(reason string) bool {
			return assert.Contains(t, reason, ErrUnsupportedEntry.Error())
		})).Return(nil).Once()
		store.On("MarkOfflineEntryFailed", "bad-date", mock.Anything).Return(nil).Once()
		store.On("InsertLaborHour", mock.Anything).Return("lh-9", nil).Once()
		store.On("MarkOfflineEntrySynced", "ok", syncTime).Return(nil).Once()

		result, err := newTestReplayer(store).Replay(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)
		assert.Equal(t, 3, result.Failed)
		store.AssertExpectations(t)
	})

	t.Run("datastore failure stops the run and releases the entry", func(t *testing.T) {
		store := new(MockOfflineStore)
		store.On("ListPendingOfflineEntries").Return([]models.OfflineEntry{
			entry("e1", models.OfflineEntryLaborHours, validPayload),
			entry("e2", models.OfflineEntryLaborHours, validPayload),
		}, nil).Once()
		store.On("ClaimOfflineEntry", "e1").Return(true, nil).Once()
		store.On("InsertLaborHour", mock.Anything).Return("", errors.New("connection refused")).Once()
		store.On("ReleaseOfflineEntry", "e1").Return(nil).Once()

		result, err := newTestReplayer(store).Replay(context.Background())

		assert.ErrorContains(t, err, "replaying offline entry e1")
		assert.Zero(t, result.Synced)
		assert.Equal(t, "release:e1", store.calls[len(store.calls)-1])
		store.AssertNotCalled(t, "MarkOfflineEntrySynced", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "MarkOfflineEntryFailed", mock.Anything, mock.Anything)
		store.AssertExpectations(t)
	})

	t.Run("entries claimed elsewhere are skipped", func(t *testing.T) {
		store := new(MockOfflineStore)
		store.On("ListPendingOfflineEntries").Return([]models.OfflineEntry{
			entry("taken", models.OfflineEntryLaborHours, validPayload),
			entry("free", models.OfflineEntryLaborHours, validPayload),
		}, nil).Once()
		store.On("ClaimOfflineEntry", "taken").Return(false, nil).Once()
		store.On("ClaimOfflineEntry", "free").Return(true, nil).Once()
		store.On("InsertLaborHour", mock.Anything).Return("lh-2", nil).Once()
		store.On("MarkOfflineEntrySynced", "free", syncTime).Return(nil).Once()

		result, err := newTestReplayer(store).Replay(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)
		assert.Equal(t, 1, result.Skipped)
		store.AssertExpectations(t)
	})

	t.Run("listing failure is returned", func(t *testing.T) {
		store := new(MockOfflineStore)
		store.On("ListPendingOfflineEntries").Return(nil, errors.New("timeout")).Once()

		_, err := newTestReplayer(store).Replay(context.Background())

		assert.ErrorContains(t, err, "listing pending offline entries")
	})

	t.Run("cancelled context stops before the next entry", func(t *testing.T) {
		store := new(MockOfflineStore)
		store.On("ListPendingOfflineEntries").Return([]models.OfflineEntry{
			entry("e1", models.OfflineEntryLaborHours, validPayload),
		}, nil).Once()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := newTestReplayer(store).Replay(ctx)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, result.Pending)
		assert.Empty(t, store.calls)
	})
}

// queueStore is an in-memory queue whose claim is atomic, the way the
// conditional UPDATE is in postgres.
type queueStore struct {
	mu       sync.Mutex
	entries  []models.OfflineEntry
	inserted []string
}

func (q *queueStore) InsertOfflineEntry(ctx context.Context, entry *models.OfflineEntry) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, *entry)
	return entry.ID, nil
}

func (q *queueStore) ListPendingOfflineEntries(ctx context.Context) ([]models.OfflineEntry, error) {
	return q.ListOfflineEntries(ctx, models.SyncPending)
}

func (q *queueStore) ListOfflineEntries(ctx context.Context, status models.SyncStatus) ([]models.OfflineEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.OfflineEntry
	for _, e := range q.entries {
		if status == "" || e.SyncStatus == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (q *queueStore) transition(id string, from, to models.SyncStatus) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].ID == id && q.entries[i].SyncStatus == from {
			q.entries[i].SyncStatus = to
			return true
		}
	}
	return false
}

func (q *queueStore) ClaimOfflineEntry(ctx context.Context, id string) (bool, error) {
	return q.transition(id, models.SyncPending, models.SyncSyncing), nil
}

func (q *queueStore) ReleaseOfflineEntry(ctx context.Context, id string) error {
	q.transition(id, models.SyncSyncing, models.SyncPending)
	return nil
}

func (q *queueStore) MarkOfflineEntrySynced(ctx context.Context, id string, syncedAt time.Time) error {
	if !q.transition(id, models.SyncSyncing, models.SyncSynced) {
		return fmt.Errorf("entry %s was not claimed", id)
	}
	return nil
}

func (q *queueStore) MarkOfflineEntryFailed(ctx context.Context, id string, reason string) error {
	if !q.transition(id, models.SyncSyncing, models.SyncFailed) {
		return fmt.Errorf("entry %s was not claimed", id)
	}
	return nil
}

func (q *queueStore) InsertLaborHour(ctx context.Context, record *models.LaborHourRecord) (string, error) {
	// Widen the window between listing and marking so the runs overlap.
	time.Sleep(time.Millisecond)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inserted = append(q.inserted, record.CheckSum)
	return fmt.Sprintf("lh-%d", len(q.inserted)), nil
}

func TestReplayer_ConcurrentRunsInsertEachEntryOnce(t *testing.T) {
	store := &queueStore{}
	const queued = 20
	for i := 0; i < queued; i++ {
		e := entry(fmt.Sprintf("e%02d", i), models.OfflineEntryLaborHours, validPayload)
		_, err := store.InsertOfflineEntry(context.Background(), &e)
		require.NoError(t, err)
	}

	const runs = 4
	results := make([]ReplayResult, runs)
	var eg errgroup.Group
	for i := 0; i < runs; i++ {
		i := i
		replayer := NewReplayer(store, logger.NewNop())
		eg.Go(func() error {
			var err error
			results[i], err = replayer.Replay(context.Background())
			return err
		})
	}
	require.NoError(t, eg.Wait())

	assert.Len(t, store.inserted, queued)
	synced, skipped := 0, 0
	for _, r := range results {
		synced += r.Synced
		skipped += r.Skipped
		assert.Zero(t, r.Failed)
	}
	assert.Equal(t, queued, synced)
	assert.GreaterOrEqual(t, synced+skipped, queued)

	done, err := store.ListOfflineEntries(context.Background(), models.SyncSynced)
	require.NoError(t, err)
	assert.Len(t, done, queued)
}
