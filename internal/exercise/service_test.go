package exercise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code735/boilerplate-project-exercisetracker/internal/models"
	"github.com/code735/boilerplate-project-exercisetracker/internal/store"
)

var errBackend = errors.New("connection reset")

// flakyStore fails the operations named in fail.
type flakyStore struct {
	*store.MemoryStore
	fail map[string]bool
}

func (f *flakyStore) CreateUser(ctx context.Context, username string) (*models.User, error) {
	if f.fail["CreateUser"] {
		return nil, errBackend
	}
	return f.MemoryStore.CreateUser(ctx, username)
}

func (f *flakyStore) ListUsers(ctx context.Context) ([]models.User, error) {
	if f.fail["ListUsers"] {
		return nil, errBackend
	}
	return f.MemoryStore.ListUsers(ctx)
}

func (f *flakyStore) AddExercise(ctx context.Context, userID string, ex *models.Exercise) (*models.User, error) {
	if f.fail["AddExercise"] {
		return nil, errBackend
	}
	return f.MemoryStore.AddExercise(ctx, userID, ex)
}

func (f *flakyStore) GetExercises(ctx context.Context, ids []string) ([]models.Exercise, error) {
	if f.fail["GetExercises"] {
		return nil, errBackend
	}
	return f.MemoryStore.GetExercises(ctx, ids)
}

// mapCache is an in-process Cache.
type mapCache struct {
	mu   sync.Mutex
	gen  map[string]int64
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{gen: map[string]int64{}, data: map[string][]byte{}}
}

func (c *mapCache) Version(_ context.Context, key string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[key], true
}

func (c *mapCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[key]++
}

func (c *mapCache) GetJSON(_ context.Context, key string, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return ok && json.Unmarshal(b, v) == nil
}

func (c *mapCache) SetJSON(_ context.Context, key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key], _ = json.Marshal(v)
}

// pausingStore holds the first ListUsers or GetExercises call after the
// backend read returns, until release is closed.
type pausingStore struct {
	*store.MemoryStore
	pause   string
	read    chan struct{}
	release chan struct{}
}

func newPausingStore(op string) *pausingStore {
	return &pausingStore{
		MemoryStore: store.NewMemoryStore(),
		pause:       op,
		read:        make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (p *pausingStore) hold(op string) {
	if p.pause != op {
		return
	}
	p.pause = ""
	close(p.read)
	<-p.release
}

func (p *pausingStore) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := p.MemoryStore.ListUsers(ctx)
	p.hold("ListUsers")
	return users, err
}

func (p *pausingStore) GetExercises(ctx context.Context, ids []string) ([]models.Exercise, error) {
	exs, err := p.MemoryStore.GetExercises(ctx, ids)
	p.hold("GetExercises")
	return exs, err
}

func ptr(f float64) *float64 { return &f }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestService_CreateAndListUsers(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, "fcc")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "fcc", u.Username)

	// usernames are not unique, empty ones are accepted
	_, err = svc.CreateUser(ctx, "fcc")
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "")
	require.NoError(t, err)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, *u, users[0])
}

func TestService_ListUsersEmpty(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil)

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestService_AddExerciseAndLog(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil)
	ctx := context.Background()
	u, _ := svc.CreateUser(ctx, "fcc")

	resp, err := svc.AddExercise(ctx, u.ID, &models.AddExerciseRequest{
		Description: "run", Duration: ptr(30), Date: "2023-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExerciseResponse{
		ID: u.ID, Username: "fcc", Description: "run", Duration: 30, Date: "Sun Jan 01 2023",
	}, *resp)

	got, err := svc.GetLog(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LogResponse{
		ID: u.ID, Username: "fcc", Count: 1,
		Log: []models.LogEntry{{Description: "run", Duration: 30, Date: "Sun Jan 01 2023"}},
	}, *got)
}

func TestService_AddExerciseDefaultsDateToNow(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil)
	svc.now = fixedClock(time.Date(2024, time.January, 1, 22, 15, 0, 0, time.UTC))
	ctx := context.Background()
	u, _ := svc.CreateUser(ctx, "fcc")

	resp, err := svc.AddExercise(ctx, u.ID, &models.AddExerciseRequest{Description: "yoga", Duration: ptr(15)})
	require.NoError(t, err)
	assert.Equal(t, "Mon Jan 01 2024", resp.Date)
}

func TestService_ExplicitDateIgnoresTimeOfDay(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil)
	ctx := context.Background()
	u, _ := svc.CreateUser(ctx, "fcc")

	resp, err := svc.AddExercise(ctx, u.ID, &models.AddExerciseRequest{
		Description: "row", Duration: ptr(20), Date: "2023-03-05T23:59:59Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sun Mar 05 2023", resp.Date)
}

func TestService_AddExerciseUnknownUser(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := NewService(mem, nil)
	ctx := context.Background()
	other, _ := svc.CreateUser(ctx, "other")

	_, err := svc.AddExercise(ctx, "does-not-exist", &models.AddExerciseRequest{Description: "run", Duration: ptr(30)})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, mem.ExerciseIDs(), "no orphaned exercise")

	got, err := svc.GetLog(ctx, other.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Count)
	assert.Empty(t, got.Log)
}

func TestService_AddExerciseBadDate(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil)
	ctx := context.Background()
	u, _ := svc.CreateUser(ctx, "fcc")

	_, err := svc.AddExercise(ctx, u.ID, &models.AddExerciseRequest{Description: "run", Duration: ptr(1), Date: "someday"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestService_GetLogUnknownUser(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil)

	_, err := svc.GetLog(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_LogCountMatchesEntries(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil)
	ctx := context.Background()
	u, _ := svc.CreateUser(ctx, "fcc")

	for i := 1; i <= 5; i++ {
		_, err := svc.AddExercise(ctx, u.ID, &models.AddExerciseRequest{
			Description: fmt.Sprintf("set %d", i),
			Duration:    ptr(float64(i * 10)),
			Date:        fmt.Sprintf("2023-0%d-01", 6-i),
		})
		require.NoError(t, err)

		got, err := svc.GetLog(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, i, got.Count)
		assert.Len(t, got.Log, got.Count)
	}

	got, _ := svc.GetLog(ctx, u.ID)
	assert.Equal(t, "set 1", got.Log[0].Description, "insertion order, not date order")
	assert.Equal(t, "set 5", got.Log[4].Description)
}

func TestService_StoreFailures(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		fail string
		call func(*Service, string) error
		want error
	}{
		{"create user", "CreateUser", func(s *Service, _ string) error {
			_, err := s.CreateUser(ctx, "x")
			return err
		}, ErrStoreWrite},
		{"list users", "ListUsers", func(s *Service, _ string) error {
			_, err := s.ListUsers(ctx)
			return err
		}, ErrStoreRead},
		{"add exercise", "AddExercise", func(s *Service, id string) error {
			_, err := s.AddExercise(ctx, id, &models.AddExerciseRequest{Description: "run", Duration: ptr(1)})
			return err
		}, ErrStoreWrite},
		{"get log", "GetExercises", func(s *Service, id string) error {
			_, err := s.GetLog(ctx, id)
			return err
		}, ErrStoreRead},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := &flakyStore{MemoryStore: store.NewMemoryStore(), fail: map[string]bool{}}
			svc := NewService(fs, nil)
			u, err := svc.CreateUser(ctx, "fcc")
			require.NoError(t, err)

			fs.fail[tc.fail] = true
			err = tc.call(svc, u.ID)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, errBackend)
		})
	}
}

func TestService_CacheInvalidation(t *testing.T) {
	cache := newMapCache()
	svc := NewService(store.NewMemoryStore(), cache)
	ctx := context.Background()

	u, _ := svc.CreateUser(ctx, "fcc")
	users, _ := svc.ListUsers(ctx)
	require.Len(t, users, 1)
	assert.Contains(t, cache.data, usersKey+":v1")

	_, _ = svc.CreateUser(ctx, "second")
	assert.Equal(t, int64(2), cache.gen[usersKey])
	users, _ = svc.ListUsers(ctx)
	assert.Len(t, users, 2)

	_, err := svc.GetLog(ctx, u.ID)
	require.NoError(t, err)
	assert.Contains(t, cache.data, logKey(u.ID)+":v0")

	_, err = svc.AddExercise(ctx, u.ID, &models.AddExerciseRequest{Description: "run", Duration: ptr(30)})
	require.NoError(t, err)

	got, _ := svc.GetLog(ctx, u.ID)
	assert.Equal(t, 1, got.Count)
}

func TestService_ListUsersOverlappingCreateUser(t *testing.T) {
	cache := newMapCache()
	ps := newPausingStore("ListUsers")
	svc := NewService(ps, cache)
	ctx := context.Background()

	done := make(chan []models.UserResponse)
	go func() {
		users, err := svc.ListUsers(ctx)
		assert.NoError(t, err)
		done <- users
	}()

	<-ps.read
	created, err := svc.CreateUser(ctx, "fcc")
	require.NoError(t, err)
	close(ps.release)
	assert.Empty(t, <-done, "read started before the write")

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1, "stale fill must not outlive the write")
	assert.Equal(t, *created, users[0])
}

func TestService_GetLogOverlappingAddExercise(t *testing.T) {
	cache := newMapCache()
	ps := newPausingStore("GetExercises")
	svc := NewService(ps, cache)
	ctx := context.Background()
	u, err := svc.CreateUser(ctx, "fcc")
	require.NoError(t, err)

	done := make(chan *models.LogResponse)
	go func() {
		got, err := svc.GetLog(ctx, u.ID)
		assert.NoError(t, err)
		done <- got
	}()

	<-ps.read
	_, err = svc.AddExercise(ctx, u.ID, &models.AddExerciseRequest{Description: "run", Duration: ptr(30), Date: "2023-01-01"})
	require.NoError(t, err)
	close(ps.release)
	assert.Zero(t, (<-done).Count)

	got, err := svc.GetLog(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, []models.LogEntry{{Description: "run", Duration: 30, Date: "Sun Jan 01 2023"}}, got.Log)
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"duration": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestService_ServesLogFromCache(t *testing.T) {
	cache := newMapCache()
	fs := &flakyStore{MemoryStore: store.NewMemoryStore(), fail: map[string]bool{}}
	svc := NewService(fs, cache)
	ctx := context.Background()
	u, _ := svc.CreateUser(ctx, "fcc")

	_, err := svc.GetLog(ctx, u.ID)
	require.NoError(t, err)

	fs.fail["GetExercises"] = true
	got, err := svc.GetLog(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "fcc", got.Username)
}
