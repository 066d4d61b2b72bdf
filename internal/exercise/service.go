package exercise

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/code735/boilerplate-project-exercisetracker/internal/models"
	"github.com/code735/boilerplate-project-exercisetracker/internal/store"
)

// Store defines the persistence the service needs. Implementations return
// store.ErrNotFound for unknown ids.
type Store interface {
	CreateUser(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	// AddExercise persists ex, sets ex.ID and appends it to the user's log.
	// Nothing may remain written when it returns an error.
	AddExercise(ctx context.Context, userID string, ex *models.Exercise) (*models.User, error)
	// GetExercises returns the exercises for ids in the same order,
	// skipping ids that no longer resolve.
	GetExercises(ctx context.Context, ids []string) ([]models.Exercise, error)
}

// Cache defines the optional read cache. Version and Invalidate manage a
// per-key generation; data is stored under keys that embed it.
type Cache interface {
	Version(ctx context.Context, key string) (int64, bool)
	Invalidate(ctx context.Context, key string)
	GetJSON(ctx context.Context, key string, v any) bool
	SetJSON(ctx context.Context, key string, v any)
}

const usersKey = "users:all"

func logKey(userID string) string {
	return "users:" + userID + ":log"
}

type noCache struct{}

func (noCache) Version(context.Context, string) (int64, bool) { return 0, false }
func (noCache) Invalidate(context.Context, string)            {}
func (noCache) GetJSON(context.Context, string, any) bool     { return false }
func (noCache) SetJSON(context.Context, string, any)          {}

// Service implements the exercise log operations on top of a Store.
type Service struct {
	store Store
	cache Cache
	now   func() time.Time
}

func NewService(s Store, c Cache) *Service {
	if c == nil {
		c = noCache{}
	}
	return &Service{store: s, cache: c, now: time.Now}
}

// CreateUser inserts a user with an empty log. Usernames are not unique.
func (s *Service) CreateUser(ctx context.Context, username string) (*models.UserResponse, error) {
	u, err := s.store.CreateUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	s.cache.Invalidate(ctx, usersKey)
	return &models.UserResponse{ID: u.ID, Username: u.Username}, nil
}

// cacheKey returns the data key for base at its current generation, or ""
// when caching is unavailable. It must be taken before reading the store.
func (s *Service) cacheKey(ctx context.Context, base string) string {
	ver, ok := s.cache.Version(ctx, base)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:v%d", base, ver)
}

func (s *Service) ListUsers(ctx context.Context) ([]models.UserResponse, error) {
	key := s.cacheKey(ctx, usersKey)
	var out []models.UserResponse
	if key != "" && s.cache.GetJSON(ctx, key, &out) {
		return out, nil
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreRead, err)
	}
	out = make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, models.UserResponse{ID: u.ID, Username: u.Username})
	}
	if key != "" {
		s.cache.SetJSON(ctx, key, out)
	}
	return out, nil
}

// AddExercise logs an exercise for userID. req must already be validated.
// An omitted date means now.
func (s *Service) AddExercise(ctx context.Context, userID string, req *models.AddExerciseRequest) (*models.ExerciseResponse, error) {
	date := s.now()
	if req.Date != "" {
		d, err := models.ParseDate(req.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		date = d
	}

	ex := &models.Exercise{
		Description: req.Description,
		Duration:    *req.Duration,
		Date:        date,
	}
	u, err := s.store.AddExercise(ctx, userID, ex)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	s.cache.Invalidate(ctx, logKey(userID))

	return &models.ExerciseResponse{
		ID:          u.ID,
		Username:    u.Username,
		Description: ex.Description,
		Duration:    ex.Duration,
		Date:        models.FormatDate(ex.Date),
	}, nil
}

// GetLog resolves the user's log in insertion order. Count is the number of
// resolved entries.
func (s *Service) GetLog(ctx context.Context, userID string) (*models.LogResponse, error) {
	key := s.cacheKey(ctx, logKey(userID))
	var cached models.LogResponse
	if key != "" && s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreRead, err)
	}

	exs, err := s.store.GetExercises(ctx, u.Log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreRead, err)
	}
	if len(exs) != len(u.Log) {
		log.Printf("user %s: %d of %d logged exercises no longer exist", u.ID, len(u.Log)-len(exs), len(u.Log))
	}

	resp := &models.LogResponse{
		ID:       u.ID,
		Username: u.Username,
		Count:    len(exs),
		Log:      make([]models.LogEntry, 0, len(exs)),
	}
	for _, ex := range exs {
		resp.Log = append(resp.Log, models.LogEntry{
			Description: ex.Description,
			Duration:    ex.Duration,
			Date:        models.FormatDate(ex.Date),
		})
	}
	if key != "" {
		s.cache.SetJSON(ctx, key, resp)
	}
	return resp, nil
}
