package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/code735/boilerplate-project-exercisetracker/internal/models"
)

// MemoryStore keeps users and exercises in process memory. It backs
// STORE_DRIVER=memory and the service tests.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]*models.User
	exercises map[string]models.Exercise
	order     []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*models.User),
		exercises: make(map[string]models.Exercise),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, username string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &models.User{ID: uuid.New().String(), Username: username}
	s.users[u.ID] = u
	s.order = append(s.order, u.ID)
	return copyUser(u), nil
}

// ListUsers returns users in creation order.
func (s *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, *copyUser(s.users[id]))
	}
	return users, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

// AddExercise stores ex and appends it to the user's log under one lock, so
// nothing is written when the user does not exist.
func (s *MemoryStore) AddExercise(ctx context.Context, userID string, ex *models.Exercise) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	ex.ID = uuid.New().String()
	s.exercises[ex.ID] = *ex
	u.Log = append(u.Log, ex.ID)
	return copyUser(u), nil
}

func (s *MemoryStore) GetExercises(ctx context.Context, ids []string) ([]models.Exercise, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return orderByIDs(ids, s.exercises), nil
}

// ExerciseIDs lists every stored exercise id, attached or not.
func (s *MemoryStore) ExerciseIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.exercises))
	for id := range s.exercises {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Log = append([]string(nil), u.Log...)
	return &c
}
