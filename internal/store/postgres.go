package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/code735/boilerplate-project-exercisetracker/internal/models"
)

// PostgresStore keeps users and exercises in PostgreSQL. The log is a
// separate table ordered by a serial column, and AddExercise runs in one
// transaction.
type PostgresStore struct {
	db DB
}

// DB is the part of *pgxpool.Pool the store uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id       UUID PRIMARY KEY,
			username TEXT NOT NULL,
			seq      BIGSERIAL
		);
		CREATE TABLE IF NOT EXISTS exercises (
			id          UUID PRIMARY KEY,
			description TEXT NOT NULL,
			duration    DOUBLE PRECISION NOT NULL,
			date        TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS user_logs (
			seq         BIGSERIAL PRIMARY KEY,
			user_id     UUID NOT NULL REFERENCES users(id),
			exercise_id UUID NOT NULL REFERENCES exercises(id)
		);
		CREATE INDEX IF NOT EXISTS user_logs_user_id_idx ON user_logs (user_id, seq);
	`)
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, username string) (*models.User, error) {
	id := uuid.New()
	if _, err := s.db.Exec(ctx,
		`INSERT INTO users (id, username) VALUES ($1, $2)`, id, username,
	); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &models.User{ID: id.String(), Username: username}, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.Query(ctx, `SELECT id::text, username FROM users ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.User, error) {
		var u models.User
		err := row.Scan(&u.ID, &u.Username)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return getUser(ctx, s.db, uid, false)
}

// AddExercise locks the user row, inserts the exercise and appends it to the
// log. A missing user rolls everything back.
func (s *PostgresStore) AddExercise(ctx context.Context, userID string, ex *models.Exercise) (*models.User, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrNotFound
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	u, err := appendExercise(ctx, tx, uid, ex)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return nil, errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	ex.ID = u.Log[len(u.Log)-1]
	return u, nil
}

func appendExercise(ctx context.Context, tx pgx.Tx, uid uuid.UUID, ex *models.Exercise) (*models.User, error) {
	u, err := getUser(ctx, tx, uid, true)
	if err != nil {
		return nil, err
	}
	exID := uuid.New()
	if _, err := tx.Exec(ctx,
		`INSERT INTO exercises (id, description, duration, date) VALUES ($1, $2, $3, $4)`,
		exID, ex.Description, ex.Duration, ex.Date,
	); err != nil {
		return nil, fmt.Errorf("insert exercise: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO user_logs (user_id, exercise_id) VALUES ($1, $2)`, uid, exID,
	); err != nil {
		return nil, fmt.Errorf("append log: %w", err)
	}
	u.Log = append(u.Log, exID.String())
	return u, nil
}

// GetExercises looks ids up by primary key. Ids that are not UUIDs cannot
// exist and are skipped like any other missing id.
func (s *PostgresStore) GetExercises(ctx context.Context, ids []string) ([]models.Exercise, error) {
	uids := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if uid, err := uuid.Parse(id); err == nil {
			uids = append(uids, uid)
		}
	}
	if len(uids) == 0 {
		return []models.Exercise{}, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT id::text, description, duration, date FROM exercises WHERE id = ANY($1::uuid[])`, uids,
	)
	if err != nil {
		return nil, fmt.Errorf("get exercises: %w", err)
	}
	found, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Exercise, error) {
		var e models.Exercise
		err := row.Scan(&e.ID, &e.Description, &e.Duration, &e.Date)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("get exercises: %w", err)
	}
	byID := make(map[string]models.Exercise, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}
	return orderByIDs(ids, byID), nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getUser(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*models.User, error) {
	query := `SELECT id::text, username FROM users WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var u models.User
	if err := q.QueryRow(ctx, query, id).Scan(&u.ID, &u.Username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT exercise_id::text FROM user_logs WHERE user_id = $1 ORDER BY seq`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("get user log: %w", err)
	}
	u.Log, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("get user log: %w", err)
	}
	return &u, nil
}
