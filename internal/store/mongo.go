package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/code735/boilerplate-project-exercisetracker/internal/models"
)

type userDoc struct {
	ID       primitive.ObjectID   `bson:"_id,omitempty"`
	Username string               `bson:"username"`
	Log      []primitive.ObjectID `bson:"log"`
}

type exerciseDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Description string             `bson:"description"`
	Duration    float64            `bson:"duration"`
	Date        time.Time          `bson:"date"`
}

// MongoStore keeps users and exercises in two MongoDB collections. A user's
// log holds exercise ObjectIDs, resolved with a second query on read.
type MongoStore struct {
	users     *mongo.Collection
	exercises *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		users:     db.Collection("users"),
		exercises: db.Collection("exercises"),
	}
}

func (s *MongoStore) CreateUser(ctx context.Context, username string) (*models.User, error) {
	// log must start as an empty array, $push fails on null
	doc := userDoc{Username: username, Log: []primitive.ObjectID{}}
	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("mongo insert user: %w", err)
	}
	oid := res.InsertedID.(primitive.ObjectID)
	return &models.User{ID: oid.Hex(), Username: username}, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().
		SetProjection(bson.M{"username": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode users: %w", err)
	}
	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, models.User{ID: d.ID.Hex(), Username: d.Username})
	}
	return users, nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	doc, err := s.findUser(ctx, oid)
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// AddExercise checks the user first, inserts the exercise and then pushes its
// id onto the user's log. If the push fails or matches nothing the exercise
// is deleted again.
func (s *MongoStore) AddExercise(ctx context.Context, userID string, ex *models.Exercise) (*models.User, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrNotFound
	}
	user, err := s.findUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	doc := exerciseDoc{
		ID:          primitive.NewObjectID(),
		Description: ex.Description,
		Duration:    ex.Duration,
		Date:        ex.Date,
	}
	if _, err := s.exercises.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("mongo insert exercise: %w", err)
	}

	res, err := s.users.UpdateByID(ctx, uid, bson.M{"$push": bson.M{"log": doc.ID}})
	if err == nil && res.MatchedCount == 0 {
		err = ErrNotFound
	} else if err != nil {
		err = fmt.Errorf("mongo push log: %w", err)
	}
	if err != nil {
		s.removeExercise(ctx, doc.ID)
		return nil, err
	}

	ex.ID = doc.ID.Hex()
	m := user.toModel()
	m.Log = append(m.Log, ex.ID)
	return m, nil
}

// GetExercises resolves ids in order. Malformed or dangling ids are skipped.
func (s *MongoStore) GetExercises(ctx context.Context, ids []string) ([]models.Exercise, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []models.Exercise{}, nil
	}

	cur, err := s.exercises.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("mongo find exercises: %w", err)
	}
	defer cur.Close(ctx)

	var docs []exerciseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode exercises: %w", err)
	}
	byID := make(map[string]models.Exercise, len(docs))
	for _, d := range docs {
		byID[d.ID.Hex()] = models.Exercise{
			ID:          d.ID.Hex(),
			Description: d.Description,
			Duration:    d.Duration,
			Date:        d.Date,
		}
	}
	return orderByIDs(ids, byID), nil
}

func (s *MongoStore) findUser(ctx context.Context, oid primitive.ObjectID) (*userDoc, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo find user: %w", err)
	}
	return &doc, nil
}

// removeExercise runs even if the request was cancelled.
func (s *MongoStore) removeExercise(ctx context.Context, id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.exercises.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		log.Printf("mongo: orphaned exercise %s left behind: %v", id.Hex(), err)
	}
}

func (d *userDoc) toModel() *models.User {
	u := &models.User{ID: d.ID.Hex(), Username: d.Username, Log: make([]string, 0, len(d.Log))}
	for _, oid := range d.Log {
		u.Log = append(u.Log, oid.Hex())
	}
	return u
}
