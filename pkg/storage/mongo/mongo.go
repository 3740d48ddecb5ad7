package mongo

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"listens/pkg/storage"
)

const collEntries = "entries"

type Store struct {
	client *mongo.Client
	dbName string
}

func New(ctx context.Context, conf *Config) (*Store, error) {
	opt := conf.Options()
	client, err := mongo.Connect(ctx, opt)
	if err != nil {
		return nil, err
	}

	s := Store{client: client, dbName: conf.DBName}
	s.createCollection(ctx, collEntries)

	return &s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) {
	s.client.Disconnect(ctx)
}

// entryDoc mirrors storage.Entry with the UUID flattened to a string so the
// document is readable in mongosh and the driver needs no custom codec.
type entryDoc struct {
	ID        string    `bson:"_id"`
	LoggedAt  time.Time `bson:"logged_at"`
	Latitude  *float64  `bson:"latitude"`
	Longitude *float64  `bson:"longitude"`
	Place     string    `bson:"place"`
}

func toDoc(e storage.Entry) entryDoc {
	return entryDoc{
		ID:        e.ID.String(),
		LoggedAt:  e.LoggedAt,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Place:     e.Place,
	}
}

func (d entryDoc) toEntry() storage.Entry {
	return storage.Entry{
		ID:        uuid.FromStringOrNil(d.ID),
		LoggedAt:  d.LoggedAt.UTC(),
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		Place:     d.Place,
	}
}

// AddEntry inserts a new listen entry into the entries collection.
// If the entry's ID or LoggedAt are zero values, they are generated here.
func (s *Store) AddEntry(ctx context.Context, entry storage.Entry) (uuid.UUID, error) {
	if entry.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return uuid.Nil, err
		}
		entry.ID = id
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now().UTC()
	}

	coll := s.client.Database(s.dbName).Collection(collEntries)
	_, err := coll.InsertOne(ctx, toDoc(entry))
	if err != nil {
		return uuid.Nil, err
	}

	return entry.ID, nil
}

// Entries returns one page of entries sorted by logged time descending and
// the total number of pages for the given limit.
func (s *Store) Entries(ctx context.Context, page, limit int) ([]storage.Entry, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}

	coll := s.client.Database(s.dbName).Collection(collEntries)
	opts := options.Find().
		SetSort(bson.D{{Key: "logged_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}

	var docs []entryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}

	entries := make([]storage.Entry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, d.toEntry())
	}

	total, err := s.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	numPages := (total + limit - 1) / limit
	return entries, numPages, nil
}

// AllEntries returns every stored entry sorted by logged time descending.
func (s *Store) AllEntries(ctx context.Context) ([]storage.Entry, error) {
	coll := s.client.Database(s.dbName).Collection(collEntries)
	opts := options.Find().SetSort(bson.D{{Key: "logged_at", Value: -1}})

	cur, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}

	var docs []entryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	entries := make([]storage.Entry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, d.toEntry())
	}

	return entries, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	coll := s.client.Database(s.dbName).Collection(collEntries)
	cnt, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, err
	}

	return int(cnt), nil
}

// createCollection creates a collection with the given name in the database
// if it doesn't already exist.
func (s *Store) createCollection(ctx context.Context, collName string) error {
	collExists, err := collectionExists(ctx, s.client.Database(s.dbName), collName)
	if err != nil {
		return err
	}

	if !collExists {
		err := s.client.Database(s.dbName).CreateCollection(ctx, collName)
		if err != nil {
			return err
		}
	}

	return nil
}

// collectionExists checks if a collection with the given name exists in the database.
func collectionExists(ctx context.Context, db *mongo.Database, collName string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return false, err
	}

	for _, name := range names {
		if name == collName {
			return true, nil
		}
	}

	return false, nil
}
