package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"moviediscovery/searchservice/internal/domain"
)

const (
	historyCollection   = "search_history"
	defaultHistoryLimit = 10
	historyRetention    = 30 * 24 * time.Hour
)

var ErrInvalidHistoryEntry = errors.New("invalid search history entry")

type historyDoc struct {
	ID     string             `bson:"_id"`
	UserID string             `bson:"userId"`
	Query  string             `bson:"query"`
	Movie  domain.MovieRecord `bson:"movie"`
	Kind   string             `bson:"kind"`
	// Stored as a BSON date so the TTL index applies.
	Timestamp time.Time `bson:"timestamp"`
}

type HistoryRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewHistoryRepository(client *mongo.Client, dbName string) *HistoryRepository {
	return &HistoryRepository{
		collection: client.Database(dbName).Collection(historyCollection),
		now:        time.Now,
	}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}}},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(historyRetention / time.Second)),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *HistoryRepository) Save(ctx context.Context, userID, query string, movie domain.MovieRecord, kind domain.HistoryKind) (domain.HistoryEntry, error) {
	userID = strings.TrimSpace(userID)
	query = strings.TrimSpace(query)
	if userID == "" || query == "" || strings.TrimSpace(movie.Name) == "" {
		return domain.HistoryEntry{}, ErrInvalidHistoryEntry
	}
	switch kind {
	case domain.HistoryKindSingle, domain.HistoryKindSelected:
	case "":
		kind = domain.HistoryKindSelected
	default:
		return domain.HistoryEntry{}, ErrInvalidHistoryEntry
	}

	entry := domain.HistoryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Query:     query,
		Movie:     movie.Clone(),
		Kind:      kind,
		Timestamp: r.now().UTC().Truncate(time.Millisecond),
	}
	if _, err := r.collection.InsertOne(ctx, toHistoryDoc(entry)); err != nil {
		return domain.HistoryEntry{}, err
	}
	return entry, nil
}

func (r *HistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"userId": strings.TrimSpace(userID)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []historyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	entries := make([]domain.HistoryEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, fromHistoryDoc(doc))
	}
	return entries, nil
}

func (r *HistoryRepository) ClearByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"userId": strings.TrimSpace(userID)})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func toHistoryDoc(entry domain.HistoryEntry) historyDoc {
	return historyDoc{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Query:     entry.Query,
		Movie:     entry.Movie,
		Kind:      string(entry.Kind),
		Timestamp: entry.Timestamp,
	}
}

func fromHistoryDoc(doc historyDoc) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Query:     doc.Query,
		Movie:     doc.Movie,
		Kind:      domain.HistoryKind(doc.Kind),
		Timestamp: doc.Timestamp.UTC(),
	}
}
