package mongo

import (
	"context"
	"time"

	"github.com/chromatech/advisor/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const TraceCollection = "chat_traces"

type TraceRepository interface {
	Insert(ctx context.Context, t *models.ChatTrace) error
	ListByConversation(ctx context.Context, conversationID string, limit int64) ([]models.ChatTrace, error)
}

type traceRepo struct {
	col *mongo.Collection
	ttl time.Duration
}

func NewTraceRepo(db *mongo.Database, ttl time.Duration) TraceRepository {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &traceRepo{col: db.Collection(TraceCollection), ttl: ttl}
}

func (r *traceRepo) Insert(ctx context.Context, t *models.ChatTrace) error {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	if t.ExpiresAt.IsZero() {
		t.ExpiresAt = t.Timestamp.Add(r.ttl)
	}
	_, err := r.col.InsertOne(ctx, t)
	return err
}

func (r *traceRepo) ListByConversation(ctx context.Context, conversationID string, limit int64) ([]models.ChatTrace, error) {
	if limit <= 0 {
		limit = 100
	}

	cur, err := r.col.Find(ctx,
		bson.M{"conversation_id": conversationID},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ChatTrace
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
