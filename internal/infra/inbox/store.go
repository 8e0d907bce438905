package inbox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cspace/internal/app/policies"
)

// Store records message ids per consumer once their effects are committed, so
// redelivered webhooks and broker messages are handled once.
type Store struct {
	col      *mongo.Collection
	consumer string
}

func NewStore(db *mongo.Database, consumer string) *Store {
	col := db.Collection("app_inbox")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return &Store{col: col, consumer: consumer}
}

func (s *Store) Processed(ctx context.Context, eventID string) (bool, error) {
	err := s.col.FindOne(ctx, s.filter(eventID)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return false, nil
	default:
		return false, err
	}
}

// Mark upserts so a concurrent redelivery that also succeeded is not an error.
func (s *Store) Mark(ctx context.Context, eventID string) error {
	update := bson.M{"$setOnInsert": bson.M{"processed_at": time.Now().UTC()}}
	_, err := s.col.UpdateOne(ctx, s.filter(eventID), update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (s *Store) filter(eventID string) bson.M {
	return bson.M{"event_id": eventID, "consumer": s.consumer}
}

var _ policies.Inbox = (*Store)(nil)
