package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cspace/internal/domain/shared/fault"
)

// saveVersioned upserts doc only when the stored version still equals held.
// A stale writer either matches nothing or collides on _id during the upsert.
func saveVersioned(ctx context.Context, col *mongo.Collection, id string, held int64, doc any) error {
	filter := bson.M{"_id": id, "version": held}
	res, err := col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fault.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return fault.ErrConcurrentUpdate
	}
	return nil
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter any, notFound error) (T, error) {
	var doc T
	if err := col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return doc, notFound
		}
		return doc, err
	}
	return doc, nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var docs []T
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func timestampToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// rangeFilter builds a half-open millisecond filter; zero bounds are open.
func rangeFilter(from, to time.Time) bson.M {
	out := bson.M{}
	if !from.IsZero() {
		out["$gte"] = from.UnixMilli()
	}
	if !to.IsZero() {
		out["$lt"] = to.UnixMilli()
	}
	return out
}
