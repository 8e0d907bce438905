package mongo

import (
	"context"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cspace/internal/domain/directory"
	"cspace/internal/domain/notifications"
)

type NotificationRepository struct {
	col *mongo.Collection
}

type notificationDocument struct {
	ID         string `bson:"_id"`
	UserID     string `bson:"user_id"`
	LocationID string `bson:"location_id"`
	Title      string `bson:"title"`
	Body       string `bson:"body"`
	Kind       string `bson:"kind"`
	DataID     string `bson:"data_id"`
	AdminOnly  bool   `bson:"admin_only"`
	Read       bool   `bson:"read"`
	CreatedAt  int64  `bson:"created_at"`
}

func (r NotificationRepository) Add(ctx context.Context, items ...*notifications.Notification) error {
	if len(items) == 0 {
		return nil
	}
	docs := lo.Map(items, func(n *notifications.Notification, _ int) any {
		return notificationDocument{
			ID:         string(n.ID),
			UserID:     string(n.UserID),
			LocationID: string(n.LocationID),
			Title:      n.Title,
			Body:       n.Body,
			Kind:       string(n.Kind),
			DataID:     n.DataID,
			AdminOnly:  n.AdminOnly,
			Read:       n.Read,
			CreatedAt:  millis(n.CreatedAt),
		}
	})
	_, err := r.col.InsertMany(ctx, docs)
	return err
}

func (r NotificationRepository) ListByUser(ctx context.Context, user directory.UserID, limit int) ([]*notifications.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	docs, err := findAll[notificationDocument](ctx, r.col, bson.M{"user_id": string(user)}, opts)
	if err != nil {
		return nil, err
	}
	return lo.Map(docs, func(d notificationDocument, _ int) *notifications.Notification {
		return &notifications.Notification{
			ID:         notifications.ID(d.ID),
			UserID:     directory.UserID(d.UserID),
			LocationID: directory.LocationID(d.LocationID),
			Title:      d.Title,
			Body:       d.Body,
			Kind:       notifications.Kind(d.Kind),
			DataID:     d.DataID,
			AdminOnly:  d.AdminOnly,
			Read:       d.Read,
			CreatedAt:  timestampToTime(d.CreatedAt),
		}
	}), nil
}
