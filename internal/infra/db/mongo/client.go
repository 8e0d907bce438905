package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colCycles        = "billing_cycles"
	colRecords       = "billing_records"
	colLedger        = "ledger_entries"
	colLocations     = "dir_locations"
	colRooms         = "dir_rooms"
	colUsers         = "dir_users"
	colNotifications = "notifications"
)

type Client struct {
	DB *mongo.Database
}

func New(uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on for lookups and
// for the uniqueness rules of cycles and records.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colCycles: {
			{Keys: bson.D{{Key: "location_id", Value: 1}, {Key: "month_key", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "anchor_date", Value: -1}, {Key: "created_at", Value: -1}}},
		},
		colRecords: {
			{Keys: bson.D{{Key: "cycle_id", Value: 1}, {Key: "room_id", Value: 1}}},
			{Keys: bson.D{{Key: "active_key", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		},
		colLedger: {
			{Keys: bson.D{{Key: "payer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "location_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colRooms: {
			{Keys: bson.D{{Key: "location_id", Value: 1}, {Key: "occupied", Value: 1}}},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
	for name, models := range specs {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
