package mongo

import (
	"context"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cspace/internal/domain/directory"
)

type LocationRepository struct {
	col *mongo.Collection
}

type locationDocument struct {
	ID                string   `bson:"_id"`
	Name              string   `bson:"name"`
	Currency          string   `bson:"currency"`
	ElectricUnitPrice int64    `bson:"electric_unit_price"`
	PayoutDestination string   `bson:"payout_destination,omitempty"`
	TotalRevenue      int64    `bson:"total_revenue"`
	AdminIDs          []string `bson:"admin_ids"`
	UpdatedAt         int64    `bson:"updated_at"`
	Version           int64    `bson:"version"`
}

func (r LocationRepository) ByID(ctx context.Context, id directory.LocationID) (*directory.Location, error) {
	doc, err := findOne[locationDocument](ctx, r.col, bson.M{"_id": string(id)}, directory.ErrLocationNotFound)
	if err != nil {
		return nil, err
	}
	return &directory.Location{
		ID:                directory.LocationID(doc.ID),
		Name:              doc.Name,
		Currency:          doc.Currency,
		ElectricUnitPrice: doc.ElectricUnitPrice,
		PayoutDestination: doc.PayoutDestination,
		TotalRevenue:      doc.TotalRevenue,
		AdminIDs:          toUserIDs(doc.AdminIDs),
		UpdatedAt:         timestampToTime(doc.UpdatedAt),
		Version:           doc.Version,
	}, nil
}

func (r LocationRepository) Save(ctx context.Context, loc *directory.Location) error {
	doc := locationDocument{
		ID:                string(loc.ID),
		Name:              loc.Name,
		Currency:          loc.Currency,
		ElectricUnitPrice: loc.ElectricUnitPrice,
		PayoutDestination: loc.PayoutDestination,
		TotalRevenue:      loc.TotalRevenue,
		AdminIDs:          fromUserIDs(loc.AdminIDs),
		UpdatedAt:         millis(loc.UpdatedAt),
		Version:           loc.Version + 1,
	}
	if err := saveVersioned(ctx, r.col, doc.ID, loc.Version, doc); err != nil {
		return err
	}
	loc.Version = doc.Version
	return nil
}

type RoomRepository struct {
	col *mongo.Collection
}

type roomDocument struct {
	ID         string   `bson:"_id"`
	LocationID string   `bson:"location_id"`
	Name       string   `bson:"name"`
	BasePrice  int64    `bson:"base_price"`
	Occupied   bool     `bson:"occupied"`
	Occupants  []string `bson:"occupants"`
}

func (d roomDocument) toDomain() *directory.Room {
	return &directory.Room{
		ID:         directory.RoomID(d.ID),
		LocationID: directory.LocationID(d.LocationID),
		Name:       d.Name,
		BasePrice:  d.BasePrice,
		Occupied:   d.Occupied,
		Occupants:  toUserIDs(d.Occupants),
	}
}

func (r RoomRepository) ByID(ctx context.Context, id directory.RoomID) (*directory.Room, error) {
	doc, err := findOne[roomDocument](ctx, r.col, bson.M{"_id": string(id)}, directory.ErrRoomNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r RoomRepository) ListOccupied(ctx context.Context, location directory.LocationID) ([]*directory.Room, error) {
	filter := bson.M{"location_id": string(location), "occupied": true}
	docs, err := findAll[roomDocument](ctx, r.col, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return lo.Map(docs, func(d roomDocument, _ int) *directory.Room { return d.toDomain() }), nil
}

func (r RoomRepository) Save(ctx context.Context, room *directory.Room) error {
	doc := roomDocument{
		ID:         string(room.ID),
		LocationID: string(room.LocationID),
		Name:       room.Name,
		BasePrice:  room.BasePrice,
		Occupied:   room.Occupied,
		Occupants:  fromUserIDs(room.Occupants),
	}
	_, err := r.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

type UserRepository struct {
	col *mongo.Collection
}

type userDocument struct {
	ID         string `bson:"_id"`
	Name       string `bson:"name"`
	Email      string `bson:"email"`
	PushToken  string `bson:"push_token,omitempty"`
	LocationID string `bson:"location_id"`
	Role       string `bson:"role"`
}

func (d userDocument) toDomain() *directory.User {
	return &directory.User{
		ID:         directory.UserID(d.ID),
		Name:       d.Name,
		Email:      d.Email,
		PushToken:  d.PushToken,
		LocationID: directory.LocationID(d.LocationID),
		Role:       directory.Role(d.Role),
	}
}

func (r UserRepository) ByID(ctx context.Context, id directory.UserID) (*directory.User, error) {
	doc, err := findOne[userDocument](ctx, r.col, bson.M{"_id": string(id)}, directory.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

// ByIDs skips ids that do not resolve.
func (r UserRepository) ByIDs(ctx context.Context, ids []directory.UserID) ([]*directory.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	filter := bson.M{"_id": bson.M{"$in": fromUserIDs(lo.Uniq(ids))}}
	docs, err := findAll[userDocument](ctx, r.col, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return lo.Map(docs, func(d userDocument, _ int) *directory.User { return d.toDomain() }), nil
}

func (r UserRepository) Save(ctx context.Context, user *directory.User) error {
	doc := userDocument{
		ID:         string(user.ID),
		Name:       user.Name,
		Email:      user.Email,
		PushToken:  user.PushToken,
		LocationID: string(user.LocationID),
		Role:       string(user.Role),
	}
	_, err := r.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

func toUserIDs(in []string) []directory.UserID {
	return lo.Map(in, func(id string, _ int) directory.UserID { return directory.UserID(id) })
}

func fromUserIDs(in []directory.UserID) []string {
	return lo.Map(in, func(id directory.UserID, _ int) string { return string(id) })
}
