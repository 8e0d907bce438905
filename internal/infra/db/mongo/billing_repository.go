package mongo

import (
	"context"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/pricing"
	"cspace/internal/domain/shared/period"
)

type CycleRepository struct {
	col *mongo.Collection
}

type cycleDocument struct {
	ID            string `bson:"_id"`
	LocationID    string `bson:"location_id"`
	CreatedBy     string `bson:"created_by"`
	AnchorDate    int64  `bson:"anchor_date"`
	MonthKey      string `bson:"month_key"`
	Currency      string `bson:"currency"`
	Status        string `bson:"status"`
	TotalBilled   int64  `bson:"total_billed"`
	TotalReceived int64  `bson:"total_received"`
	TotalPrepaid  int64  `bson:"total_prepaid"`
	CreatedAt     int64  `bson:"created_at"`
	UpdatedAt     int64  `bson:"updated_at"`
	CompletedAt   int64  `bson:"completed_at,omitempty"`
	Version       int64  `bson:"version"`
}

func (r CycleRepository) ByID(ctx context.Context, id domainbilling.CycleID) (*domainbilling.Cycle, error) {
	doc, err := findOne[cycleDocument](ctx, r.col, bson.M{"_id": string(id)}, domainbilling.ErrCycleNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r CycleRepository) ForMonth(ctx context.Context, location directory.LocationID, month period.Month) (*domainbilling.Cycle, error) {
	filter := bson.M{"location_id": string(location), "month_key": month.Key()}
	doc, err := findOne[cycleDocument](ctx, r.col, filter, domainbilling.ErrCycleNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r CycleRepository) List(ctx context.Context, f domainbilling.CycleFilter) ([]*domainbilling.Cycle, int, error) {
	filter := bson.M{}
	if f.LocationID != "" {
		filter["location_id"] = string(f.LocationID)
	}
	if f.CreatedBy != "" {
		filter["created_by"] = string(f.CreatedBy)
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if bounds := rangeFilter(f.Anchor.From, f.Anchor.To); len(bounds) > 0 {
		filter["anchor_date"] = bounds
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "anchor_date", Value: -1}, {Key: "created_at", Value: -1}})
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	docs, err := findAll[cycleDocument](ctx, r.col, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return lo.Map(docs, func(d cycleDocument, _ int) *domainbilling.Cycle { return d.toDomain() }), int(total), nil
}

func (r CycleRepository) ListByLocation(ctx context.Context, location directory.LocationID) ([]*domainbilling.Cycle, error) {
	items, _, err := r.List(ctx, domainbilling.CycleFilter{LocationID: location})
	return items, err
}

func (r CycleRepository) Save(ctx context.Context, cycle *domainbilling.Cycle) error {
	doc := newCycleDocument(cycle)
	doc.Version = cycle.Version + 1
	if cycle.Version == 0 {
		if _, err := r.ForMonth(ctx, cycle.LocationID, cycle.Period()); err == nil {
			return domainbilling.ErrDuplicateCycle
		}
	}
	if err := saveVersioned(ctx, r.col, doc.ID, cycle.Version, doc); err != nil {
		return err
	}
	cycle.Version = doc.Version
	return nil
}

func (r CycleRepository) Delete(ctx context.Context, id domainbilling.CycleID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainbilling.ErrCycleNotFound
	}
	return nil
}

func newCycleDocument(c *domainbilling.Cycle) cycleDocument {
	return cycleDocument{
		ID:            string(c.ID),
		LocationID:    string(c.LocationID),
		CreatedBy:     string(c.CreatedBy),
		AnchorDate:    millis(c.AnchorDate),
		MonthKey:      c.Period().Key(),
		Currency:      c.Currency,
		Status:        string(c.Status),
		TotalBilled:   c.TotalBilled,
		TotalReceived: c.TotalReceived,
		TotalPrepaid:  c.TotalPrepaid,
		CreatedAt:     millis(c.CreatedAt),
		UpdatedAt:     millis(c.UpdatedAt),
		CompletedAt:   millis(c.CompletedAt),
	}
}

func (d cycleDocument) toDomain() *domainbilling.Cycle {
	return &domainbilling.Cycle{
		ID:            domainbilling.CycleID(d.ID),
		LocationID:    directory.LocationID(d.LocationID),
		CreatedBy:     directory.UserID(d.CreatedBy),
		AnchorDate:    timestampToTime(d.AnchorDate),
		Currency:      d.Currency,
		Status:        domainbilling.CycleStatus(d.Status),
		TotalBilled:   d.TotalBilled,
		TotalReceived: d.TotalReceived,
		TotalPrepaid:  d.TotalPrepaid,
		CreatedAt:     timestampToTime(d.CreatedAt),
		UpdatedAt:     timestampToTime(d.UpdatedAt),
		CompletedAt:   timestampToTime(d.CompletedAt),
		Version:       d.Version,
	}
}

type RecordRepository struct {
	col *mongo.Collection
}

type recordDocument struct {
	ID           string         `bson:"_id"`
	CycleID      string         `bson:"cycle_id"`
	LocationID   string         `bson:"location_id"`
	RoomID       string         `bson:"room_id"`
	Occupants    []string       `bson:"occupants"`
	Charges      pricing.Inputs `bson:"charges"`
	BilledAmount int64          `bson:"billed_amount"`
	Currency     string         `bson:"currency"`
	Status       string         `bson:"status"`
	SettledVia   string         `bson:"settled_via,omitempty"`
	PaidBy       string         `bson:"paid_by,omitempty"`
	PaidAt       int64          `bson:"paid_at,omitempty"`
	// ActiveKey is set while the record is not canceled; a sparse unique
	// index on it keeps one live record per room and cycle.
	ActiveKey string `bson:"active_key,omitempty"`
	CreatedAt int64  `bson:"created_at"`
	UpdatedAt int64  `bson:"updated_at"`
	Version   int64  `bson:"version"`
}

func (r RecordRepository) ByID(ctx context.Context, id domainbilling.RecordID) (*domainbilling.Record, error) {
	doc, err := findOne[recordDocument](ctx, r.col, bson.M{"_id": string(id)}, domainbilling.ErrRecordNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r RecordRepository) ListByCycle(ctx context.Context, cycle domainbilling.CycleID) ([]*domainbilling.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: 1}})
	docs, err := findAll[recordDocument](ctx, r.col, bson.M{"cycle_id": string(cycle)}, opts)
	if err != nil {
		return nil, err
	}
	return lo.Map(docs, func(d recordDocument, _ int) *domainbilling.Record { return d.toDomain() }), nil
}

func (r RecordRepository) ActiveForRoom(ctx context.Context, cycle domainbilling.CycleID, room directory.RoomID) (*domainbilling.Record, error) {
	filter := bson.M{"active_key": activeKey(string(cycle), string(room))}
	doc, err := findOne[recordDocument](ctx, r.col, filter, domainbilling.ErrRecordNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r RecordRepository) Save(ctx context.Context, record *domainbilling.Record) error {
	if record.Version == 0 && record.Status != domainbilling.RecordCanceled {
		if _, err := r.ActiveForRoom(ctx, record.CycleID, record.RoomID); err == nil {
			return domainbilling.ErrDuplicateRecord
		}
	}
	doc := newRecordDocument(record)
	doc.Version = record.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, record.Version, doc); err != nil {
		return err
	}
	if doc.ActiveKey == "" {
		// $set cannot drop a field, so clear the key once a record is canceled.
		if _, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$unset": bson.M{"active_key": ""}}); err != nil {
			return err
		}
	}
	record.Version = doc.Version
	return nil
}

func (r RecordRepository) DeleteByCycle(ctx context.Context, cycle domainbilling.CycleID) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"cycle_id": string(cycle)})
	return err
}

func activeKey(cycle, room string) string {
	return cycle + "/" + room
}

func newRecordDocument(rec *domainbilling.Record) recordDocument {
	doc := recordDocument{
		ID:           string(rec.ID),
		CycleID:      string(rec.CycleID),
		LocationID:   string(rec.LocationID),
		RoomID:       string(rec.RoomID),
		Occupants:    lo.Map(rec.Occupants, func(u directory.UserID, _ int) string { return string(u) }),
		Charges:      rec.Charges,
		BilledAmount: rec.BilledAmount,
		Currency:     rec.Currency,
		Status:       string(rec.Status),
		SettledVia:   string(rec.SettledVia),
		PaidBy:       string(rec.PaidBy),
		PaidAt:       millis(rec.PaidAt),
		CreatedAt:    millis(rec.CreatedAt),
		UpdatedAt:    millis(rec.UpdatedAt),
	}
	if rec.Status != domainbilling.RecordCanceled {
		doc.ActiveKey = activeKey(doc.CycleID, doc.RoomID)
	}
	return doc
}

func (d recordDocument) toDomain() *domainbilling.Record {
	return &domainbilling.Record{
		ID:           domainbilling.RecordID(d.ID),
		CycleID:      domainbilling.CycleID(d.CycleID),
		LocationID:   directory.LocationID(d.LocationID),
		RoomID:       directory.RoomID(d.RoomID),
		Occupants:    lo.Map(d.Occupants, func(u string, _ int) directory.UserID { return directory.UserID(u) }),
		Charges:      d.Charges,
		BilledAmount: d.BilledAmount,
		Currency:     d.Currency,
		Status:       domainbilling.RecordStatus(d.Status),
		SettledVia:   domainbilling.SettlementMethod(d.SettledVia),
		PaidBy:       directory.UserID(d.PaidBy),
		PaidAt:       timestampToTime(d.PaidAt),
		CreatedAt:    timestampToTime(d.CreatedAt),
		UpdatedAt:    timestampToTime(d.UpdatedAt),
		Version:      d.Version,
	}
}
