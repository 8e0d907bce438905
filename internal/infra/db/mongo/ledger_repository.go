package mongo

import (
	"context"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	domainledger "cspace/internal/domain/ledger"
	"cspace/internal/domain/shared/fault"
	"cspace/internal/domain/shared/money"
)

// LedgerRepository is append-only; entries are never updated.
type LedgerRepository struct {
	col *mongo.Collection
}

type ledgerDocument struct {
	ID          string      `bson:"_id"`
	PayerID     string      `bson:"payer_id"`
	LocationID  string      `bson:"location_id"`
	PaymentID   string      `bson:"payment_id"`
	CycleID     string      `bson:"cycle_id"`
	Amount      money.Money `bson:"amount"`
	Kind        string      `bson:"kind"`
	Method      string      `bson:"method,omitempty"`
	Description string      `bson:"description"`
	CreatedAt   int64       `bson:"created_at"`
}

func (r LedgerRepository) Append(ctx context.Context, e *domainledger.Entry) error {
	doc := ledgerDocument{
		ID:          string(e.ID),
		PayerID:     string(e.PayerID),
		LocationID:  string(e.LocationID),
		PaymentID:   string(e.PaymentID),
		CycleID:     string(e.CycleID),
		Amount:      e.Amount,
		Kind:        string(e.Kind),
		Method:      string(e.Method),
		Description: e.Description,
		CreatedAt:   millis(e.CreatedAt),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fault.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r LedgerRepository) List(ctx context.Context, f domainledger.Filter) ([]*domainledger.Entry, int, error) {
	filter := bson.M{}
	if f.PayerID != "" {
		filter["payer_id"] = string(f.PayerID)
	}
	if f.LocationID != "" {
		filter["location_id"] = string(f.LocationID)
	}
	if f.PaymentID != "" {
		filter["payment_id"] = string(f.PaymentID)
	}
	if bounds := rangeFilter(f.Created.From, f.Created.To); len(bounds) > 0 {
		filter["created_at"] = bounds
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	docs, err := findAll[ledgerDocument](ctx, r.col, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return lo.Map(docs, func(d ledgerDocument, _ int) *domainledger.Entry {
		return &domainledger.Entry{
			ID:          domainledger.EntryID(d.ID),
			PayerID:     directory.UserID(d.PayerID),
			LocationID:  directory.LocationID(d.LocationID),
			PaymentID:   domainbilling.RecordID(d.PaymentID),
			CycleID:     domainbilling.CycleID(d.CycleID),
			Amount:      d.Amount,
			Kind:        domainledger.Kind(d.Kind),
			Method:      domainbilling.SettlementMethod(d.Method),
			Description: d.Description,
			CreatedAt:   timestampToTime(d.CreatedAt),
		}
	}), int(total), nil
}
