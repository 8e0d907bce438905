package memory

import (
	"context"
	"sort"

	domainledger "cspace/internal/domain/ledger"
)

type ledgerRepo struct{ u *Unit }

func (r ledgerRepo) Append(ctx context.Context, entry *domainledger.Entry) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	cp := *entry
	r.u.ledger = append(r.u.ledger, &cp)
	return nil
}

func (r ledgerRepo) List(ctx context.Context, f domainledger.Filter) ([]*domainledger.Entry, int, error) {
	var out []*domainledger.Entry
	keep := func(e *domainledger.Entry) {
		switch {
		case f.PayerID != "" && e.PayerID != f.PayerID:
		case f.LocationID != "" && e.LocationID != f.LocationID:
		case f.PaymentID != "" && e.PaymentID != f.PaymentID:
		case !f.Created.Contains(e.CreatedAt):
		default:
			cp := *e
			out = append(out, &cp)
		}
	}
	r.u.read(func() {
		for _, e := range r.u.store.ledger {
			keep(e)
		}
	})
	for _, e := range r.u.ledger {
		keep(e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	return page(out, f.Offset, f.Limit), total, nil
}
