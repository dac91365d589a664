package service

import (
	"context"
	"strings"

	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	hdom "arledger/internal/services/history/domain"
	"arledger/internal/services/ledger/domain"
)

// Status derives open or paid fresh from the latest snapshot pointer
func (s *Svc) Status(ctx context.Context, invoiceID int64) (domain.Status, error) {
	last, latest, err := s.binder.Bind(s.db).InvoicePeriods(ctx, invoiceID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return "", perr.NotFoundf("invoice %d not found", invoiceID)
		}
		return "", perr.Classify(err, "invoice status")
	}
	return DeriveStatus(last, latest), nil
}

// DeriveStatus is open exactly when the invoice was seen in the newest period
func DeriveStatus(lastSeen, latest string) domain.Status {
	if lastSeen != "" && lastSeen == latest {
		return domain.Open
	}
	return domain.Paid
}

// GetInvoice returns one invoice with its derived status
func (s *Svc) GetInvoice(ctx context.Context, invoiceID int64) (domain.Invoice, error) {
	return s.binder.Bind(s.db).GetInvoice(ctx, invoiceID)
}

// ListInvoices pages through the ledger
func (s *Svc) ListInvoices(ctx context.Context, f domain.Filter) (domain.Page, error) {
	if f.Limit <= 0 {
		f.Limit = s.cfg.DefaultLimit
	}
	f.Limit = min(f.Limit, 500)
	f.Offset = max(f.Offset, 0)
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	if f.Period != "" {
		k, err := parsePeriod(f.Period)
		if err != nil {
			return domain.Page{}, err
		}
		f.Period = k.String()
	}
	items, total, err := s.binder.Bind(s.db).ListInvoices(ctx, f)
	if err != nil {
		return domain.Page{}, perr.Classify(err, "list invoices")
	}
	if items == nil {
		items = []domain.Invoice{}
	}
	return domain.Page{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// ListSnapshots returns every stored period newest first
func (s *Svc) ListSnapshots(ctx context.Context) ([]domain.Snapshot, error) {
	return s.binder.Bind(s.db).ListSnapshots(ctx)
}

// LatestPeriod returns max(period), empty when nothing was ingested
func (s *Svc) LatestPeriod(ctx context.Context) (string, error) {
	return s.binder.Bind(s.db).LatestPeriod(ctx)
}

// MarkUncollectible excludes the invoice from automated escalation without asserting payment
func (s *Svc) MarkUncollectible(ctx context.Context, invoiceID int64, reason string) error {
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		changed, err := s.binder.Bind(q).SetUncollectible(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !changed {
			if _, err := s.binder.Bind(q).GetInvoice(ctx, invoiceID); err != nil {
				return err
			}
			return nil
		}
		_, err = s.history.Bind(q).Append(ctx, invoiceID, hdom.MarkedUncollectible,
			map[string]any{"reason": strings.TrimSpace(reason)})
		return err
	})
	return perr.Classify(err, "mark uncollectible")
}
