// Package repo persists snapshots, invoices and snapshot links
package repo

import (
	"context"
	"errors"

	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/store"
	"arledger/internal/services/ledger/domain"
)

// SnapshotRef is the slice of a snapshot row ingest needs
type SnapshotRef struct {
	ID        int64
	Completed bool
}

// Repo is the ledger persistence surface, bound per transaction
type Repo interface {
	EnsureSnapshot(ctx context.Context, period, label string) (SnapshotRef, error)
	FindSnapshot(ctx context.Context, period string) (SnapshotRef, bool, error)
	CompleteSnapshot(ctx context.Context, period string) (bool, error)
	PrevPeriod(ctx context.Context, period string) (string, bool, error)
	NextPeriod(ctx context.Context, period string) (string, bool, error)
	LatestPeriod(ctx context.Context) (string, error)
	ListSnapshots(ctx context.Context) ([]domain.Snapshot, error)

	FindInvoice(ctx context.Context, rec domain.Record) (int64, bool, error)
	CreateInvoice(ctx context.Context, rec domain.Record) (int64, bool, error)
	Link(ctx context.Context, invoiceID, snapshotID int64, sourcePath string) (bool, error)
	HasLink(ctx context.Context, invoiceID, snapshotID int64) (bool, error)

	Disappeared(ctx context.Context, prev, cur string) ([]domain.PaymentTransition, error)

	InvoicePeriods(ctx context.Context, invoiceID int64) (last string, latest string, err error)
	GetInvoice(ctx context.Context, invoiceID int64) (domain.Invoice, error)
	ListInvoices(ctx context.Context, f domain.Filter) ([]domain.Invoice, int, error)
	SetUncollectible(ctx context.Context, invoiceID int64) (bool, error)
}

type (
	// PG is the postgres binder
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// EnsureSnapshot creates the period row lazily and returns it either way
func (r *queries) EnsureSnapshot(ctx context.Context, period, label string) (SnapshotRef, error) {
	var s SnapshotRef
	err := r.q.QueryRow(ctx, `
		INSERT INTO snapshots (period, source_label)
		VALUES ($1, $2)
		ON CONFLICT (period) DO UPDATE SET period = snapshots.period
		RETURNING id, completed`, period, label).Scan(&s.ID, &s.Completed)
	return s, err
}

func (r *queries) FindSnapshot(ctx context.Context, period string) (SnapshotRef, bool, error) {
	s, err := store.One(ctx, r.q, func(row store.Row) (SnapshotRef, error) {
		var s SnapshotRef
		err := row.Scan(&s.ID, &s.Completed)
		return s, err
	}, `SELECT id, completed FROM snapshots WHERE period = $1`, period)
	if err != nil {
		if isNotFound(err) {
			return SnapshotRef{}, false, nil
		}
		return SnapshotRef{}, false, err
	}
	return s, true, nil
}

// CompleteSnapshot sets the flag once, completed_at keeps the first completion
func (r *queries) CompleteSnapshot(ctx context.Context, period string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE snapshots
		SET completed = TRUE, completed_at = COALESCE(completed_at, NOW())
		WHERE period = $1`, period)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// PrevPeriod returns the greatest stored period strictly before period
func (r *queries) PrevPeriod(ctx context.Context, period string) (string, bool, error) {
	var prev *string
	if err := r.q.QueryRow(ctx,
		`SELECT MAX(period) FROM snapshots WHERE period < $1`, period).Scan(&prev); err != nil {
		return "", false, err
	}
	if prev == nil {
		return "", false, nil
	}
	return *prev, true, nil
}

// NextPeriod returns the smallest stored period strictly after period
func (r *queries) NextPeriod(ctx context.Context, period string) (string, bool, error) {
	var next *string
	if err := r.q.QueryRow(ctx,
		`SELECT MIN(period) FROM snapshots WHERE period > $1`, period).Scan(&next); err != nil {
		return "", false, err
	}
	if next == nil {
		return "", false, nil
	}
	return *next, true, nil
}

func (r *queries) LatestPeriod(ctx context.Context) (string, error) {
	return store.Scalar[string](ctx, r.q, `SELECT COALESCE(MAX(period), '') FROM snapshots`)
}

func (r *queries) ListSnapshots(ctx context.Context) ([]domain.Snapshot, error) {
	return store.Many(ctx, r.q, func(row store.Row) (domain.Snapshot, error) {
		var s domain.Snapshot
		err := row.Scan(&s.ID, &s.Period, &s.SourceLabel, &s.Completed, &s.CompletedAt, &s.ScannedAt, &s.InvoiceCount)
		return s, err
	}, `
		SELECT s.id, s.period, s.source_label, s.completed, s.completed_at, s.scanned_at,
		       (SELECT COUNT(*) FROM invoice_snapshots l WHERE l.snapshot_id = s.id)::int
		FROM snapshots s
		ORDER BY s.period DESC`)
}

func (r *queries) FindInvoice(ctx context.Context, rec domain.Record) (int64, bool, error) {
	id, err := store.One(ctx, r.q, scanID, `
		SELECT id FROM invoices
		WHERE invoice_number = $1 AND customer_name = $2 AND amount_cents = $3`,
		rec.InvoiceNumber, rec.CustomerName, rec.AmountCents)
	if err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// CreateInvoice inserts the identity or returns the existing id, created reports which
func (r *queries) CreateInvoice(ctx context.Context, rec domain.Record) (int64, bool, error) {
	rows, err := r.q.Query(ctx, `
		INSERT INTO invoices (invoice_number, customer_name, customer_street, customer_city,
		                      invoice_date, amount_cents, address_incomplete)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (invoice_number, customer_name, amount_cents) DO NOTHING
		RETURNING id`,
		rec.InvoiceNumber, rec.CustomerName, rec.Street, rec.City,
		rec.Date, rec.AmountCents, rec.AddressIncomplete())
	if err != nil {
		return 0, false, err
	}
	var id int64
	created := false
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, false, err
		}
		created = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, false, err
	}
	if created {
		return id, true, nil
	}
	id, found, err := r.FindInvoice(ctx, rec)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, perr.Conflictf("invoice %q vanished during ingest", rec.InvoiceNumber)
	}
	return id, false, nil
}

// Link records that the invoice was seen in the snapshot, false when already linked
func (r *queries) Link(ctx context.Context, invoiceID, snapshotID int64, sourcePath string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO invoice_snapshots (invoice_id, snapshot_id, source_path)
		VALUES ($1, $2, $3)
		ON CONFLICT (invoice_id, snapshot_id) DO NOTHING`, invoiceID, snapshotID, sourcePath)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *queries) HasLink(ctx context.Context, invoiceID, snapshotID int64) (bool, error) {
	return store.Scalar[bool](ctx, r.q, `
		SELECT EXISTS (SELECT 1 FROM invoice_snapshots WHERE invoice_id = $1 AND snapshot_id = $2)`,
		invoiceID, snapshotID)
}

// Disappeared lists invoices linked to prev but not to cur that have no payment yet
func (r *queries) Disappeared(ctx context.Context, prev, cur string) ([]domain.PaymentTransition, error) {
	return store.Many(ctx, r.q, func(row store.Row) (domain.PaymentTransition, error) {
		var p domain.PaymentTransition
		err := row.Scan(&p.InvoiceID, &p.InvoiceNumber, &p.CustomerName, &p.AmountCents)
		p.LastSeenPeriod, p.DetectedAtPeriod = prev, cur
		return p, err
	}, `
		SELECT i.id, i.invoice_number, i.customer_name, i.amount_cents
		FROM invoices i
		JOIN invoice_snapshots lp ON lp.invoice_id = i.id
		JOIN snapshots sp ON sp.id = lp.snapshot_id AND sp.period = $1
		WHERE NOT EXISTS (
		        SELECT 1 FROM invoice_snapshots lc
		        JOIN snapshots sc ON sc.id = lc.snapshot_id
		        WHERE lc.invoice_id = i.id AND sc.period = $2)
		  AND NOT EXISTS (
		        SELECT 1 FROM history_events h
		        WHERE h.invoice_id = i.id AND h.event_type = 'PAYMENT_RECEIVED')
		ORDER BY i.id`, prev, cur)
}

// InvoicePeriods returns the invoice's newest linked period and the global newest period
func (r *queries) InvoicePeriods(ctx context.Context, invoiceID int64) (string, string, error) {
	var last, latest *string
	err := r.q.QueryRow(ctx, `
		SELECT (SELECT MAX(s.period)
		          FROM invoice_snapshots l JOIN snapshots s ON s.id = l.snapshot_id
		         WHERE l.invoice_id = $1),
		       (SELECT MAX(period) FROM snapshots)`, invoiceID).Scan(&last, &latest)
	if err != nil {
		return "", "", err
	}
	if last == nil {
		return "", "", perr.ErrNotFound
	}
	return *last, deref(latest), nil
}

func (r *queries) SetUncollectible(ctx context.Context, invoiceID int64) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE invoices SET uncollectible = TRUE
		WHERE id = $1 AND NOT uncollectible`, invoiceID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanID(row store.Row) (int64, error) {
	var id int64
	err := row.Scan(&id)
	return id, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isNotFound(err error) bool { return errors.Is(err, perr.ErrNotFound) }
