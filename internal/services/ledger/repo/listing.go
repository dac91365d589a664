package repo

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"

	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/store"
	"arledger/internal/services/ledger/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// the derived status is computed per query against max(period), never stored
const statusCTE = `WITH latest AS (SELECT MAX(period) AS period FROM snapshots),
span AS (
	SELECT l.invoice_id, MIN(s.period) AS first_period, MAX(s.period) AS last_period
	FROM invoice_snapshots l JOIN snapshots s ON s.id = l.snapshot_id
	GROUP BY l.invoice_id
)`

// an invoice name needs review while an open review lists it as a candidate
const needsReview = `EXISTS (SELECT 1 FROM pending_reviews pr WHERE pr.status = 'pending'
	AND pr.candidates @> jsonb_build_array(jsonb_build_object('name', i.customer_name))) AS name_needs_review`

var invoiceCols = []string{
	"i.id", "i.invoice_number", "i.invoice_date", "i.customer_name", "i.customer_street",
	"i.customer_city", "i.amount_cents", "i.currency", "i.uncollectible", "i.address_incomplete",
	needsReview, "span.first_period", "span.last_period",
	"(span.last_period = latest.period) AS is_open", "i.created_at",
}

var sortCols = map[string]string{
	"date":     "i.invoice_date",
	"amount":   "i.amount_cents",
	"customer": "i.customer_name",
	"number":   "i.invoice_number",
}

func scanInvoice(row store.Row) (domain.Invoice, error) {
	var (
		inv  domain.Invoice
		open bool
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.Date, &inv.CustomerName, &inv.Street,
		&inv.City, &inv.AmountCents, &inv.Currency, &inv.Uncollectible, &inv.AddressIncomplete,
		&inv.NameNeedsReview, &inv.FirstPeriod, &inv.LastPeriod, &open, &inv.CreatedAt)
	inv.Status = domain.Paid
	if open {
		inv.Status = domain.Open
	}
	return inv, err
}

func invoiceBase(cols ...string) sq.SelectBuilder {
	return psql.Select(cols...).
		Prefix(statusCTE).
		From("invoices i").
		Join("span ON span.invoice_id = i.id").
		CrossJoin("latest")
}

func (r *queries) GetInvoice(ctx context.Context, invoiceID int64) (domain.Invoice, error) {
	sql, args, err := invoiceBase(invoiceCols...).Where(sq.Eq{"i.id": invoiceID}).ToSql()
	if err != nil {
		return domain.Invoice{}, err
	}
	inv, err := store.One(ctx, r.q, scanInvoice, sql, args...)
	if isNotFound(err) {
		return inv, perr.NotFoundf("invoice %d not found", invoiceID)
	}
	return inv, err
}

func applyFilter(b sq.SelectBuilder, f domain.Filter) sq.SelectBuilder {
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		b = b.Where(sq.Or{
			sq.ILike{"i.invoice_number": like},
			sq.ILike{"i.customer_name": like},
			sq.ILike{"i.customer_city": like},
		})
	}
	switch f.Status {
	case string(domain.Open):
		b = b.Where("span.last_period = latest.period")
	case string(domain.Paid):
		b = b.Where("span.last_period < latest.period")
	}
	if f.Period != "" {
		b = b.Where(`EXISTS (SELECT 1 FROM invoice_snapshots lf
			JOIN snapshots sf ON sf.id = lf.snapshot_id
			WHERE lf.invoice_id = i.id AND sf.period = ?)`, f.Period)
	}
	if f.Customer != "" {
		b = b.Where(sq.Eq{"i.customer_name": f.Customer})
	}
	if f.Uncollectible != nil {
		b = b.Where(sq.Eq{"i.uncollectible": *f.Uncollectible})
	}
	return b
}

// ListInvoices returns one page plus the total count for the filter
func (r *queries) ListInvoices(ctx context.Context, f domain.Filter) ([]domain.Invoice, int, error) {
	countSQL, countArgs, err := applyFilter(invoiceBase("COUNT(*)"), f).ToSql()
	if err != nil {
		return nil, 0, err
	}
	total, err := store.Scalar[int64](ctx, r.q, countSQL, countArgs...)
	if err != nil {
		return nil, 0, err
	}

	col, ok := sortCols[f.Sort]
	if !ok {
		col = sortCols["date"]
	}
	dir := "DESC"
	if strings.EqualFold(f.Direction, "asc") {
		dir = "ASC"
	}
	b := applyFilter(invoiceBase(invoiceCols...), f).
		OrderBy(col+" "+dir, "i.id "+dir).
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset))
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, 0, err
	}
	items, err := store.Many(ctx, r.q, scanInvoice, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}
