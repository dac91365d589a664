// Package repo reads invoice escalation state and persists reminders and carrier jobs
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"arledger/internal/core/dunning"
	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/store"
)

// InvoiceState is everything the escalation policy needs about one invoice
type InvoiceState struct {
	InvoiceID      int64
	InvoiceNumber  string
	CustomerName   string
	Street         string
	City           string
	Date           time.Time
	AmountCents    int64
	Open           bool
	Uncollectible  bool
	NeverRemind    bool
	Salutation     string
	SourcePath     string
	LastLevel      *dunning.Level
	LastReminderAt *time.Time
}

// Reminder is one new reminder row
type Reminder struct {
	InvoiceID   int64
	Level       dunning.Level
	GroupID     uuid.UUID
	ArtifactRef string
}

// PendingGroup is a rendered letter waiting for dispatch
type PendingGroup struct {
	GroupID      uuid.UUID
	ArtifactRef  string
	Level        dunning.Level
	CustomerName string
	InvoiceIDs   []int64
}

// CarrierJob records one carrier submission
type CarrierJob struct {
	GroupID     uuid.UUID
	ArtifactRef string
	JobID       string
	Mode        string
	PriceCents  int64
	Status      string
	SubmittedAt time.Time
}

// Repo is the dunning persistence surface
type Repo interface {
	LatestPeriod(ctx context.Context) (string, bool, error)
	OpenInvoices(ctx context.Context) ([]InvoiceState, error)
	InvoiceState(ctx context.Context, invoiceID int64) (InvoiceState, error)
	LockInvoices(ctx context.Context, ids []int64) error
	InsertReminder(ctx context.Context, r Reminder) (int64, error)
	PendingGroups(ctx context.Context) ([]PendingGroup, error)
	MarkSubmitted(ctx context.Context, groupID uuid.UUID, jobID string, priceCents int64) (int64, error)
	InsertCarrierJob(ctx context.Context, j CarrierJob) error
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

func (r *queries) LatestPeriod(ctx context.Context) (string, bool, error) {
	p, err := store.Scalar[*string](ctx, r.q, `SELECT MAX(period) FROM snapshots`)
	if err != nil {
		return "", false, err
	}
	if p == nil {
		return "", false, nil
	}
	return *p, true, nil
}

// stateSQL derives openness from the invoice's newest linked period against the global newest
const stateSQL = `
	WITH latest AS (SELECT MAX(period) AS period FROM snapshots)
	SELECT * FROM (
		SELECT i.id, i.invoice_number, i.customer_name, i.customer_street, i.customer_city,
		       i.invoice_date, i.amount_cents,
		       seen.period = latest.period AS is_open,
		       i.uncollectible,
		       COALESCE(p.never_remind, FALSE),
		       COALESCE(p.salutation, ''),
		       COALESCE(seen.source_path, ''),
		       r.level, r.created_at
		FROM invoices i
		CROSS JOIN latest
		LEFT JOIN LATERAL (
			SELECT s.period, l.source_path
			FROM invoice_snapshots l
			JOIN snapshots s ON s.id = l.snapshot_id
			WHERE l.invoice_id = i.id
			ORDER BY s.period DESC
			LIMIT 1
		) seen ON TRUE
		LEFT JOIN LATERAL (
			SELECT level, created_at
			FROM reminders
			WHERE invoice_id = i.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) r ON TRUE
		LEFT JOIN customer_profiles p ON p.customer_name = i.customer_name
	) st (id, invoice_number, customer_name, street, city, invoice_date, amount_cents,
	      is_open, uncollectible, never_remind, salutation, source_path, last_level, last_at)
`

func scanState(row store.Row) (InvoiceState, error) {
	var (
		s     InvoiceState
		open  *bool
		level *int16
	)
	if err := row.Scan(&s.InvoiceID, &s.InvoiceNumber, &s.CustomerName, &s.Street, &s.City,
		&s.Date, &s.AmountCents, &open, &s.Uncollectible, &s.NeverRemind, &s.Salutation,
		&s.SourcePath, &level, &s.LastReminderAt); err != nil {
		return s, err
	}
	s.Open = open != nil && *open
	if level != nil {
		s.LastLevel = dunning.Level(*level).Ptr()
	}
	return s, nil
}

// OpenInvoices lists collectible open invoices of customers that accept reminders
func (r *queries) OpenInvoices(ctx context.Context) ([]InvoiceState, error) {
	return store.Many(ctx, r.q, scanState, stateSQL+`
		WHERE st.is_open AND NOT st.uncollectible AND NOT st.never_remind
		ORDER BY st.invoice_date, st.id`)
}

func (r *queries) InvoiceState(ctx context.Context, invoiceID int64) (InvoiceState, error) {
	s, err := store.One(ctx, r.q, scanState, stateSQL+` WHERE st.id = $1`, invoiceID)
	if errors.Is(err, perr.ErrNotFound) {
		return s, perr.NotFoundf("invoice %d not found", invoiceID)
	}
	return s, err
}

// LockInvoices holds row locks on the invoices until the transaction ends
func (r *queries) LockInvoices(ctx context.Context, ids []int64) error {
	_, err := store.Many(ctx, r.q, func(row store.Row) (int64, error) {
		var id int64
		err := row.Scan(&id)
		return id, err
	}, `SELECT id FROM invoices WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	return err
}

func (r *queries) InsertReminder(ctx context.Context, rm Reminder) (int64, error) {
	return store.Scalar[int64](ctx, r.q, `
		INSERT INTO reminders (invoice_id, level, group_id, artifact_ref, dispatch_status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id`, rm.InvoiceID, int16(rm.Level), rm.GroupID, rm.ArtifactRef)
}

func (r *queries) PendingGroups(ctx context.Context) ([]PendingGroup, error) {
	return store.Many(ctx, r.q, func(row store.Row) (PendingGroup, error) {
		var (
			g     PendingGroup
			level int16
		)
		err := row.Scan(&g.GroupID, &g.ArtifactRef, &level, &g.CustomerName, &g.InvoiceIDs)
		g.Level = dunning.Level(level)
		return g, err
	}, `
		SELECT r.group_id, MIN(r.artifact_ref), MIN(r.level), MIN(i.customer_name),
		       ARRAY_AGG(r.invoice_id ORDER BY r.invoice_id)
		FROM reminders r
		JOIN invoices i ON i.id = r.invoice_id
		WHERE r.dispatch_status = 'pending' AND r.artifact_ref <> ''
		GROUP BY r.group_id
		ORDER BY MIN(r.created_at), r.group_id`)
}

// MarkSubmitted moves the group's pending rows to submitted and returns how many moved
func (r *queries) MarkSubmitted(ctx context.Context, groupID uuid.UUID, jobID string, priceCents int64) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE reminders
		SET dispatch_status = 'submitted', carrier_job_id = $2, carrier_price_cents = $3
		WHERE group_id = $1 AND dispatch_status = 'pending'`, groupID, jobID, priceCents)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *queries) InsertCarrierJob(ctx context.Context, j CarrierJob) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO carrier_jobs (group_id, artifact_ref, job_id, mode, price_cents, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		j.GroupID, j.ArtifactRef, j.JobID, j.Mode, j.PriceCents, j.Status, j.SubmittedAt)
	return err
}
