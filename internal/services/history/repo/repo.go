// Package repo persists the invoice history journal
package repo

import (
	"context"
	"encoding/json"
	"time"

	"arledger/internal/modkit/repokit"
	"arledger/internal/modkit/scope"
	"arledger/internal/platform/store"
	"arledger/internal/services/history/domain"
)

// Repo is bound to a Queryer so callers can append inside their own transaction
type Repo interface {
	Append(ctx context.Context, invoiceID int64, typ domain.EventType, meta map[string]any) (int64, error)
	AppendOnce(ctx context.Context, invoiceID int64, typ domain.EventType, meta map[string]any) (bool, error)
	ListForInvoice(ctx context.Context, invoiceID int64) ([]domain.Event, error)
	HasEvent(ctx context.Context, invoiceID int64, typ domain.EventType) (bool, error)
	ClaimUnpublished(ctx context.Context, limit int) ([]domain.Event, error)
	MarkPublished(ctx context.Context, ids []int64, at time.Time) error
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

// encodeMeta stamps the request actor from scope unless the caller set one
func encodeMeta(ctx context.Context, meta map[string]any) ([]byte, error) {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	if actor, ok := scope.Get(ctx, scope.Actor); ok && actor != "" {
		if _, set := out["actor"]; !set {
			out["actor"] = actor
		}
	}
	return json.Marshal(out)
}

func (r *queries) Append(ctx context.Context, invoiceID int64, typ domain.EventType, meta map[string]any) (int64, error) {
	b, err := encodeMeta(ctx, meta)
	if err != nil {
		return 0, err
	}
	return store.Scalar[int64](ctx, r.q, `
		INSERT INTO history_events (invoice_id, event_type, metadata)
		VALUES ($1, $2, $3::jsonb)
		RETURNING id`, invoiceID, string(typ), string(b))
}

// AppendOnce inserts unless a unique index already holds an equivalent event
// used for PAYMENT_RECEIVED, which a partial unique index keeps to one per invoice
func (r *queries) AppendOnce(ctx context.Context, invoiceID int64, typ domain.EventType, meta map[string]any) (bool, error) {
	b, err := encodeMeta(ctx, meta)
	if err != nil {
		return false, err
	}
	tag, err := r.q.Exec(ctx, `
		INSERT INTO history_events (invoice_id, event_type, metadata)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT DO NOTHING`, invoiceID, string(typ), string(b))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const eventCols = `id, invoice_id, event_type, metadata, created_at, published_at`

func scanEvent(row store.Row) (domain.Event, error) {
	var (
		e   domain.Event
		typ string
		raw []byte
	)
	if err := row.Scan(&e.ID, &e.InvoiceID, &typ, &raw, &e.CreatedAt, &e.PublishedAt); err != nil {
		return e, err
	}
	e.Type = domain.EventType(typ)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &e.Metadata); err != nil {
			return e, err
		}
	}
	return e, nil
}

func (r *queries) ListForInvoice(ctx context.Context, invoiceID int64) ([]domain.Event, error) {
	return store.Many(ctx, r.q, scanEvent, `
		SELECT `+eventCols+`
		FROM history_events
		WHERE invoice_id = $1
		ORDER BY created_at, id`, invoiceID)
}

func (r *queries) HasEvent(ctx context.Context, invoiceID int64, typ domain.EventType) (bool, error) {
	return store.Scalar[bool](ctx, r.q, `
		SELECT EXISTS (SELECT 1 FROM history_events WHERE invoice_id = $1 AND event_type = $2)`,
		invoiceID, string(typ))
}

// ClaimUnpublished locks the oldest unpublished events, concurrent relays skip each other
func (r *queries) ClaimUnpublished(ctx context.Context, limit int) ([]domain.Event, error) {
	return store.Many(ctx, r.q, scanEvent, `
		SELECT `+eventCols+`
		FROM history_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
}

func (r *queries) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx, `UPDATE history_events SET published_at = $2 WHERE id = ANY($1)`, ids, at)
	return err
}
