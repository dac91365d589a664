// Package repo persists identity reviews and rewrites invoice identities on merge
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"arledger/internal/core/similarity"
	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/store"
	"arledger/internal/services/identity/domain"
	ldom "arledger/internal/services/ledger/domain"
)

// Known is an identity triple already present in the ledger
type Known struct {
	similarity.Triple
	Count int
}

// Renamed is an invoice whose identity a merge rewrote
type Renamed struct {
	InvoiceID int64
	From      string
}

// Repo is the identity persistence surface, bound per transaction
type Repo interface {
	KnownTriples(ctx context.Context) ([]Known, error)
	ExactTriple(ctx context.Context, t similarity.Triple) (bool, error)
	ExactName(ctx context.Context, name string) (bool, error)
	ConfirmedDistinct(ctx context.Context, name string) (bool, error)

	InsertReview(ctx context.Context, rv domain.Review) error
	ReviewFor(ctx context.Context, rec ldom.Record) (domain.Review, bool, error)
	ListPending(ctx context.Context) ([]domain.Review, error)
	GetReview(ctx context.Context, id uuid.UUID) (domain.Review, error)
	LockReview(ctx context.Context, id uuid.UUID) (domain.Review, error)
	MarkResolved(ctx context.Context, id uuid.UUID, action domain.Action, canonical similarity.Triple, at time.Time) error

	Alias(ctx context.Context, name string) (similarity.Triple, bool, error)
	SetAliases(ctx context.Context, names []string, to similarity.Triple) error

	UpsertProfile(ctx context.Context, t similarity.Triple, confirmedDistinct bool) error
	RewriteIdentity(ctx context.Context, names []string, to similarity.Triple) ([]Renamed, error)
	MergeProfiles(ctx context.Context, names []string, to similarity.Triple) error
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

func (r *queries) KnownTriples(ctx context.Context) ([]Known, error) {
	return store.Many(ctx, r.q, func(row store.Row) (Known, error) {
		var k Known
		err := row.Scan(&k.Name, &k.Street, &k.City, &k.Count)
		return k, err
	}, `
		SELECT customer_name, customer_street, customer_city, COUNT(*)::int
		FROM invoices
		GROUP BY customer_name, customer_street, customer_city`)
}

func (r *queries) ExactTriple(ctx context.Context, t similarity.Triple) (bool, error) {
	return store.Scalar[bool](ctx, r.q, `
		SELECT EXISTS (SELECT 1 FROM invoices
		               WHERE customer_name = $1 AND customer_street = $2 AND customer_city = $3)`,
		t.Name, t.Street, t.City)
}

func (r *queries) ExactName(ctx context.Context, name string) (bool, error) {
	return store.Scalar[bool](ctx, r.q,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE customer_name = $1)`, name)
}

func (r *queries) ConfirmedDistinct(ctx context.Context, name string) (bool, error) {
	return store.Scalar[bool](ctx, r.q, `
		SELECT COALESCE((SELECT confirmed_distinct FROM customer_profiles WHERE customer_name = $1), FALSE)`, name)
}

func (r *queries) InsertReview(ctx context.Context, rv domain.Review) error {
	payload, err := json.Marshal(rv.Record)
	if err != nil {
		return err
	}
	cands, err := json.Marshal(rv.Candidates)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO pending_reviews (id, payload, period, source_path, candidates, status)
		VALUES ($1, $2::jsonb, $3, $4, $5::jsonb, 'pending')`,
		rv.ID, string(payload), rv.Period, rv.SourcePath, string(cands))
	return err
}

const reviewCols = `id, payload, period, source_path, candidates, status, resolution,
	resolved_profile, resolved_street, resolved_city, created_at, resolved_at`

func scanReview(row store.Row) (domain.Review, error) {
	var (
		rv             domain.Review
		payload, cands []byte
		resolution     string
	)
	if err := row.Scan(&rv.ID, &payload, &rv.Period, &rv.SourcePath, &cands, &rv.Status, &resolution,
		&rv.ResolvedProfile, &rv.ResolvedStreet, &rv.ResolvedCity, &rv.CreatedAt, &rv.ResolvedAt); err != nil {
		return rv, err
	}
	rv.Resolution = domain.Action(resolution)
	if err := json.Unmarshal(payload, &rv.Record); err != nil {
		return rv, perr.Wrap(err, perr.ErrorCodeJSON, "review payload")
	}
	if len(cands) > 0 {
		if err := json.Unmarshal(cands, &rv.Candidates); err != nil {
			return rv, perr.Wrap(err, perr.ErrorCodeJSON, "review candidates")
		}
	}
	return rv, nil
}

// ReviewFor returns the newest review parked for the same invoice identity
func (r *queries) ReviewFor(ctx context.Context, rec ldom.Record) (domain.Review, bool, error) {
	rv, err := store.One(ctx, r.q, scanReview, `
		SELECT `+reviewCols+`
		FROM pending_reviews
		WHERE payload ->> 'invoice_number' = $1
		  AND payload ->> 'customer_name' = $2
		  AND (payload ->> 'amount_cents')::bigint = $3
		ORDER BY created_at DESC
		LIMIT 1`, rec.InvoiceNumber, rec.CustomerName, rec.AmountCents)
	if err != nil {
		if errors.Is(err, perr.ErrNotFound) {
			return domain.Review{}, false, nil
		}
		return domain.Review{}, false, err
	}
	return rv, true, nil
}

func (r *queries) ListPending(ctx context.Context) ([]domain.Review, error) {
	return store.Many(ctx, r.q, scanReview, `
		SELECT `+reviewCols+`
		FROM pending_reviews
		WHERE status = 'pending'
		ORDER BY created_at, id`)
}

func (r *queries) GetReview(ctx context.Context, id uuid.UUID) (domain.Review, error) {
	rv, err := store.One(ctx, r.q, scanReview, `SELECT `+reviewCols+` FROM pending_reviews WHERE id = $1`, id)
	if errors.Is(err, perr.ErrNotFound) {
		return rv, perr.NotFoundf("review %s not found", id)
	}
	return rv, err
}

// LockReview reads the review and holds its row lock until the transaction ends
func (r *queries) LockReview(ctx context.Context, id uuid.UUID) (domain.Review, error) {
	rv, err := store.One(ctx, r.q, scanReview, `SELECT `+reviewCols+` FROM pending_reviews WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, perr.ErrNotFound) {
		return rv, perr.NotFoundf("review %s not found", id)
	}
	return rv, err
}

func (r *queries) MarkResolved(ctx context.Context, id uuid.UUID, action domain.Action, canonical similarity.Triple, at time.Time) error {
	return store.ExecOne(ctx, r.q, `
		UPDATE pending_reviews
		SET status = 'resolved', resolution = $2, resolved_profile = $3,
		    resolved_street = $4, resolved_city = $5, resolved_at = $6
		WHERE id = $1 AND status = 'pending'`,
		id, string(action), canonical.Name, canonical.Street, canonical.City, at)
}

func (r *queries) UpsertProfile(ctx context.Context, t similarity.Triple, confirmedDistinct bool) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO customer_profiles (customer_name, street, city, confirmed_distinct)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_name) DO UPDATE
		SET street = EXCLUDED.street, city = EXCLUDED.city,
		    confirmed_distinct = customer_profiles.confirmed_distinct OR EXCLUDED.confirmed_distinct,
		    updated_at = NOW()`, t.Name, t.Street, t.City, confirmedDistinct)
	return err
}

// RewriteIdentity moves every invoice of names onto the canonical triple
func (r *queries) RewriteIdentity(ctx context.Context, names []string, to similarity.Triple) ([]Renamed, error) {
	return store.Many(ctx, r.q, func(row store.Row) (Renamed, error) {
		var x Renamed
		err := row.Scan(&x.InvoiceID, &x.From)
		return x, err
	}, `
		WITH old AS (
			SELECT id, customer_name
			FROM invoices
			WHERE customer_name = ANY($4)
			  AND (customer_name, customer_street, customer_city) IS DISTINCT FROM ($1, $2, $3)
			FOR UPDATE
		)
		UPDATE invoices i
		SET customer_name = $1, customer_street = $2, customer_city = $3,
		    address_incomplete = ($2 = '' OR $3 = '')
		FROM old
		WHERE i.id = old.id
		RETURNING i.id, old.customer_name`, to.Name, to.Street, to.City, names)
}

// MergeProfiles folds the profiles of names into the canonical one, keeping the
// first non empty delivery settings
func (r *queries) MergeProfiles(ctx context.Context, names []string, to similarity.Triple) error {
	if _, err := r.q.Exec(ctx, `
		INSERT INTO customer_profiles (customer_name, corrected_name, street, city, salutation, email,
		                               notes, never_remind, bank_debit, confirmed_distinct)
		SELECT $1, COALESCE(MAX(NULLIF(corrected_name, '')), ''), $2, $3,
		       COALESCE(MAX(NULLIF(salutation, '')), ''), COALESCE(MAX(NULLIF(email, '')), ''),
		       COALESCE(STRING_AGG(NULLIF(notes, ''), E'\n'), ''),
		       COALESCE(BOOL_OR(never_remind), FALSE), COALESCE(BOOL_OR(bank_debit), FALSE), FALSE
		FROM customer_profiles
		WHERE customer_name = ANY($4)
		ON CONFLICT (customer_name) DO UPDATE
		SET street = EXCLUDED.street, city = EXCLUDED.city,
		    salutation = COALESCE(NULLIF(customer_profiles.salutation, ''), EXCLUDED.salutation),
		    email = COALESCE(NULLIF(customer_profiles.email, ''), EXCLUDED.email),
		    never_remind = customer_profiles.never_remind OR EXCLUDED.never_remind,
		    bank_debit = customer_profiles.bank_debit OR EXCLUDED.bank_debit,
		    updated_at = NOW()`, to.Name, to.Street, to.City, names); err != nil {
		return err
	}
	_, err := r.q.Exec(ctx, `
		DELETE FROM customer_profiles WHERE customer_name = ANY($1) AND customer_name <> $2`, names, to.Name)
	return err
}

// Alias returns the canonical identity a merged name was folded into
func (r *queries) Alias(ctx context.Context, name string) (similarity.Triple, bool, error) {
	t, err := store.One(ctx, r.q, func(row store.Row) (similarity.Triple, error) {
		var t similarity.Triple
		err := row.Scan(&t.Name, &t.Street, &t.City)
		return t, err
	}, `SELECT canonical_name, street, city FROM customer_aliases WHERE alias = $1`, name)
	if err != nil {
		if errors.Is(err, perr.ErrNotFound) {
			return similarity.Triple{}, false, nil
		}
		return similarity.Triple{}, false, err
	}
	return t, true, nil
}

// SetAliases points names, and every alias that resolved to one of them, at the canonical identity
func (r *queries) SetAliases(ctx context.Context, names []string, to similarity.Triple) error {
	if _, err := r.q.Exec(ctx, `
		UPDATE customer_aliases
		SET canonical_name = $1, street = $2, city = $3
		WHERE canonical_name = ANY($4)`, to.Name, to.Street, to.City, names); err != nil {
		return err
	}
	if _, err := r.q.Exec(ctx, `
		INSERT INTO customer_aliases (alias, canonical_name, street, city)
		SELECT n, $1, $2, $3 FROM UNNEST($4::text[]) AS n WHERE n <> $1
		ON CONFLICT (alias) DO UPDATE
		SET canonical_name = EXCLUDED.canonical_name, street = EXCLUDED.street, city = EXCLUDED.city`,
		to.Name, to.Street, to.City, names); err != nil {
		return err
	}
	_, err := r.q.Exec(ctx, `DELETE FROM customer_aliases WHERE alias = $1`, to.Name)
	return err
}
