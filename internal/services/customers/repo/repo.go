// Package repo reads customers from invoices and profiles and upserts profile settings
package repo

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"arledger/internal/modkit/repokit"
	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/store"
	"arledger/internal/services/customers/domain"
)

// Repo is the customers persistence surface
type Repo interface {
	List(ctx context.Context, q domain.ListQuery) ([]domain.Profile, int, error)
	Get(ctx context.Context, name string) (domain.Profile, error)
	Upsert(ctx context.Context, name string, u domain.Update) error
	InvoiceIDs(ctx context.Context, name string) ([]int64, error)
	MissingSalutation(ctx context.Context) ([]string, error)
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

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// customersCTE merges names known from invoices with names that only have a profile
const customersCTE = `WITH known AS (
	SELECT customer_name AS name, MIN(customer_street) AS street, MIN(customer_city) AS city, COUNT(*) AS n
	FROM invoices GROUP BY customer_name
), names AS (
	SELECT name FROM known UNION SELECT customer_name FROM customer_profiles
)`

func base(cols ...string) sq.SelectBuilder {
	return psql.Select(cols...).
		Prefix(customersCTE).
		From("names").
		LeftJoin("known k ON k.name = names.name").
		LeftJoin("customer_profiles p ON p.customer_name = names.name")
}

var profileCols = []string{
	"names.name",
	"COALESCE(p.corrected_name, '')",
	"COALESCE(NULLIF(p.street, ''), k.street, '')",
	"COALESCE(NULLIF(p.city, ''), k.city, '')",
	"COALESCE(p.salutation, '')",
	"COALESCE(p.email, '')",
	"COALESCE(p.notes, '')",
	"COALESCE(p.never_remind, FALSE)",
	"COALESCE(p.bank_debit, FALSE)",
	"COALESCE(p.confirmed_distinct, FALSE)",
	"COALESCE(k.n, 0)::int",
	"p.updated_at",
}

func scanProfile(row store.Row) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.Name, &p.CorrectedName, &p.Street, &p.City, &p.Salutation, &p.Email, &p.Notes,
		&p.NeverRemind, &p.BankDebit, &p.ConfirmedDistinct, &p.InvoiceCount, &p.UpdatedAt)
	return p, err
}

func search(b sq.SelectBuilder, s string) sq.SelectBuilder {
	if s == "" {
		return b
	}
	like := "%" + s + "%"
	return b.Where(sq.Or{
		sq.ILike{"names.name": like},
		sq.ILike{"p.corrected_name": like},
		sq.ILike{"k.city": like},
	})
}

func (r *queries) List(ctx context.Context, q domain.ListQuery) ([]domain.Profile, int, error) {
	cq, cargs, err := search(base("COUNT(*)"), q.Search).ToSql()
	if err != nil {
		return nil, 0, err
	}
	total, err := store.Scalar[int64](ctx, r.q, cq, cargs...)
	if err != nil {
		return nil, 0, err
	}
	lq, largs, err := search(base(profileCols...), q.Search).
		OrderBy("names.name").
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	items, err := store.Many(ctx, r.q, scanProfile, lq, largs...)
	return items, int(total), err
}

func (r *queries) Get(ctx context.Context, name string) (domain.Profile, error) {
	query, args, err := base(profileCols...).Where(sq.Eq{"names.name": name}).ToSql()
	if err != nil {
		return domain.Profile{}, err
	}
	p, err := store.One(ctx, r.q, scanProfile, query, args...)
	if errors.Is(err, perr.ErrNotFound) {
		return p, perr.NotFoundf("customer %q not found", name)
	}
	return p, err
}

// Upsert writes the set fields of u, creating the profile on first change
func (r *queries) Upsert(ctx context.Context, name string, u domain.Update) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO customer_profiles (customer_name, corrected_name, salutation, email, notes, never_remind, bank_debit)
		VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, ''), COALESCE($5, ''),
		        COALESCE($6, FALSE), COALESCE($7, FALSE))
		ON CONFLICT (customer_name) DO UPDATE
		SET corrected_name = COALESCE($2, customer_profiles.corrected_name),
		    salutation     = COALESCE($3, customer_profiles.salutation),
		    email          = COALESCE($4, customer_profiles.email),
		    notes          = COALESCE($5, customer_profiles.notes),
		    never_remind   = COALESCE($6, customer_profiles.never_remind),
		    bank_debit     = COALESCE($7, customer_profiles.bank_debit),
		    updated_at     = NOW()`,
		name, u.CorrectedName, u.Salutation, u.Email, u.Notes, u.NeverRemind, u.BankDebit)
	return err
}

func (r *queries) InvoiceIDs(ctx context.Context, name string) ([]int64, error) {
	return store.Many(ctx, r.q, func(row store.Row) (int64, error) {
		var id int64
		err := row.Scan(&id)
		return id, err
	}, `SELECT id FROM invoices WHERE customer_name = $1 ORDER BY id`, name)
}

// MissingSalutation lists customers with invoices whose profile has no salutation yet
func (r *queries) MissingSalutation(ctx context.Context) ([]string, error) {
	return store.Many(ctx, r.q, func(row store.Row) (string, error) {
		var s string
		err := row.Scan(&s)
		return s, err
	}, `
		SELECT DISTINCT i.customer_name
		FROM invoices i
		LEFT JOIN customer_profiles p ON p.customer_name = i.customer_name
		WHERE COALESCE(p.salutation, '') = ''
		ORDER BY i.customer_name`)
}
