package store

import (
	"context"
	"errors"
	"testing"

	perr "arledger/internal/platform/errors"
)

type affected int64

func (a affected) String() string      { return "UPDATE" }
func (a affected) RowsAffected() int64 { return int64(a) }

// invoiceRows yields (id, number) tuples
type invoiceRows struct {
	data [][2]any
	i    int
	err  error
}

func (r *invoiceRows) Next() bool {
	if r.err != nil || r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *invoiceRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	*dest[0].(*int64) = row[0].(int64)
	*dest[1].(*string) = row[1].(string)
	return nil
}

func (r *invoiceRows) Err() error        { return r.err }
func (r *invoiceRows) Close()            {}
func (r *invoiceRows) Columns() []string { return []string{"id", "invoice_number"} }

type scalarRow struct {
	v   int64
	err error
}

func (r scalarRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.v
	return nil
}

type querier struct {
	tag     CommandTag
	execErr error
	rows    Rows
	qErr    error
	row     Row
}

func (q *querier) Exec(context.Context, string, ...any) (CommandTag, error) {
	return q.tag, q.execErr
}
func (q *querier) Query(context.Context, string, ...any) (Rows, error) { return q.rows, q.qErr }
func (q *querier) QueryRow(context.Context, string, ...any) Row        { return q.row }

type inv struct {
	ID     int64
	Number string
}

func scanInv(r Row) (inv, error) {
	var x inv
	err := r.Scan(&x.ID, &x.Number)
	return x, err
}

func TestExecOne(t *testing.T) {
	ctx := context.Background()
	if err := ExecOne(ctx, &querier{tag: affected(1)}, "UPDATE"); err != nil {
		t.Fatalf("one row: %v", err)
	}
	err := ExecOne(ctx, &querier{tag: affected(0)}, "UPDATE")
	if !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("zero rows should conflict, got %v", err)
	}
	boom := errors.New("boom")
	if err := ExecOne(ctx, &querier{execErr: boom}, "UPDATE"); !errors.Is(err, boom) {
		t.Fatalf("exec error lost: %v", err)
	}
}

func TestScalar(t *testing.T) {
	ctx := context.Background()
	n, err := Scalar[int64](ctx, &querier{row: scalarRow{v: 7}}, "SELECT")
	if err != nil || n != 7 {
		t.Fatalf("got %d %v", n, err)
	}
	if _, err := Scalar[int64](ctx, &querier{row: scalarRow{err: errors.New("no rows")}}, "SELECT"); err == nil {
		t.Fatal("scan error swallowed")
	}
}

func TestOne(t *testing.T) {
	ctx := context.Background()

	got, err := One(ctx, &querier{rows: &invoiceRows{data: [][2]any{{int64(1), "R-1"}}}}, scanInv, "SELECT")
	if err != nil || got.Number != "R-1" {
		t.Fatalf("one: %+v %v", got, err)
	}

	_, err = One(ctx, &querier{rows: &invoiceRows{}}, scanInv, "SELECT")
	if !errors.Is(err, perr.ErrNotFound) {
		t.Fatalf("empty should be not found, got %v", err)
	}

	_, err = One(ctx, &querier{rows: &invoiceRows{data: [][2]any{{int64(1), "R-1"}, {int64(2), "R-2"}}}}, scanInv, "SELECT")
	if err == nil {
		t.Fatal("two rows should fail")
	}

	iter := errors.New("iter")
	if _, err := One(ctx, &querier{rows: &invoiceRows{err: iter}}, scanInv, "SELECT"); !errors.Is(err, iter) {
		t.Fatalf("rows error lost: %v", err)
	}
}

func TestMany(t *testing.T) {
	ctx := context.Background()

	got, err := Many(ctx, &querier{rows: &invoiceRows{data: [][2]any{{int64(1), "R-1"}, {int64(2), "R-2"}}}}, scanInv, "SELECT")
	if err != nil || len(got) != 2 || got[1].ID != 2 {
		t.Fatalf("many: %+v %v", got, err)
	}

	got, err = Many(ctx, &querier{rows: &invoiceRows{}}, scanInv, "SELECT")
	if err != nil || got != nil {
		t.Fatalf("empty: %+v %v", got, err)
	}

	q := errors.New("query")
	if _, err := Many(ctx, &querier{qErr: q}, scanInv, "SELECT"); !errors.Is(err, q) {
		t.Fatalf("query error lost: %v", err)
	}
}
