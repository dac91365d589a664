package store

import (
	"context"

	"arledger/internal/platform/store/ch"
)

// chSeam is *ch.CH with Query narrowed to store.Rows
type chSeam struct{ *ch.CH }

var _ Clickhouse = chSeam{}

func (c chSeam) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := c.CH.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return chRows{r}, nil
}

// chRows drops the error ch.Rows returns from Close
type chRows struct{ ch.Rows }

func (r chRows) Close() { _ = r.Rows.Close() }
