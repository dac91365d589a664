package events

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	perr "arledger/internal/platform/errors"
	"arledger/internal/platform/store"
	hdom "arledger/internal/services/history/domain"
)

// DefaultTable receives the analytical copy of the journal
const DefaultTable = "history_events"

// replays after a failed relay are collapsed by the replacing engine on id
const createTable = `CREATE TABLE IF NOT EXISTS %s (
	id          Int64,
	invoice_id  Int64,
	event_type  LowCardinality(String),
	metadata    String,
	created_at  DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree
ORDER BY (invoice_id, id)`

var tableRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ClickHouse appends events to a table for reporting
type ClickHouse struct {
	ch    store.Clickhouse
	table string
}

var _ hdom.Sink = (*ClickHouse)(nil)

// NewClickHouse uses DefaultTable when table is empty
func NewClickHouse(ch store.Clickhouse, table string) (*ClickHouse, error) {
	if ch == nil {
		return nil, perr.InvalidArgf("events: nil clickhouse")
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableRe.MatchString(table) {
		return nil, perr.InvalidArgf("events: invalid table name %q", table)
	}
	return &ClickHouse{ch: ch, table: table}, nil
}

// Name labels the sink in logs and metrics
func (c *ClickHouse) Name() string { return "clickhouse" }

// EnsureTable creates the target table when missing
func (c *ClickHouse) EnsureTable(ctx context.Context) error {
	if err := c.ch.Exec(ctx, fmt.Sprintf(createTable, c.table)); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "events: create table %s", c.table)
	}
	return nil
}

// Publish inserts the batch in one block
func (c *ClickHouse) Publish(ctx context.Context, evs []hdom.Event) error {
	if len(evs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(evs))
	for _, e := range evs {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeJSON, "events: encode metadata of %d", e.ID)
		}
		rows = append(rows, []any{e.ID, e.InvoiceID, string(e.Type), string(meta), e.CreatedAt.UTC()})
	}
	if err := c.ch.Insert(ctx, c.table, rows); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "events: insert into %s", c.table)
	}
	return nil
}
