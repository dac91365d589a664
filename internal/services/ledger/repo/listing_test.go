package repo

import (
	"strings"
	"testing"

	"arledger/internal/services/ledger/domain"
)

func TestApplyFilter_BuildsPlaceholders(t *testing.T) {
	t.Parallel()

	paid := true
	b := applyFilter(invoiceBase(invoiceCols...), domain.Filter{
		Search:        "müller",
		Status:        "open",
		Period:        "2025-02",
		Customer:      "Jon Müller",
		Uncollectible: &paid,
	})
	sql, args, err := b.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	for _, want := range []string{
		"WITH latest AS",
		"span.last_period = latest.period",
		"ILIKE $1",
		"sf.period = $4",
		"i.customer_name = $5",
		"i.uncollectible = $6",
		"pr.status = 'pending'",
		"jsonb_build_object('name', i.customer_name)",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("sql missing %q:\n%s", want, sql)
		}
	}
	if len(args) != 6 {
		t.Fatalf("args = %v, want 6", args)
	}
}

func TestApplyFilter_PaidUsesStrictLess(t *testing.T) {
	t.Parallel()

	sql, _, err := applyFilter(invoiceBase("COUNT(*)"), domain.Filter{Status: "paid"}).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.Contains(sql, "span.last_period < latest.period") {
		t.Fatalf("paid filter missing:\n%s", sql)
	}
}
