// Package records reads the producer's extracted invoice records from a month folder tree
package records

import (
	"strings"
	"time"

	"arledger/internal/core/money"
	perr "arledger/internal/platform/errors"
	ldom "arledger/internal/services/ledger/domain"
)

// Wire is one record as the producer writes it, Amount is free text, AmountCents wins when set
type Wire struct {
	SourcePath    string `json:"source_path"`
	InvoiceNumber string `json:"invoice_number"`
	Date          string `json:"date"`
	CustomerName  string `json:"customer_name"`
	Street        string `json:"street"`
	City          string `json:"city"`
	Amount        string `json:"amount"`
	AmountCents   *int64 `json:"amount_cents"`
}

var dateLayouts = []string{"02.01.2006", "2.1.2006", "2006-01-02", time.RFC3339}

// Record converts w, failures carry the offending field
func (w Wire) Record() (ldom.Record, error) {
	rec := ldom.Record{
		InvoiceNumber: strings.TrimSpace(w.InvoiceNumber),
		CustomerName:  strings.TrimSpace(w.CustomerName),
		Street:        strings.TrimSpace(w.Street),
		City:          strings.TrimSpace(w.City),
		SourcePath:    strings.TrimSpace(w.SourcePath),
	}
	d, err := parseDate(w.Date)
	if err != nil {
		return ldom.Record{}, perr.WithField(err, "date")
	}
	rec.Date = d

	switch {
	case w.AmountCents != nil:
		rec.AmountCents = *w.AmountCents
	case strings.TrimSpace(w.Amount) != "":
		c, err := money.Parse(w.Amount)
		if err != nil {
			return ldom.Record{}, perr.WithField(perr.Wrap(err, perr.ErrorCodeInvalidArgument, "invalid amount"), "amount")
		}
		rec.AmountCents = int64(c)
	default:
		return ldom.Record{}, perr.WithField(perr.InvalidArgf("amount is required"), "amount")
	}
	return rec, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, perr.InvalidArgf("date is required")
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, perr.InvalidArgf("date %q: want DD.MM.YYYY or YYYY-MM-DD", s)
}
