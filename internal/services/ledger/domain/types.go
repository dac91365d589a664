// Package domain defines the ledger types and ports
package domain

import (
	"strings"
	"time"

	"arledger/internal/core/outcome"
	perr "arledger/internal/platform/errors"
)

// Status is the derived open or paid state of an invoice
type Status string

// Derived states
const (
	Open Status = "open"
	Paid Status = "paid"
)

// Sentinel conditions
var (
	ErrSnapshotCompleted = perr.New(perr.ErrorCodeConflict, "snapshot already completed")
	ErrNoSnapshot        = perr.New(perr.ErrorCodeUnavailable, "no snapshot has been ingested yet")
)

// Record is one structured invoice as supplied by the document producer
type Record struct {
	InvoiceNumber string    `json:"invoice_number"`
	Date          time.Time `json:"date"`
	CustomerName  string    `json:"customer_name"`
	Street        string    `json:"street"`
	City          string    `json:"city"`
	AmountCents   int64     `json:"amount_cents"`
	SourcePath    string    `json:"source_path"`
}

// Validate rejects records that cannot be ingested without guessing
func (r Record) Validate() error {
	if strings.TrimSpace(r.CustomerName) == "" {
		return perr.WithField(perr.InvalidArgf("customer name is required"), "customer_name")
	}
	if r.Date.IsZero() {
		return perr.WithField(perr.InvalidArgf("invoice date is required"), "date")
	}
	if r.AmountCents <= 0 {
		return perr.WithField(perr.InvalidArgf("amount must be positive, got %d", r.AmountCents), "amount_cents")
	}
	return nil
}

// AddressIncomplete reports whether a letter could not be addressed
func (r Record) AddressIncomplete() bool {
	return strings.TrimSpace(r.Street) == "" || strings.TrimSpace(r.City) == ""
}

// Ref is a short label for logs and outcomes
func (r Record) Ref() string {
	if r.SourcePath != "" {
		return r.SourcePath
	}
	if r.InvoiceNumber != "" {
		return r.InvoiceNumber
	}
	return r.CustomerName
}

// IngestResult reports what IngestRecord changed
type IngestResult struct {
	InvoiceID  int64 `json:"invoice_id"`
	NewInvoice bool  `json:"new_invoice"`
	NewLink    bool  `json:"new_link"`
}

// Route is the outcome of handing one record to the identity resolver
type Route struct {
	IngestResult
	Parked   bool   `json:"parked"`
	ReviewID string `json:"review_id,omitempty"`
}

// PaymentTransition is one invoice that disappeared between two periods
type PaymentTransition struct {
	InvoiceID        int64  `json:"invoice_id"`
	InvoiceNumber    string `json:"invoice_number"`
	CustomerName     string `json:"customer_name"`
	AmountCents      int64  `json:"amount_cents"`
	LastSeenPeriod   string `json:"last_seen_period"`
	DetectedAtPeriod string `json:"detected_at_period"`
}

// Invoice is the ledger view of one invoice with its derived status
type Invoice struct {
	ID                int64     `json:"id"`
	Number            string    `json:"invoice_number"`
	Date              time.Time `json:"date"`
	CustomerName      string    `json:"customer_name"`
	Street            string    `json:"street"`
	City              string    `json:"city"`
	AmountCents       int64     `json:"amount_cents"`
	Currency          string    `json:"currency"`
	Uncollectible     bool      `json:"uncollectible"`
	AddressIncomplete bool      `json:"address_incomplete"`
	NameNeedsReview   bool      `json:"name_needs_review"`
	FirstPeriod       string    `json:"first_period"`
	LastPeriod        string    `json:"last_period"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

// Snapshot is one periodic scan
type Snapshot struct {
	ID           int64      `json:"id"`
	Period       string     `json:"period"`
	SourceLabel  string     `json:"source_label"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ScannedAt    time.Time  `json:"scanned_at"`
	InvoiceCount int        `json:"invoice_count"`
}

// Filter narrows ListInvoices
type Filter struct {
	Search        string `json:"search"`
	Status        string `json:"status" validate:"omitempty,oneof=open paid all"`
	Period        string `json:"period" validate:"omitempty,period"`
	Customer      string `json:"customer"`
	Uncollectible *bool  `json:"uncollectible"`
	Limit         int    `json:"limit" validate:"omitempty,min=1,max=500"`
	Offset        int    `json:"offset" validate:"omitempty,min=0"`
	Sort          string `json:"sort" validate:"omitempty,oneof=date amount customer number"`
	Direction     string `json:"direction" validate:"omitempty,oneof=asc desc"`
}

// Page is one page of invoices
type Page struct {
	Items  []Invoice `json:"items"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// SourceItem is one entry delivered by a record source, Err marks an unreadable document
type SourceItem struct {
	Path   string
	Record Record
	Err    error
}

// PeriodReport summarizes the sweep of one period
type PeriodReport struct {
	Period    string            `json:"period"`
	Skipped   string            `json:"skipped,omitempty"`
	Ingested  int               `json:"ingested"`
	NewLinks  int               `json:"new_links"`
	Parked    int               `json:"parked"`
	Failed    int               `json:"failed"`
	Payments  int               `json:"payments"`
	Completed bool              `json:"completed"`
	Outcomes  []outcome.Outcome `json:"outcomes"`
}

// SweepReport summarizes a full sweep
type SweepReport struct {
	Periods  []PeriodReport    `json:"periods"`
	Outcomes []outcome.Outcome `json:"outcomes"`
}
