package domain

import (
	"context"

	"arledger/internal/platform/store"
)

// IngestPort is the idempotent write path for one record
// IngestRecordIn joins the caller's transaction
// IngestParkedIn joins it too and also links into a completed snapshot, used when a review releases a parked record
type IngestPort interface {
	IngestRecord(ctx context.Context, rec Record, period string) (IngestResult, error)
	IngestRecordIn(ctx context.Context, q store.RowQuerier, rec Record, period string) (IngestResult, error)
	IngestParkedIn(ctx context.Context, q store.RowQuerier, rec Record, period string) (IngestResult, error)
}

// Router decides whether a record is ingested directly or parked for review
type Router interface {
	Route(ctx context.Context, rec Record, period string) (Route, error)
}

// Source delivers every record visible at the document source
type Source interface {
	Scan(ctx context.Context) ([]SourceItem, error)
}

// ReconcilePort runs snapshot completion and payment detection
type ReconcilePort interface {
	CompleteSnapshot(ctx context.Context, period string) error
	ReconcilePayments(ctx context.Context, period string) ([]PaymentTransition, error)
}

// SweepPort runs a full pass over a source
type SweepPort interface {
	Sweep(ctx context.Context, src Source) (SweepReport, error)
}

// LedgerPort is the read and override surface used by the API and dunning
type LedgerPort interface {
	Status(ctx context.Context, invoiceID int64) (Status, error)
	GetInvoice(ctx context.Context, invoiceID int64) (Invoice, error)
	ListInvoices(ctx context.Context, f Filter) (Page, error)
	ListSnapshots(ctx context.Context) ([]Snapshot, error)
	LatestPeriod(ctx context.Context) (string, error)
	MarkUncollectible(ctx context.Context, invoiceID int64, reason string) error
}
