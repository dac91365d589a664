// Package domain defines the invoice history journal types and ports
package domain

import (
	"context"
	"time"
)

// EventType names a journal entry kind
type EventType string

// Journal entry kinds
const (
	Import              EventType = "IMPORT"
	PaymentReceived     EventType = "PAYMENT_RECEIVED"
	ReminderCreated     EventType = "REMINDER_CREATED"
	ReminderSent        EventType = "REMINDER_SENT"
	CustomerMerged      EventType = "CUSTOMER_MERGED"
	MarkedUncollectible EventType = "MARKED_UNCOLLECTIBLE"
	CustomerUpdated     EventType = "CUSTOMER_UPDATED"
)

// Event is one append only journal entry for an invoice
type Event struct {
	ID          int64          `json:"id"`
	InvoiceID   int64          `json:"invoice_id"`
	Type        EventType      `json:"event_type"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

// Sink receives relayed events, a failing sink keeps the batch unpublished
type Sink interface {
	Name() string
	Publish(ctx context.Context, evs []Event) error
}

// RelayReport summarizes one relay pass
type RelayReport struct {
	Claimed   int `json:"claimed"`
	Published int `json:"published"`
}

// HistoryPort is the read surface other modules and the API use
type HistoryPort interface {
	ListForInvoice(ctx context.Context, invoiceID int64) ([]Event, error)
	HasEvent(ctx context.Context, invoiceID int64, typ EventType) (bool, error)
}

// RelayPort drains the outbox into the configured sinks
type RelayPort interface {
	Relay(ctx context.Context, batch int) (RelayReport, error)
}
