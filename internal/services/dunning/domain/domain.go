// Package domain defines reminder escalation types and the collaborators dunning depends on
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"arledger/internal/core/dunning"
	"arledger/internal/core/outcome"
	perr "arledger/internal/platform/errors"
)

// ErrPolicy marks a reminder request that breaks the escalation policy
var ErrPolicy = perr.New(perr.ErrorCodeInvalidArgument, "reminder policy violated")

// Dispatch states of a reminder row
const (
	DispatchPending   = "pending"
	DispatchSubmitted = "submitted"
	DispatchSent      = "sent"
	DispatchDelivered = "delivered"
	DispatchFailed    = "failed"
)

// Recommendation is one open invoice with its escalation state
type Recommendation struct {
	InvoiceID      int64          `json:"invoice_id"`
	InvoiceNumber  string         `json:"invoice_number"`
	CustomerName   string         `json:"customer_name"`
	Street         string         `json:"street"`
	City           string         `json:"city"`
	Date           time.Time      `json:"date"`
	AmountCents    int64          `json:"amount_cents"`
	MonthsOpen     int            `json:"months_open"`
	LastLevel      *dunning.Level `json:"last_level,omitempty"`
	LastReminderAt *time.Time     `json:"last_reminder_at,omitempty"`
	Recommended    *dunning.Level `json:"recommended_level,omitempty"`
	StatusText     string         `json:"status_text"`
}

// Selection asks for one reminder at a given level
type Selection struct {
	InvoiceID int64         `json:"invoice_id" validate:"required,gt=0"`
	Level     dunning.Level `json:"level" validate:"min=0,max=2"`
}

// GroupKey is what invoices of one letter share
type GroupKey struct {
	CustomerName string
	Street       string
	City         string
	Level        dunning.Level
}

// LetterItem is one invoice listed in a letter and appended behind the cover page
type LetterItem struct {
	InvoiceID     int64     `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Date          time.Time `json:"date"`
	AmountCents   int64     `json:"amount_cents"`
	SourcePath    string    `json:"source_path"`
}

// LetterRequest is sent to the renderer, one per group
type LetterRequest struct {
	GroupID      uuid.UUID     `json:"group_id"`
	CustomerName string        `json:"customer_name"`
	Street       string        `json:"street"`
	City         string        `json:"city"`
	Salutation   string        `json:"salutation"`
	Greeting     string        `json:"greeting"`
	Level        dunning.Level `json:"level"`
	Title        string        `json:"title"`
	Items        []LetterItem  `json:"items"`
	IssuedAt     time.Time     `json:"issued_at"`
}

// Renderer produces the combined letter document for a group
type Renderer interface {
	Render(ctx context.Context, req LetterRequest) ([]byte, error)
}

// ArtifactStore keeps rendered letters until they are dispatched
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// PrintSpec describes how a letter is printed and shipped
type PrintSpec struct {
	Color      string `json:"color" validate:"omitempty,oneof=1 4"`
	Mode       string `json:"mode" validate:"omitempty,oneof=simplex duplex"`
	Shipping   string `json:"shipping" validate:"omitempty,oneof=national international"`
	Registered string `json:"registered" validate:"omitempty,oneof=r1 r2"`
}

// Letter is one carrier submission
type Letter struct {
	PDF      []byte
	Spec     PrintSpec
	Notice   string
	Filename string
}

// Job is the carrier's receipt for a submitted letter
type Job struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	PriceCents int64  `json:"price_cents"`
	Mode       string `json:"mode"`
}

// Balance is the prepaid carrier account balance
type Balance struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"`
}

// PriceQuery asks the carrier for a quote
type PriceQuery struct {
	PrintSpec
	Pages int `json:"pages" validate:"required,min=1"`
}

// Carrier is the postal dispatch collaborator
type Carrier interface {
	Submit(ctx context.Context, l Letter) (Job, error)
	Balance(ctx context.Context) (Balance, error)
	Price(ctx context.Context, q PriceQuery) (int64, error)
}

// GroupOutcome reports one letter of a CreateReminders call
type GroupOutcome struct {
	GroupID      uuid.UUID     `json:"group_id"`
	CustomerName string        `json:"customer_name"`
	Level        dunning.Level `json:"level"`
	InvoiceIDs   []int64       `json:"invoice_ids"`
	ArtifactRef  string        `json:"artifact_ref,omitempty"`
	Status       string        `json:"status"`
	Reason       string        `json:"reason,omitempty"`
}

// CreateReport is the result of CreateReminders
type CreateReport struct {
	Selections []outcome.Outcome `json:"selections"`
	Groups     []GroupOutcome    `json:"groups"`
	Counts     map[string]int    `json:"counts"`
}

// DispatchOutcome reports one group submitted to the carrier
type DispatchOutcome struct {
	GroupID    uuid.UUID `json:"group_id"`
	InvoiceIDs []int64   `json:"invoice_ids"`
	JobID      string    `json:"job_id,omitempty"`
	PriceCents int64     `json:"price_cents,omitempty"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
}

// DispatchReport is the result of Dispatch
type DispatchReport struct {
	Balance    *Balance          `json:"balance,omitempty"`
	Results    []DispatchOutcome `json:"results"`
	Submitted  int               `json:"submitted"`
	Failed     int               `json:"failed"`
	TotalCents int64             `json:"total_cents"`
}

// DunningPort is the reminder surface used by the API and the dunning worker
type DunningPort interface {
	Recommendations(ctx context.Context, now time.Time) ([]Recommendation, error)
	CreateReminders(ctx context.Context, sels []Selection) (CreateReport, error)
	Dispatch(ctx context.Context, spec PrintSpec) (DispatchReport, error)
	CarrierBalance(ctx context.Context) (Balance, error)
	CarrierPrice(ctx context.Context, q PriceQuery) (int64, error)
}
