// Package domain defines identity resolution types and ports
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"arledger/internal/core/similarity"
	perr "arledger/internal/platform/errors"
	ldom "arledger/internal/services/ledger/domain"
)

// Action chooses how a parked record is resolved
type Action string

// Resolution actions
const (
	CreateNew         Action = "createNew"
	MergeWithExisting Action = "mergeWithExisting"
)

// Review states
const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
)

// ErrReviewResolved means the review was already resolved once
var ErrReviewResolved = perr.New(perr.ErrorCodeConflict, "review already resolved")

// Candidate is an existing identity that resembles a new record
type Candidate struct {
	Name         string          `json:"name"`
	Street       string          `json:"street"`
	City         string          `json:"city"`
	Score        float64         `json:"score"`
	InvoiceCount int             `json:"invoice_count"`
	NameDiff     []similarity.Op `json:"name_diff"`
}

// Triple returns the candidate's identity fields
func (c Candidate) Triple() similarity.Triple {
	return similarity.Triple{Name: c.Name, Street: c.Street, City: c.City}
}

// Review is a record parked until a human decides its identity
type Review struct {
	ID              uuid.UUID   `json:"id"`
	Record          ldom.Record `json:"record"`
	Period          string      `json:"period"`
	SourcePath      string      `json:"source_path"`
	Candidates      []Candidate `json:"candidates"`
	Status          string      `json:"status"`
	Resolution      Action      `json:"resolution,omitempty"`
	ResolvedProfile string      `json:"resolved_profile,omitempty"`
	ResolvedStreet  string      `json:"resolved_street,omitempty"`
	ResolvedCity    string      `json:"resolved_city,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty"`
}

// ResolveArgs carries a reviewer's decision
type ResolveArgs struct {
	Action        Action `json:"action" validate:"required,oneof=createNew mergeWithExisting"`
	ChosenName    string `json:"chosen_name"`
	PreferNewData bool   `json:"prefer_new_data"`
}

// Resolution reports what ResolvePending changed
type Resolution struct {
	ReviewID uuid.UUID         `json:"review_id"`
	Action   Action            `json:"action"`
	Profile  string            `json:"profile"`
	Ingest   ldom.IngestResult `json:"ingest"`
	Merged   []int64           `json:"merged_invoice_ids"`
}

// CandidateQuery asks for identities resembling a triple
type CandidateQuery struct {
	Name      string  `json:"name" validate:"required"`
	Street    string  `json:"street"`
	City      string  `json:"city"`
	Threshold float64 `json:"threshold" validate:"omitempty,min=0,max=100"`
}

// IdentityPort is the resolver surface used by the sweep and the API
type IdentityPort interface {
	ldom.Router
	FindCandidates(ctx context.Context, q CandidateQuery) ([]Candidate, error)
	ListPending(ctx context.Context) ([]Review, error)
	GetPending(ctx context.Context, id uuid.UUID) (Review, error)
	ResolvePending(ctx context.Context, id uuid.UUID, args ResolveArgs) (Resolution, error)
}
