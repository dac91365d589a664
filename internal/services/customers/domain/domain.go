// Package domain defines customer profiles and the gender lookup used for salutations
package domain

import (
	"context"
	"time"

	"arledger/internal/core/outcome"
)

// Profile is a customer as seen by the ledger plus its stored delivery settings
type Profile struct {
	Name              string     `json:"name"`
	CorrectedName     string     `json:"corrected_name,omitempty"`
	Street            string     `json:"street"`
	City              string     `json:"city"`
	Salutation        string     `json:"salutation,omitempty"`
	Email             string     `json:"email,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	NeverRemind       bool       `json:"never_remind"`
	BankDebit         bool       `json:"bank_debit"`
	ConfirmedDistinct bool       `json:"confirmed_distinct"`
	InvoiceCount      int        `json:"invoice_count"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// Update changes profile settings, nil fields are left alone
type Update struct {
	CorrectedName *string `json:"corrected_name" validate:"omitempty,max=200"`
	Salutation    *string `json:"salutation" validate:"omitempty,oneof=Herr Frau"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Notes         *string `json:"notes" validate:"omitempty,max=2000"`
	NeverRemind   *bool   `json:"never_remind"`
	BankDebit     *bool   `json:"bank_debit"`
}

// Fields names the settings an update touches
func (u Update) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(u.CorrectedName != nil, "corrected_name")
	add(u.Salutation != nil, "salutation")
	add(u.Email != nil, "email")
	add(u.Notes != nil, "notes")
	add(u.NeverRemind != nil, "never_remind")
	add(u.BankDebit != nil, "bank_debit")
	return out
}

// ListQuery filters the customer list
type ListQuery struct {
	Search string `json:"search"`
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=500"`
	Offset int    `json:"offset" validate:"omitempty,min=0"`
}

// GenderLookup answers in free text whether a first name is usually male or female
type GenderLookup interface {
	Gender(ctx context.Context, firstName string) (string, error)
}

// CustomersPort is the profile surface used by the API
type CustomersPort interface {
	List(ctx context.Context, q ListQuery) ([]Profile, int, error)
	Get(ctx context.Context, name string) (Profile, error)
	Update(ctx context.Context, name string, u Update) (Profile, error)
	DetermineSalutations(ctx context.Context) ([]outcome.Outcome, error)
}
