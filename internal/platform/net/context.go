// Package net carries request identity through contexts and shapes reply bodies
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type userKey struct{}

// WithRequestID stores id where chi's RequestID middleware would
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, chimw.RequestIDKey, id)
}

// RequestID is empty outside a request
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// WithUser records the authenticated subject
func WithUser(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey{}, id)
}

// UserID returns the subject set by WithUser
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}
