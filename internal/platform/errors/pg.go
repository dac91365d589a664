package errors

import (
	"context"
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repos can run into
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgStringTooLong       = "22001"
	pgInvalidText         = "22P02"
	pgSerialization       = "40001"
	pgDeadlock            = "40P01"
	pgLockNotAvailable    = "55P03"
	pgReadOnly            = "25006"
	pgCannotConnectNow    = "57P03"
)

func pgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	ok := stderrs.As(err, &pe)
	return pe, ok
}

func codeForSQLState(state string) ErrorCode {
	switch state {
	case pgUniqueViolation:
		return ErrorCodeDuplicateKey
	case pgForeignKeyViolation, pgStringTooLong, pgInvalidText:
		return ErrorCodeInvalidArgument
	case pgNotNullViolation, pgCheckViolation:
		return ErrorCodeValidation
	case pgReadOnly, pgCannotConnectNow:
		return ErrorCodeUnavailable
	}
	return ErrorCodeDB
}

// Classify leaves coded errors alone and wraps everything else with msg
// postgres errors get a code from their SQLSTATE and the column as field
func Classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	pe, ok := pgError(err)
	if !ok {
		return Wrap(err, ErrorCodeDB, msg)
	}
	out := &Error{code: codeForSQLState(pe.Code), msg: msg, orig: err}
	if col := strings.TrimSpace(pe.ColumnName); col != "" {
		out.field = col
	}
	return out
}

// Retryable reports transient contention, the sweep retries a period on it
// cancellation is never retryable
func Retryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pe, ok := pgError(err); ok {
		switch pe.Code {
		case pgSerialization, pgDeadlock, pgLockNotAvailable:
			return true
		}
		return false
	}
	// pgx reports some aborts as plain text on commit
	s := strings.ToLower(Root(err).Error())
	for _, frag := range []string{
		"commit unexpectedly resulted in rollback",
		"deadlock detected",
		"could not serialize access",
		"canceling statement due to lock timeout",
		"terminating connection due to administrator command",
	} {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}
