package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "one_active_return_per_order"}

	if !IsUniqueViolation(pgErr, "") {
		t.Error("expected unique violation without constraint filter")
	}
	if !IsUniqueViolation(pgErr, "one_active_return_per_order") {
		t.Error("expected match on constraint name")
	}
	if IsUniqueViolation(pgErr, "other_constraint") {
		t.Error("expected mismatch on different constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violation is not a unique violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: webhook_events.event_id"), "") {
		t.Error("sqlite message should be detected")
	}
	if IsUniqueViolation(nil, "") {
		t.Error("nil error is not a violation")
	}
}
