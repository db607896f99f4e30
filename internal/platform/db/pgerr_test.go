package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperr.Kind
		wantMsg  string
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound, "bill not found"},
		{"email unique", &pgconn.PgError{Code: "23505", ConstraintName: UniqueUserEmail}, apperr.KindDuplicate, "user with this email already exists"},
		{"slot index", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: SlotIndex}), apperr.KindConflict, "doctor already has an appointment at this time"},
		{"unknown unique", &pgconn.PgError{Code: "23505", ConstraintName: "other_key"}, apperr.KindDuplicate, "bill already exists"},
		{"fk", &pgconn.PgError{Code: "23503", ConstraintName: "bills_patient_id_fkey"}, apperr.KindNotFound, "patient not found"},
		{"check", &pgconn.PgError{Code: "23514", ConstraintName: "prescriptions_refills_check"}, apperr.KindInvalidInput, "bill violates constraint prescriptions_refills_check"},
		{"plain", errors.New("connection reset"), apperr.KindInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(tt.err, "bill")
			if k := apperr.KindOf(got); k != tt.wantKind {
				t.Fatalf("expected kind %s, got %s (%v)", tt.wantKind, k, got)
			}
			var ae *apperr.Error
			if tt.wantMsg != "" && errors.As(got, &ae) && ae.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, ae.Message)
			}
		})
	}
}

func TestTranslate_Nil(t *testing.T) {
	if err := Translate(nil, "bill"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestTranslate_KeepsAppErr(t *testing.T) {
	in := apperr.Forbidden("nope")
	if got := Translate(in, "bill"); got != in {
		t.Errorf("expected app error to pass through unchanged, got %v", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505", ConstraintName: SlotIndex})
	if !IsUniqueViolation(err, SlotIndex) {
		t.Error("expected slot violation to match")
	}
	if IsUniqueViolation(err, UniqueUserEmail) {
		t.Error("expected other constraint not to match")
	}
	if !IsUniqueViolation(err, "") {
		t.Error("expected any-constraint match")
	}
}

func TestRelations_Unique(t *testing.T) {
	seen := map[string]bool{}
	for _, fk := range Relations {
		if seen[fk.Constraint] {
			t.Errorf("duplicate constraint %s", fk.Constraint)
		}
		seen[fk.Constraint] = true
		if _, ok := RelationByConstraint(fk.Constraint); !ok {
			t.Errorf("lookup failed for %s", fk.Constraint)
		}
	}
}
