package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
)

// SQLSTATE codes the repositories translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeInvalidTextRep      = "22P02"
	codeInvalidDatetime     = "22007"
	codeDatetimeOverflow    = "22008"
)

var uniqueMessages = map[string]apperr.Error{
	UniqueUserEmail:     {Kind: apperr.KindDuplicate, Message: "user with this email already exists"},
	UniqueDoctorLicense: {Kind: apperr.KindDuplicate, Message: "doctor license number already registered"},
	UniqueNurseLicense:  {Kind: apperr.KindDuplicate, Message: "nurse license number already registered"},
	UniquePatientUser:   {Kind: apperr.KindDuplicate, Message: "patient profile already exists for user"},
	UniqueDoctorUser:    {Kind: apperr.KindDuplicate, Message: "doctor profile already exists for user"},
	UniqueNurseUser:     {Kind: apperr.KindDuplicate, Message: "nurse profile already exists for user"},
	SlotIndex:           {Kind: apperr.KindConflict, Message: "doctor already has an appointment at this time"},
}

// PgError extracts the server error from err's chain.
func PgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsUniqueViolation reports whether err violates the named unique constraint
// (any unique constraint when constraint is empty).
func IsUniqueViolation(err error, constraint string) bool {
	pgErr, ok := PgError(err)
	if !ok || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// Translate converts driver errors into apperr kinds. entity names the row
// being read or written. Errors it does not recognise are wrapped and end up
// as internal errors.
func Translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*apperr.Error); ok {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(err, apperr.KindNotFound, entity+" not found")
	}

	pgErr, ok := PgError(err)
	if !ok {
		return fmt.Errorf("%s: %w", entity, err)
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		if m, ok := uniqueMessages[pgErr.ConstraintName]; ok {
			return apperr.Wrap(err, m.Kind, m.Message)
		}
		return apperr.Wrap(err, apperr.KindDuplicate, entity+" already exists")
	case codeForeignKeyViolation:
		if fk, ok := RelationByConstraint(pgErr.ConstraintName); ok {
			return apperr.Wrap(err, apperr.KindNotFound, fk.References+" not found")
		}
		return apperr.Wrap(err, apperr.KindNotFound, "referenced entity not found")
	case codeCheckViolation:
		return apperr.Wrap(err, apperr.KindInvalidInput, fmt.Sprintf("%s violates constraint %s", entity, pgErr.ConstraintName))
	case codeNotNullViolation:
		return apperr.Wrap(err, apperr.KindInvalidInput, fmt.Sprintf("%s is required", pgErr.ColumnName))
	case codeInvalidTextRep, codeInvalidDatetime, codeDatetimeOverflow:
		return apperr.Wrap(err, apperr.KindInvalidInput, "invalid value: "+pgErr.Message)
	}
	return fmt.Errorf("%s: %w", entity, err)
}
