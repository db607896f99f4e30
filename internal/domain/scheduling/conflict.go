package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
)

// ConflictChecker decides whether a doctor can take an appointment at a
// given start. Two appointments conflict only when their date and start
// time are equal; durations are not compared.
type ConflictChecker struct {
	doctors DoctorLookup
	appts   AppointmentRepository
}

func NewConflictChecker(doctors DoctorLookup, appts AppointmentRepository) *ConflictChecker {
	return &ConflictChecker{doctors: doctors, appts: appts}
}

// HasConflict reports whether another active appointment occupies the slot.
// exclude lets an appointment be rescheduled onto its own slot.
func (c *ConflictChecker) HasConflict(ctx context.Context, doctorID uuid.UUID, date, clock string, exclude *uuid.UUID) (bool, error) {
	return c.appts.HasActiveAt(ctx, doctorID, date, clock, exclude)
}

// CheckSlot returns not-found for an unknown doctor, invalid-state for a
// doctor not taking appointments and conflict for a taken slot.
func (c *ConflictChecker) CheckSlot(ctx context.Context, doctorID uuid.UUID, date, clock string, exclude *uuid.UUID) error {
	doc, err := c.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return err
	}
	if !doc.IsAvailable {
		return apperr.InvalidState("doctor is not available for appointments")
	}
	taken, err := c.HasConflict(ctx, doctorID, date, clock, exclude)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict("doctor already has an appointment at this time")
	}
	return nil
}
