// Package storage persists prescriptions. Stores refuse prescriptions that
// fail validation.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Skufu/medify/internal/prescription"
)

var ErrNotFound = errors.New("prescription not found")

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type PrescriptionStore interface {
	HealthChecker
	Save(ctx context.Context, p prescription.Prescription) error
	Get(ctx context.Context, id uuid.UUID) (prescription.Prescription, error)
	// ListByPatient returns the patient's prescriptions, newest first.
	ListByPatient(ctx context.Context, patientID string) ([]prescription.Prescription, error)
	Close()
}
