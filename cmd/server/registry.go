package main

import (
	"context"
	"time"

	patientservice "esperanza/internal/patient/service"
	queueservice "esperanza/internal/queue/service"
	"esperanza/pkg/domain"
)

// patientRegistry adapts the patient service to the narrow registry
// interfaces the vitals and queue services depend on.
type patientRegistry struct {
	patients *patientservice.Service
}

func (r *patientRegistry) Exists(ctx context.Context, id domain.PatientID) (bool, error) {
	return r.patients.Exists(ctx, id)
}

func (r *patientRegistry) Info(ctx context.Context, id domain.PatientID) (*queueservice.PatientInfo, error) {
	age, err := r.patients.Age(ctx, id)
	if err != nil {
		return nil, err
	}
	return &queueservice.PatientInfo{ID: id, Age: age}, nil
}

func (r *patientRegistry) TouchLastVisit(ctx context.Context, id domain.PatientID, at time.Time) error {
	return r.patients.TouchLastVisit(ctx, id, at)
}
