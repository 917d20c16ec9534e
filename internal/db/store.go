package db

import (
	"context"
	"errors"
	"fmt"

	"schoa/pkg"
)

// ErrPatientNotFound is returned when no patient has the requested id.
var ErrPatientNotFound = errors.New("patient not found")

// Store is the read-only record source handed to the view layer.
type Store interface {
	Patients(ctx context.Context) ([]pkg.Patient, error)
	Patient(ctx context.Context, id string) (pkg.Patient, error)
	Financials(ctx context.Context) ([]pkg.FinancialRecord, error)
}

// Fixture is an in-memory Store.  Its collections are fixed at
// construction and every accessor returns a copy.
type Fixture struct {
	patients   []pkg.Patient
	byID       map[string]int
	financials []pkg.FinancialRecord
}

var _ Store = (*Fixture)(nil)

// NewFixture validates and wraps the given collections.  Patient ids and
// financial months must be non-empty and unique.
func NewFixture(patients []pkg.Patient, financials []pkg.FinancialRecord) (*Fixture, error) {
	f := &Fixture{
		patients:   append([]pkg.Patient(nil), patients...),
		byID:       make(map[string]int, len(patients)),
		financials: append([]pkg.FinancialRecord(nil), financials...),
	}
	for i, p := range f.patients {
		if p.ID == "" {
			return nil, fmt.Errorf("patient %d: missing id", i)
		}
		if _, dup := f.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate patient id %q", p.ID)
		}
		f.byID[p.ID] = i
	}
	months := make(map[string]struct{}, len(f.financials))
	for i, r := range f.financials {
		if r.Month == "" {
			return nil, fmt.Errorf("financial record %d: missing month", i)
		}
		if _, dup := months[r.Month]; dup {
			return nil, fmt.Errorf("duplicate financial month %q", r.Month)
		}
		months[r.Month] = struct{}{}
	}
	return f, nil
}

// Patients returns a copy of every patient in fixture order.
func (f *Fixture) Patients(ctx context.Context) ([]pkg.Patient, error) {
	return append([]pkg.Patient(nil), f.patients...), nil
}

// Patient returns the patient with the given id, or ErrPatientNotFound.
func (f *Fixture) Patient(ctx context.Context, id string) (pkg.Patient, error) {
	i, ok := f.byID[id]
	if !ok {
		return pkg.Patient{}, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}
	return f.patients[i], nil
}

// Financials returns a copy of the financial periods, oldest first.
func (f *Fixture) Financials(ctx context.Context) ([]pkg.FinancialRecord, error) {
	return append([]pkg.FinancialRecord(nil), f.financials...), nil
}
