package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"schoa/pkg"
)

// Repository reads patient and financial records from PostgreSQL.  It
// only ever issues SELECTs; the tables are provisioned out of band (see
// Migrate).
type Repository struct {
	DB *sql.DB
}

var _ Store = (*Repository)(nil)

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// Open connects to the database at url and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

const patientColumns = `id, name, age, gender, condition, last_visit, admission_status, fhir_resource, clinical_notes`

func scanPatient(row interface{ Scan(...any) error }) (pkg.Patient, error) {
	var (
		p         pkg.Patient
		lastVisit time.Time
	)
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.Condition, &lastVisit,
		&p.AdmissionStatus, &p.FHIRResource, &p.ClinicalNotes)
	if err != nil {
		return pkg.Patient{}, err
	}
	p.LastVisit = lastVisit.Format("2006-01-02")
	return p, nil
}

// Patients returns every patient ordered by id.
func (r *Repository) Patients(ctx context.Context) ([]pkg.Patient, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+patientColumns+`
         FROM patients
         ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pkg.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Patient returns one patient by id.
func (r *Repository) Patient(ctx context.Context, id string) (pkg.Patient, error) {
	p, err := scanPatient(r.DB.QueryRowContext(ctx,
		`SELECT `+patientColumns+`
         FROM patients
         WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return pkg.Patient{}, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	}
	return p, err
}

// Financials returns the financial periods in chronological order.
func (r *Repository) Financials(ctx context.Context) ([]pkg.FinancialRecord, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT month, revenue, expenses, payroll, patient_count
         FROM financial_records
         ORDER BY period_start ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pkg.FinancialRecord
	for rows.Next() {
		var f pkg.FinancialRecord
		if err := rows.Scan(&f.Month, &f.Revenue, &f.Expenses, &f.Payroll, &f.PatientCount); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Snapshot reads both collections once and freezes them into a Fixture, so
// records stay fixed for the life of the process.
func Snapshot(ctx context.Context, src Store) (*Fixture, error) {
	patients, err := src.Patients(ctx)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	financials, err := src.Financials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load financials: %w", err)
	}
	return NewFixture(patients, financials)
}
