package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoa/pkg"
)

// queryFunc answers one SELECT with column names and rows.
type queryFunc func(query string, args []driver.Value) ([]string, [][]driver.Value, error)

// scriptedConnector is a database/sql connector whose statements are
// answered by a queryFunc.  Every query text is recorded.
type scriptedConnector struct {
	answer queryFunc

	mu      sync.Mutex
	queries []string
}

func (c *scriptedConnector) Connect(context.Context) (driver.Conn, error) {
	return &scriptedConn{c: c}, nil
}

func (c *scriptedConnector) Driver() driver.Driver { return scriptedDriver{} }

func (c *scriptedConnector) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

type scriptedDriver struct{}

func (scriptedDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("open through sql.OpenDB")
}

type scriptedConn struct{ c *scriptedConnector }

func (s *scriptedConn) Prepare(query string) (driver.Stmt, error) {
	return &scriptedStmt{c: s.c, query: query}, nil
}
func (s *scriptedConn) Close() error              { return nil }
func (s *scriptedConn) Begin() (driver.Tx, error) { return nil, errors.New("read only") }

type scriptedStmt struct {
	c     *scriptedConnector
	query string
}

func (s *scriptedStmt) Close() error  { return nil }
func (s *scriptedStmt) NumInput() int { return -1 }
func (s *scriptedStmt) Exec([]driver.Value) (driver.Result, error) {
	return nil, errors.New("read only")
}

func (s *scriptedStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.c.mu.Lock()
	s.c.queries = append(s.c.queries, s.query)
	s.c.mu.Unlock()
	cols, rows, err := s.c.answer(s.query, args)
	if err != nil {
		return nil, err
	}
	return &scriptedRows{cols: cols, rows: rows}, nil
}

type scriptedRows struct {
	cols []string
	rows [][]driver.Value
	next int
}

func (r *scriptedRows) Columns() []string { return r.cols }
func (r *scriptedRows) Close() error      { return nil }
func (r *scriptedRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}

var (
	patientCols   = strings.Split(strings.ReplaceAll(patientColumns, " ", ""), ",")
	financialCols = []string{"month", "revenue", "expenses", "payroll", "patient_count"}
)

func patientRow(id, name string) []driver.Value {
	return []driver.Value{
		id, name, int64(52), "Male", "Hypertension",
		time.Date(2023, 10, 15, 0, 0, 0, 0, time.UTC),
		"Outpatient", `{"resourceType":"Patient"}`, "BP 150/95",
	}
}

func newScriptedRepo(t *testing.T, answer queryFunc) (*Repository, *scriptedConnector) {
	t.Helper()
	conn := &scriptedConnector{answer: answer}
	sqlDB := sql.OpenDB(conn)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewRepository(sqlDB), conn
}

func TestRepository_Patients(t *testing.T) {
	repo, conn := newScriptedRepo(t, func(q string, _ []driver.Value) ([]string, [][]driver.Value, error) {
		return patientCols, [][]driver.Value{
			patientRow("P-1001", "Budi Santoso"),
			patientRow("P-1002", "Siti Aminah"),
		}, nil
	})

	patients, err := repo.Patients(context.Background())
	require.NoError(t, err)
	require.Len(t, patients, 2)
	p := patients[0]
	assert.Equal(t, "P-1001", p.ID)
	assert.Equal(t, 52, p.Age)
	assert.Equal(t, pkg.GenderMale, p.Gender)
	assert.Equal(t, pkg.StatusOutpatient, p.AdmissionStatus)
	assert.Equal(t, "2023-10-15", p.LastVisit)
	assert.Equal(t, "BP 150/95", p.ClinicalNotes)
	assert.Equal(t, "Siti Aminah", patients[1].Name)

	queries := conn.seen()
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0], "ORDER BY id ASC")
}

func TestRepository_PatientNotFound(t *testing.T) {
	var gotArgs []driver.Value
	repo, _ := newScriptedRepo(t, func(q string, args []driver.Value) ([]string, [][]driver.Value, error) {
		gotArgs = args
		return patientCols, nil, nil
	})

	_, err := repo.Patient(context.Background(), "P-404")
	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.Equal(t, []driver.Value{"P-404"}, gotArgs)
}

func TestRepository_Patient(t *testing.T) {
	repo, _ := newScriptedRepo(t, func(q string, args []driver.Value) ([]string, [][]driver.Value, error) {
		return patientCols, [][]driver.Value{patientRow("P-1003", "Ahmad Rizki")}, nil
	})

	p, err := repo.Patient(context.Background(), "P-1003")
	require.NoError(t, err)
	assert.Equal(t, "Ahmad Rizki", p.Name)
}

func TestRepository_Financials(t *testing.T) {
	repo, conn := newScriptedRepo(t, func(q string, _ []driver.Value) ([]string, [][]driver.Value, error) {
		return financialCols, [][]driver.Value{
			{"Jun", int64(1200000000), int64(900000000), int64(400000000), int64(450)},
			{"Jul", int64(1350000000), int64(950000000), int64(410000000), int64(480)},
		}, nil
	})

	records, err := repo.Financials(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, pkg.FinancialRecord{
		Month: "Jun", Revenue: 1200000000, Expenses: 900000000, Payroll: 400000000, PatientCount: 450,
	}, records[0])
	assert.Equal(t, "Jul", records[1].Month)

	queries := conn.seen()
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0], "ORDER BY period_start ASC")
}

func TestRepository_QueryError(t *testing.T) {
	boom := errors.New("connection reset")
	repo, _ := newScriptedRepo(t, func(string, []driver.Value) ([]string, [][]driver.Value, error) {
		return nil, nil, boom
	})

	_, err := repo.Patients(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = repo.Financials(context.Background())
	assert.ErrorIs(t, err, boom)
}

// failingStore fails whichever collection has an error set.
type failingStore struct {
	patientsErr, financialsErr error
}

func (s failingStore) Patients(context.Context) ([]pkg.Patient, error) {
	return []pkg.Patient{{ID: "P-1"}}, s.patientsErr
}

func (s failingStore) Patient(context.Context, string) (pkg.Patient, error) {
	return pkg.Patient{}, ErrPatientNotFound
}

func (s failingStore) Financials(context.Context) ([]pkg.FinancialRecord, error) {
	return []pkg.FinancialRecord{{Month: "Jan"}}, s.financialsErr
}

func TestSnapshot_SourceErrors(t *testing.T) {
	boom := errors.New("timeout")

	_, err := Snapshot(context.Background(), failingStore{patientsErr: boom})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "load patients")

	_, err = Snapshot(context.Background(), failingStore{financialsErr: boom})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "load financials")

	snap, err := Snapshot(context.Background(), failingStore{})
	require.NoError(t, err)
	p, err := snap.Patient(context.Background(), "P-1")
	require.NoError(t, err)
	assert.Equal(t, "P-1", p.ID)
}
