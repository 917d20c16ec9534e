package pkg

import "strings"

// Gender is the administrative gender shown on the patient card.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// AdmissionStatus describes where the patient currently is in their stay.
type AdmissionStatus string

const (
	StatusInpatient  AdmissionStatus = "Inpatient"
	StatusOutpatient AdmissionStatus = "Outpatient"
	StatusDischarged AdmissionStatus = "Discharged"
)

// Patient is a read-only clinical record.  FHIRResource is an opaque
// serialized FHIR payload; it is only ever used as prompt context and is
// never parsed.
type Patient struct {
	ID              string          `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	Age             int             `json:"age" yaml:"age"`
	Gender          Gender          `json:"gender" yaml:"gender"`
	Condition       string          `json:"condition" yaml:"condition"`
	LastVisit       string          `json:"lastVisit" yaml:"lastVisit"`
	AdmissionStatus AdmissionStatus `json:"admissionStatus" yaml:"admissionStatus"`
	FHIRResource    string          `json:"fhirResource" yaml:"fhirResource"`
	ClinicalNotes   string          `json:"clinicalNotes" yaml:"clinicalNotes"`
}

// FinancialRecord holds the hospital figures for one period.  Amounts are
// whole rupiah.
type FinancialRecord struct {
	Month        string `json:"month" yaml:"month"`
	Revenue      int64  `json:"revenue" yaml:"revenue"`
	Expenses     int64  `json:"expenses" yaml:"expenses"`
	Payroll      int64  `json:"payroll" yaml:"payroll"`
	PatientCount int    `json:"patientCount" yaml:"patientCount"`
}

// SearchResult is what the semantic search hands back: the ids the model
// picked and its one-line reasoning.
type SearchResult struct {
	MatchedIDs  []string `json:"matchedIds"`
	Explanation string   `json:"explanation"`
}

// ViewState selects the active panel.
type ViewState string

const (
	ViewDashboard ViewState = "DASHBOARD"
	ViewClinical  ViewState = "CLINICAL"
	ViewFinancial ViewState = "FINANCIAL"
	ViewSearch    ViewState = "SEARCH"
)

// ViewStates lists the panels in navigation order.
var ViewStates = []ViewState{ViewDashboard, ViewClinical, ViewFinancial, ViewSearch}

// ParseViewState maps a query value onto a panel.  Anything unrecognised
// falls back to the dashboard.
func ParseViewState(s string) ViewState {
	v := ViewState(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ViewStates {
		if v == known {
			return v
		}
	}
	return ViewDashboard
}

// Dashboard carries the overview figures for the landing panel.
type Dashboard struct {
	TotalRevenue   int64            `json:"totalRevenue"`
	ActivePatients int              `json:"activePatients"`
	Inpatients     int              `json:"inpatients"`
	Latest         *FinancialRecord `json:"latest,omitempty"`
}

// NewDashboard computes the overview from the record collections.
func NewDashboard(patients []Patient, financials []FinancialRecord) Dashboard {
	d := Dashboard{ActivePatients: len(patients)}
	for _, p := range patients {
		if p.AdmissionStatus == StatusInpatient {
			d.Inpatients++
		}
	}
	for _, f := range financials {
		d.TotalRevenue += f.Revenue
	}
	if n := len(financials); n > 0 {
		latest := financials[n-1]
		d.Latest = &latest
	}
	return d
}

// NetMargin returns (revenue - expenses) / revenue, or 0 when there is no
// revenue.
func (f FinancialRecord) NetMargin() float64 {
	if f.Revenue == 0 {
		return 0
	}
	return float64(f.Revenue-f.Expenses) / float64(f.Revenue)
}
