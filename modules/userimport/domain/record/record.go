package record

import (
	"github.com/iota-uz/userimport/modules/userimport/domain/field"
)

type Status string

const (
	StatusValid Status = "valid"
	StatusError Status = "error"
)

// ImportRecord is one candidate user read from a data row. Row is 1-based
// over the data rows left after blank-row removal.
type ImportRecord struct {
	Row int `json:"row"`

	FirstName           string `json:"first_name,omitempty"`
	MiddleName          string `json:"middle_name,omitempty"`
	LastName            string `json:"last_name,omitempty"`
	Email               string `json:"email,omitempty"`
	PhoneNumber         string `json:"phone_number,omitempty"`
	Address             string `json:"address,omitempty"`
	AvatarURL           string `json:"avatar_url,omitempty"`
	Gender              string `json:"gender,omitempty"`
	Role                string `json:"role,omitempty"`
	DateOfBirth         string `json:"date_of_birth,omitempty"`
	EnrollmentDate      string `json:"enrollment_date,omitempty"`
	TrainingBatch       string `json:"training_batch,omitempty"`
	PassportNo          string `json:"passport_no,omitempty"`
	Nation              string `json:"nation,omitempty"`
	Specialization      string `json:"specialization,omitempty"`
	CertificationNumber string `json:"certification_number,omitempty"`
	YearsOfExperience   string `json:"years_of_experience,omitempty"`
	Bio                 string `json:"bio,omitempty"`

	// GenderCode is MALE or FEMALE; unrecognized and empty tokens default to MALE.
	GenderCode string `json:"-"`
	// DateInputs keeps the cleaned cell text of date fields so that an
	// unparseable value can be told apart from an absent one.
	DateInputs map[field.Field]string `json:"-"`

	Errors []string `json:"errors"`
	Status Status   `json:"status"`
}

// New returns an empty record for the given data row.
func New(row int) *ImportRecord {
	return &ImportRecord{
		Row:        row,
		DateInputs: map[field.Field]string{},
		Status:     StatusValid,
	}
}

// Get returns the value stored for f.
func (r *ImportRecord) Get(f field.Field) string {
	if p := r.ptr(f); p != nil {
		return *p
	}
	return ""
}

// Set stores v for f. Unknown fields are ignored.
func (r *ImportRecord) Set(f field.Field, v string) {
	if p := r.ptr(f); p != nil {
		*p = v
	}
}

func (r *ImportRecord) ptr(f field.Field) *string {
	switch f {
	case field.FirstName:
		return &r.FirstName
	case field.MiddleName:
		return &r.MiddleName
	case field.LastName:
		return &r.LastName
	case field.Email:
		return &r.Email
	case field.PhoneNumber:
		return &r.PhoneNumber
	case field.Address:
		return &r.Address
	case field.AvatarURL:
		return &r.AvatarURL
	case field.Gender:
		return &r.Gender
	case field.Role:
		return &r.Role
	case field.DateOfBirth:
		return &r.DateOfBirth
	case field.EnrollmentDate:
		return &r.EnrollmentDate
	case field.TrainingBatch:
		return &r.TrainingBatch
	case field.PassportNo:
		return &r.PassportNo
	case field.Nation:
		return &r.Nation
	case field.Specialization:
		return &r.Specialization
	case field.CertificationNumber:
		return &r.CertificationNumber
	case field.YearsOfExperience:
		return &r.YearsOfExperience
	case field.Bio:
		return &r.Bio
	default:
		return nil
	}
}

// DateInput returns the cleaned cell text a date field was normalized from.
func (r *ImportRecord) DateInput(f field.Field) string {
	if r.DateInputs == nil {
		return ""
	}
	return r.DateInputs[f]
}

// AddError appends msg and marks the record invalid.
func (r *ImportRecord) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Status = StatusError
}

// ResetErrors clears validation results before a record is re-validated.
func (r *ImportRecord) ResetErrors() {
	r.Errors = nil
	r.Status = StatusValid
}

func (r *ImportRecord) HasError() bool {
	return len(r.Errors) > 0
}

func (r *ImportRecord) IsValid() bool {
	return r.Status == StatusValid && !r.HasError()
}
