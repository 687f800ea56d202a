package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iota-uz/userimport/modules/userimport/domain/field"
	"github.com/iota-uz/userimport/modules/userimport/domain/record"
	"github.com/iota-uz/userimport/modules/userimport/domain/role"
)

// MaxPhoneLength is the longest phone number the API accepts.
const MaxPhoneLength = 15

var basicEmailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RowValidator annotates records with every rule they break.
type RowValidator struct {
	validate *validator.Validate
}

func NewRowValidator() *RowValidator {
	v := validator.New()
	// validator's own "email" tag is RFC-strict; imports only need local@domain.tld
	if err := v.RegisterValidation("basic_email", func(fl validator.FieldLevel) bool {
		return basicEmailRe.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return &RowValidator{validate: v}
}

// Validate resets rec's errors and re-checks it. roles == nil means the role
// collection could not be loaded: role resolution and role-conditional rules
// are skipped. It returns the resolved role, if any.
func (v *RowValidator) Validate(rec *record.ImportRecord, roles *role.Index) *role.Role {
	rec.ResetErrors()

	for _, f := range field.Required() {
		if rec.Get(f) == "" {
			rec.AddError(fmt.Sprintf("%s is required", f.Label()))
		}
	}

	if rec.Email != "" && v.validate.Var(rec.Email, "basic_email") != nil {
		rec.AddError("Invalid email format")
	}

	var resolved *role.Role
	if rec.Role != "" && roles != nil {
		resolved = roles.Resolve(rec.Role)
		if resolved == nil {
			rec.AddError(unresolvedRoleMessage(rec.Role, roles))
		}
	}

	if rec.PhoneNumber != "" && v.validate.Var(rec.PhoneNumber, fmt.Sprintf("max=%d", MaxPhoneLength)) != nil {
		rec.AddError(fmt.Sprintf("Phone number must be at most %d characters", MaxPhoneLength))
	}

	if rec.YearsOfExperience != "" && v.validate.Var(rec.YearsOfExperience, "numeric") != nil {
		rec.AddError("Years of experience must be a number")
	}

	if rec.Gender != "" && v.validate.Var(strings.ToUpper(rec.Gender), "oneof=MALE FEMALE M F") != nil {
		rec.AddError(fmt.Sprintf("Invalid gender %q (expected MALE, FEMALE, M or F)", rec.Gender))
	}

	if resolved != nil {
		switch {
		case resolved.Is(role.Trainer):
			validateTrainer(rec)
		case resolved.Is(role.Trainee):
			validateTrainee(rec)
		}
	}
	return resolved
}

func validateTrainer(rec *record.ImportRecord) {
	if rec.Specialization == "" {
		rec.AddError("Trainer requires specialization")
	}
	if rec.YearsOfExperience == "" {
		rec.AddError("Trainer requires years of experience")
	}
}

func validateTrainee(rec *record.ImportRecord) {
	// DateOfBirth is empty both when absent and when it failed to parse
	if rec.DateOfBirth == "" {
		msg := "Trainee requires date of birth"
		if in := rec.DateInput(field.DateOfBirth); in != "" {
			msg += fmt.Sprintf(" (%q is not a valid date)", in)
		}
		rec.AddError(msg)
	}
	if rec.TrainingBatch == "" {
		rec.AddError("Trainee requires training batch")
	}
	if rec.PassportNo == "" {
		rec.AddError("Trainee requires passport number")
	}
	if rec.Nation == "" {
		rec.AddError("Trainee requires nation")
	}
	if in := rec.DateInput(field.EnrollmentDate); in != "" && rec.EnrollmentDate == "" {
		rec.AddError(fmt.Sprintf("Trainee enrollment date %q is invalid", in))
	}
}

func unresolvedRoleMessage(input string, roles *role.Index) string {
	msg := fmt.Sprintf("Invalid role %q. Available roles: %s", input, strings.Join(roles.Names(), ", "))
	if s := roles.Suggest(input); s != "" {
		msg += fmt.Sprintf(" (did you mean %s?)", s)
	}
	return msg
}
