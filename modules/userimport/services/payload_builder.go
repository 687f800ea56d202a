package services

import (
	"fmt"
	"strconv"
	"time"

	"github.com/iota-uz/userimport/modules/userimport/domain/payload"
	"github.com/iota-uz/userimport/modules/userimport/domain/record"
	"github.com/iota-uz/userimport/modules/userimport/domain/role"
)

// BuildPayload turns a valid record into the bulk-create shape. now fills a
// trainee's enrollment date when the sheet had none or it did not parse.
func BuildPayload(rec *record.ImportRecord, roles *role.Index, now time.Time) (payload.User, error) {
	resolved := roles.Resolve(rec.Role)
	if resolved == nil {
		return payload.User{}, &ImportError{
			Code:    ErrUnresolvedRole.Code,
			Message: fmt.Sprintf("row %d: role %q could not be resolved", rec.Row, rec.Role),
		}
	}

	u := payload.User{
		FirstName:   rec.FirstName,
		MiddleName:  rec.MiddleName,
		LastName:    rec.LastName,
		Address:     rec.Address,
		Email:       rec.Email,
		PhoneNumber: truncateRunes(rec.PhoneNumber, MaxPhoneLength),
		AvatarURL:   rec.AvatarURL,
		Gender:      NormalizeGender(rec.Gender),
		Role: payload.RoleRef{
			ID:   resolved.ID,
			Name: resolved.Name,
		},
	}

	switch {
	case resolved.Is(role.Trainer):
		years, _ := strconv.ParseFloat(rec.YearsOfExperience, 64)
		u.TrainerProfile = &payload.TrainerProfile{
			Specialization:      rec.Specialization,
			YearsOfExp:          years,
			CertificationNumber: rec.CertificationNumber,
			Bio:                 rec.Bio,
		}
	case resolved.Is(role.Trainee):
		enrollment := rec.EnrollmentDate
		if enrollment == "" {
			enrollment = now.UTC().Format(isoInstantLayout)
		}
		u.TraineeProfile = &payload.TraineeProfile{
			TrainingBatch:  rec.TrainingBatch,
			PassportNo:     rec.PassportNo,
			Nation:         rec.Nation,
			DOB:            rec.DateOfBirth,
			EnrollmentDate: enrollment,
		}
	}
	return u, nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
