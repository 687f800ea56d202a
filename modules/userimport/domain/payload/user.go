package payload

// RoleRef is the role object embedded in every created user.
type RoleRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TrainerProfile struct {
	Specialization      string  `json:"specialization"`
	YearsOfExp          float64 `json:"yearsOfExp"`
	CertificationNumber string  `json:"certificationNumber"`
	Bio                 string  `json:"bio"`
}

type TraineeProfile struct {
	TrainingBatch  string `json:"trainingBatch"`
	PassportNo     string `json:"passportNo"`
	Nation         string `json:"nation"`
	DOB            string `json:"dob,omitempty"`
	EnrollmentDate string `json:"enrollmentDate"`
}

// User is the exact shape the bulk-create endpoint expects. At most one of
// TrainerProfile and TraineeProfile is set.
type User struct {
	FirstName      string          `json:"firstName"`
	MiddleName     string          `json:"middleName"`
	LastName       string          `json:"lastName"`
	Address        string          `json:"address"`
	Email          string          `json:"email"`
	PhoneNumber    string          `json:"phoneNumber"`
	AvatarURL      string          `json:"avatarUrl"`
	Gender         string          `json:"gender"`
	Role           RoleRef         `json:"role"`
	TrainerProfile *TrainerProfile `json:"trainerProfile,omitempty"`
	TraineeProfile *TraineeProfile `json:"traineeProfile,omitempty"`
}

// BulkCreateRequest is the body of the bulk-create call.
type BulkCreateRequest struct {
	Users []User `json:"users"`
}
