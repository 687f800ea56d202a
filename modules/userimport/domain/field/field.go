package field

import (
	"regexp"
	"strings"
)

// Field is a canonical user attribute key. The set is closed.
type Field string

const (
	FirstName           Field = "first_name"
	MiddleName          Field = "middle_name"
	LastName            Field = "last_name"
	Email               Field = "email"
	PhoneNumber         Field = "phone_number"
	Address             Field = "address"
	AvatarURL           Field = "avatar_url"
	Gender              Field = "gender"
	Role                Field = "role"
	DateOfBirth         Field = "date_of_birth"
	EnrollmentDate      Field = "enrollment_date"
	TrainingBatch       Field = "training_batch"
	PassportNo          Field = "passport_no"
	Nation              Field = "nation"
	Specialization      Field = "specialization"
	CertificationNumber Field = "certification_number"
	YearsOfExperience   Field = "years_of_experience"
	Bio                 Field = "bio"
)

var all = []Field{
	FirstName,
	MiddleName,
	LastName,
	Email,
	PhoneNumber,
	Address,
	AvatarURL,
	Gender,
	Role,
	DateOfBirth,
	EnrollmentDate,
	TrainingBatch,
	PassportNo,
	Nation,
	Specialization,
	CertificationNumber,
	YearsOfExperience,
	Bio,
}

var required = []Field{FirstName, LastName, Email, Role}

// All returns every canonical field in template column order.
func All() []Field {
	out := make([]Field, len(all))
	copy(out, all)
	return out
}

// Required returns the fields every import sheet must carry a column for.
func Required() []Field {
	out := make([]Field, len(required))
	copy(out, required)
	return out
}

func (f Field) String() string {
	return string(f)
}

// Label is the human readable name used in validation messages.
func (f Field) Label() string {
	switch f {
	case FirstName:
		return "First name"
	case MiddleName:
		return "Middle name"
	case LastName:
		return "Last name"
	case Email:
		return "Email"
	case PhoneNumber:
		return "Phone number"
	case Address:
		return "Address"
	case AvatarURL:
		return "Avatar URL"
	case Gender:
		return "Gender"
	case Role:
		return "Role"
	case DateOfBirth:
		return "Date of birth"
	case EnrollmentDate:
		return "Enrollment date"
	case TrainingBatch:
		return "Training batch"
	case PassportNo:
		return "Passport number"
	case Nation:
		return "Nation"
	case Specialization:
		return "Specialization"
	case CertificationNumber:
		return "Certification number"
	case YearsOfExperience:
		return "Years of experience"
	case Bio:
		return "Bio"
	default:
		return string(f)
	}
}

// IsDate reports whether values of f are calendar dates.
func (f Field) IsDate() bool {
	return f == DateOfBirth || f == EnrollmentDate
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeHeader trims, lowercases and collapses internal whitespace runs
// into a single underscore.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return whitespaceRe.ReplaceAllString(h, "_")
}

// aliases maps normalized header text to a canonical field. Every field is
// reachable by its own name.
var aliases = map[string]Field{
	// First name
	"first_name": FirstName,
	"firstname":  FirstName,
	"first":      FirstName,
	"given_name": FirstName,
	"fname":      FirstName,

	// Middle name
	"middle_name":    MiddleName,
	"middlename":     MiddleName,
	"middle":         MiddleName,
	"middle_initial": MiddleName,

	// Last name
	"last_name":   LastName,
	"lastname":    LastName,
	"last":        LastName,
	"surname":     LastName,
	"family_name": LastName,
	"lname":       LastName,

	// Email
	"email":         Email,
	"e-mail":        Email,
	"email_address": Email,
	"emailaddress":  Email,
	"mail":          Email,

	// Phone
	"phone_number": PhoneNumber,
	"phonenumber":  PhoneNumber,
	"phone":        PhoneNumber,
	"phone_no":     PhoneNumber,
	"mobile":       PhoneNumber,
	"mobile_phone": PhoneNumber,
	"telephone":    PhoneNumber,
	"contact":      PhoneNumber,

	// Address
	"address":        Address,
	"home_address":   Address,
	"street_address": Address,

	// Avatar
	"avatar_url": AvatarURL,
	"avatarurl":  AvatarURL,
	"avatar":     AvatarURL,
	"photo":      AvatarURL,
	"photo_url":  AvatarURL,

	// Gender
	"gender": Gender,
	"sex":    Gender,

	// Role
	"role":      Role,
	"role_name": Role,
	"rolename":  Role,
	"user_role": Role,
	"user_type": Role,

	// Date of birth
	"date_of_birth": DateOfBirth,
	"dateofbirth":   DateOfBirth,
	"dob":           DateOfBirth,
	"birth_date":    DateOfBirth,
	"birthdate":     DateOfBirth,
	"birthday":      DateOfBirth,

	// Enrollment date
	"enrollment_date": EnrollmentDate,
	"enrollmentdate":  EnrollmentDate,
	"enrolment_date":  EnrollmentDate,
	"enrolled_on":     EnrollmentDate,
	"enrollment":      EnrollmentDate,

	// Training batch
	"training_batch": TrainingBatch,
	"trainingbatch":  TrainingBatch,
	"batch":          TrainingBatch,
	"batch_no":       TrainingBatch,

	// Passport
	"passport_no":     PassportNo,
	"passportno":      PassportNo,
	"passport":        PassportNo,
	"passport_number": PassportNo,

	// Nation
	"nation":      Nation,
	"nationality": Nation,
	"country":     Nation,

	// Specialization
	"specialization": Specialization,
	"specialisation": Specialization,
	"specialty":      Specialization,
	"speciality":     Specialization,
	"expertise":      Specialization,

	// Certification
	"certification_number": CertificationNumber,
	"certificationnumber":  CertificationNumber,
	"certification_no":     CertificationNumber,
	"certificate_number":   CertificationNumber,
	"certificate_no":       CertificationNumber,
	"cert_no":              CertificationNumber,

	// Experience
	"years_of_experience": YearsOfExperience,
	"yearsofexperience":   YearsOfExperience,
	"years_of_exp":        YearsOfExperience,
	"experience":          YearsOfExperience,
	"experience_years":    YearsOfExperience,
	"yoe":                 YearsOfExperience,

	// Bio
	"bio":         Bio,
	"biography":   Bio,
	"description": Bio,
	"about":       Bio,
}

// Lookup maps a raw header cell to its canonical field.
func Lookup(header string) (Field, bool) {
	f, ok := aliases[NormalizeHeader(header)]
	return f, ok
}
