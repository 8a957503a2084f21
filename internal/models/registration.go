package models

import "time"

// Record origin tags.
const (
	CreatedByUser  = "user"
	CreatedByAdmin = "admin"
)

// Departments lists the accepted department codes.
var Departments = []string{"cse", "ece", "mech", "civil", "eee", "it", "chemical", "biotech", "other"}

// RegistrationTypes lists the accepted registration types.
var RegistrationTypes = []string{"single", "family"}

// AccommodationOptions lists the accepted accommodation answers.
var AccommodationOptions = []string{"yes", "no"}

var departmentNames = map[string]string{
	"cse":      "Computer Science Engineering (CSE)",
	"ece":      "Electronics & Communication Engineering (ECE)",
	"mech":     "Mechanical Engineering",
	"civil":    "Civil Engineering",
	"eee":      "Electrical & Electronics Engineering (EEE)",
	"it":       "Information Technology",
	"chemical": "Chemical Engineering",
	"biotech":  "Biotechnology",
	"other":    "Other",
}

// DepartmentDisplayName maps a department code to its human readable name. Unknown codes are returned as is.
func DepartmentDisplayName(code string) string {
	if name, ok := departmentNames[code]; ok {
		return name
	}
	return code
}

// Registration is a single event registration.
type Registration struct {
	ID                 string     `db:"id" json:"id" bson:"_id"`
	RegistrationNumber string     `db:"registration_number" json:"registrationNumber" bson:"registration_number"`
	FullName           string     `db:"full_name" json:"fullName" bson:"full_name"`
	Email              string     `db:"email" json:"email" bson:"email"`
	ContactNumber      string     `db:"contact_number" json:"contactNumber" bson:"contact_number"`
	Department         string     `db:"department" json:"department" bson:"department"`
	Ken                string     `db:"ken" json:"ken" bson:"ken"`
	FoodPreference     string     `db:"food_preference" json:"foodPreference" bson:"food_preference"`
	RegistrationType   string     `db:"registration_type" json:"registrationType" bson:"registration_type"`
	Accommodation      string     `db:"accommodation" json:"accommodation" bson:"accommodation"`
	IsVerified         bool       `db:"is_verified" json:"isVerified" bson:"is_verified"`
	VerifiedNumber     *string    `db:"verified_number" json:"verifiedNumber,omitempty" bson:"verified_number,omitempty"`
	RegistrationDate   time.Time  `db:"registration_date" json:"registrationDate" bson:"registration_date"`
	VerificationDate   *time.Time `db:"verification_date" json:"verificationDate,omitempty" bson:"verification_date,omitempty"`
	CreatedBy          string     `db:"created_by" json:"createdBy" bson:"created_by"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt" bson:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt" bson:"updated_at"`
}

// UniqueField names a column protected by a uniqueness constraint. The two code
// fields hold generated 7-digit values.
type UniqueField string

const (
	UniqueFieldRegistrationNumber UniqueField = "registration_number"
	UniqueFieldVerifiedNumber     UniqueField = "verified_number"
	UniqueFieldKen                UniqueField = "ken"
	UniqueFieldEmail              UniqueField = "email"
)

// GroupField names a column statistics can be grouped by.
type GroupField string

const (
	GroupFieldDepartment       GroupField = "department"
	GroupFieldRegistrationType GroupField = "registration_type"
	GroupFieldAccommodation    GroupField = "accommodation"
)

// GroupCount is one bucket of a group-by aggregation.
type GroupCount struct {
	Key   string `db:"key" json:"_id" bson:"_id"`
	Count int    `db:"count" json:"count" bson:"count"`
}

// RegistrationFilter narrows admin listings. Zero values mean no filtering; PageSize 0 returns every match.
type RegistrationFilter struct {
	Search     string
	Department string
	Verified   *bool
	Page       int
	PageSize   int
}

// RegistrationCounts summarises a filtered set of registrations.
type RegistrationCounts struct {
	Total      int `db:"total"`
	Verified   int `db:"verified"`
	Unverified int `db:"unverified"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}
