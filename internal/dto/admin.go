package dto

import (
	"time"

	"github.com/noah-isme/event-registration-api/internal/models"
)

// AdminRegistration is one row of the admin listing.
type AdminRegistration struct {
	RegistrationNumber string     `json:"registrationNumber"`
	FullName           string     `json:"fullName"`
	Email              string     `json:"email"`
	ContactNumber      string     `json:"contactNumber"`
	Department         string     `json:"department"`
	Ken                string     `json:"ken"`
	FoodPreference     string     `json:"foodPreference"`
	RegistrationType   string     `json:"registrationType"`
	Accommodation      string     `json:"accommodation"`
	IsVerified         bool       `json:"isVerified"`
	VerifiedNumber     *string    `json:"verifiedNumber"`
	RegistrationDate   time.Time  `json:"registrationDate"`
	VerificationDate   *time.Time `json:"verificationDate"`
	CreatedBy          string     `json:"createdBy"`
}

// RegistrationListQuery carries admin listing filters from the query string.
type RegistrationListQuery struct {
	Search     string `form:"search"`
	Department string `form:"department" validate:"omitempty,oneof=cse ece mech civil eee it chemical biotech other"`
	Verified   *bool  `form:"verified"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	PageSize   int    `form:"pageSize" validate:"omitempty,min=1,max=500"`
}

// RegistrationListResponse is the admin listing with counts over the filtered set.
type RegistrationListResponse struct {
	Registrations   []AdminRegistration `json:"registrations"`
	TotalCount      int                 `json:"totalCount"`
	VerifiedCount   int                 `json:"verifiedCount"`
	UnverifiedCount int                 `json:"unverifiedCount"`
	Pagination      *models.Pagination  `json:"-"`
}

// StatisticsResponse aggregates registrations for the admin dashboard.
type StatisticsResponse struct {
	TotalRegistrations      int                 `json:"totalRegistrations"`
	VerifiedRegistrations   int                 `json:"verifiedRegistrations"`
	UnverifiedRegistrations int                 `json:"unverifiedRegistrations"`
	DepartmentStats         []models.GroupCount `json:"departmentStats"`
	RegistrationTypeStats   []models.GroupCount `json:"registrationTypeStats"`
	AccommodationStats      []models.GroupCount `json:"accommodationStats"`
	GeneratedAt             time.Time           `json:"generatedAt"`
}

// ExportFile is a rendered export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
