package dto

import "time"

// RegistrationRequest is the self-service and manual registration payload.
type RegistrationRequest struct {
	FullName         string `json:"fullName" validate:"required,max=255"`
	Email            string `json:"email" validate:"required,email,max=255"`
	ContactNumber    string `json:"contactNumber" validate:"required,max=32"`
	Department       string `json:"department" validate:"required,oneof=cse ece mech civil eee it chemical biotech other"`
	Ken              string `json:"ken" validate:"required,max=7"`
	FoodPreference   string `json:"foodPreference" validate:"required,max=255"`
	RegistrationType string `json:"registrationType" validate:"required,oneof=single family"`
	Accommodation    string `json:"accommodation" validate:"required,oneof=yes no"`
}

// RegistrationResponse is returned after a registration is stored.
type RegistrationResponse struct {
	RegistrationNumber string    `json:"registrationNumber"`
	FullName           string    `json:"fullName"`
	Email              string    `json:"email"`
	ContactNumber      string    `json:"contactNumber"`
	Department         string    `json:"department"`
	Ken                string    `json:"ken"`
	FoodPreference     string    `json:"foodPreference"`
	RegistrationType   string    `json:"registrationType"`
	Accommodation      string    `json:"accommodation"`
	RegistrationDate   time.Time `json:"registrationDate"`
	CreatedBy          string    `json:"createdBy"`
}

// ValidateRequest looks a registration up by KEN.
type ValidateRequest struct {
	Ken string `json:"ken" validate:"required"`
}

// RegistrationSummary is the public view returned by KEN lookups. ContactNumber is masked.
type RegistrationSummary struct {
	RegistrationNumber string    `json:"registrationNumber"`
	FullName           string    `json:"fullName"`
	Email              string    `json:"email"`
	ContactNumber      string    `json:"contactNumber"`
	Department         string    `json:"department"`
	IsVerified         bool      `json:"isVerified"`
	VerifiedNumber     *string   `json:"verifiedNumber"`
	RegistrationDate   time.Time `json:"registrationDate"`
}

// VerifyRequest identifies a registration by both its number and contact number.
type VerifyRequest struct {
	RegistrationNumber string `json:"registrationNumber" validate:"required"`
	ContactNumber      string `json:"contactNumber" validate:"required"`
}

// VerificationResponse is returned by verification, including idempotent repeats.
type VerificationResponse struct {
	VerifiedNumber     string    `json:"verifiedNumber"`
	RegistrationNumber string    `json:"registrationNumber"`
	FullName           string    `json:"fullName"`
	Email              string    `json:"email"`
	RegistrationDate   time.Time `json:"registrationDate"`
	VerificationDate   time.Time `json:"verificationDate"`
	AlreadyVerified    bool      `json:"alreadyVerified"`
}
