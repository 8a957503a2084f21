package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/event-registration-api/internal/dto"
	appErrors "github.com/noah-isme/event-registration-api/pkg/errors"
)

func normalizeRegistration(req dto.RegistrationRequest) dto.RegistrationRequest {
	req.FullName = strings.ToUpper(strings.TrimSpace(req.FullName))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.ContactNumber = strings.TrimSpace(req.ContactNumber)
	req.Department = strings.ToLower(strings.TrimSpace(req.Department))
	req.Ken = strings.ToUpper(strings.TrimSpace(req.Ken))
	req.FoodPreference = strings.TrimSpace(req.FoodPreference)
	req.RegistrationType = strings.ToLower(strings.TrimSpace(req.RegistrationType))
	req.Accommodation = strings.ToLower(strings.TrimSpace(req.Accommodation))
	return req
}

// validationError maps the first failing rule onto MISSING_FIELD, INVALID_ENUM or VALIDATION_ERROR.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return appErrors.Wrap(err, appErrors.ErrMissingField.Code, appErrors.ErrMissingField.Status,
				fmt.Sprintf("%s is required.", jsonFieldName(fe.Field())))
		}
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "oneof" {
			return appErrors.Wrap(err, appErrors.ErrInvalidEnum.Code, appErrors.ErrInvalidEnum.Status,
				fmt.Sprintf("%s must be one of: %s.", jsonFieldName(fe.Field()), strings.ReplaceAll(fe.Param(), " ", ", ")))
		}
	}

	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address.", jsonFieldName(fe.Field()))
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters.", jsonFieldName(fe.Field()), fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid.", jsonFieldName(fe.Field()))
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
}

func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	r := []rune(field)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
