package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/event-registration-api/internal/dto"
	appErrors "github.com/noah-isme/event-registration-api/pkg/errors"
	"github.com/noah-isme/event-registration-api/pkg/response"
)

type registrationService interface {
	Register(ctx context.Context, req dto.RegistrationRequest) (*dto.RegistrationResponse, error)
}

type verificationService interface {
	Verify(ctx context.Context, req dto.VerifyRequest) (*dto.VerificationResponse, error)
	ValidateByKen(ctx context.Context, ken string) (*dto.RegistrationSummary, error)
}

// RegistrationHandler serves the public registration endpoints.
type RegistrationHandler struct {
	registrations registrationService
	verifications verificationService
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(registrations registrationService, verifications verificationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, verifications: verifications}
}

// Create godoc
// @Summary Register for the event
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body dto.RegistrationRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /registration/create [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	var req dto.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	res, err := h.registrations.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusCreated, res, nil, metaWithMessage(c, "Registration successful!"))
}

// Validate godoc
// @Summary Look up a registration by KEN
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body dto.ValidateRequest true "KEN"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registration/validate [post]
func (h *RegistrationHandler) Validate(c *gin.Context) {
	var req dto.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid validation payload"))
		return
	}

	res, err := h.verifications.ValidateByKen(c.Request.Context(), req.Ken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil, metaWithMessage(c, "Registration found!"))
}

// Verify godoc
// @Summary Verify a registration
// @Description Assigns a verified number. Verifying twice returns the existing verification.
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body dto.VerifyRequest true "Registration and contact number"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registration/verify [post]
func (h *RegistrationHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}

	res, err := h.verifications.Verify(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	message := "Registration verified successfully!"
	if res.AlreadyVerified {
		message = "Registration already verified!"
	}
	response.JSON(c, http.StatusOK, res, nil, metaWithMessage(c, message))
}
