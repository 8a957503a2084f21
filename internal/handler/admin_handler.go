package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/event-registration-api/internal/dto"
	"github.com/noah-isme/event-registration-api/internal/middleware"
	appErrors "github.com/noah-isme/event-registration-api/pkg/errors"
	"github.com/noah-isme/event-registration-api/pkg/response"
)

type adminService interface {
	List(ctx context.Context, q dto.RegistrationListQuery) (*dto.RegistrationListResponse, error)
	Statistics(ctx context.Context) (*dto.StatisticsResponse, bool, error)
}

type exportService interface {
	Export(ctx context.Context, format string) (*dto.ExportFile, error)
}

type manualRegistrationService interface {
	CreateManual(ctx context.Context, req dto.RegistrationRequest) (*dto.RegistrationResponse, error)
}

// AdminHandler serves the admin console endpoints.
type AdminHandler struct {
	admin         adminService
	exports       exportService
	registrations manualRegistrationService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(admin adminService, exports exportService, registrations manualRegistrationService) *AdminHandler {
	return &AdminHandler{admin: admin, exports: exports, registrations: registrations}
}

// Registrations godoc
// @Summary List registrations
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Matches name, email, KEN or registration number"
// @Param department query string false "Department code"
// @Param verified query bool false "Verification state"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /admin/registrations [get]
func (h *AdminHandler) Registrations(c *gin.Context) {
	var q dto.RegistrationListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	res, err := h.admin.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, res.Pagination, metaWithMessage(c, ""))
}

// Export godoc
// @Summary Export registrations
// @Tags Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "xlsx (default), csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/export [get]
func (h *AdminHandler) Export(c *gin.Context) {
	file, err := h.exports.Export(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// ManualRegistration godoc
// @Summary Create a registration on behalf of an attendee
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RegistrationRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/manual-registration [post]
func (h *AdminHandler) ManualRegistration(c *gin.Context) {
	var req dto.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	res, err := h.registrations.CreateManual(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusCreated, res, nil, metaWithMessage(c, "Manual registration created successfully!"))
}

// Statistics godoc
// @Summary Registration statistics
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/statistics [get]
func (h *AdminHandler) Statistics(c *gin.Context) {
	stats, cacheHit, err := h.admin.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, metaWithMessage(c, ""))
}
