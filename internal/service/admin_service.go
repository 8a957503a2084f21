package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/event-registration-api/internal/dto"
	"github.com/noah-isme/event-registration-api/internal/models"
	appErrors "github.com/noah-isme/event-registration-api/pkg/errors"
)

type adminStore interface {
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error)
	Counts(ctx context.Context, filter models.RegistrationFilter) (models.RegistrationCounts, error)
	GroupCount(ctx context.Context, field models.GroupField) ([]models.GroupCount, error)
}

// AdminService serves the read side of the admin console.
type AdminService struct {
	store     adminStore
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	statsTTL  time.Duration
}

// NewAdminService constructs an AdminService. statsTTL bounds how long statistics stay cached.
func NewAdminService(store adminStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, statsTTL time.Duration) *AdminService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if statsTTL <= 0 {
		statsTTL = time.Minute
	}
	return &AdminService{store: store, cache: cache, metrics: metrics, validator: validate, logger: logger, statsTTL: statsTTL}
}

// List returns registrations newest first with counts over the filtered set.
func (s *AdminService) List(ctx context.Context, q dto.RegistrationListQuery) (*dto.RegistrationListResponse, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, validationError(err)
	}

	filter := models.RegistrationFilter{
		Search:     q.Search,
		Department: q.Department,
		Verified:   q.Verified,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	if filter.PageSize > 0 && filter.Page < 1 {
		filter.Page = 1
	}

	start := time.Now()
	regs, err := s.store.List(ctx, filter)
	s.metrics.ObserveStoreQuery("list_registrations", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "Failed to fetch registrations.")
	}

	start = time.Now()
	counts, err := s.store.Counts(ctx, filter)
	s.metrics.ObserveStoreQuery("count_registrations", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "Failed to fetch registrations.")
	}

	items := make([]dto.AdminRegistration, 0, len(regs))
	for i := range regs {
		items = append(items, toAdminRegistration(&regs[i]))
	}

	resp := &dto.RegistrationListResponse{
		Registrations:   items,
		TotalCount:      counts.Total,
		VerifiedCount:   counts.Verified,
		UnverifiedCount: counts.Unverified,
	}
	if filter.PageSize > 0 {
		resp.Pagination = &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: counts.Total}
	}
	return resp, nil
}

// Statistics returns registration totals and group-by breakdowns. The bool reports a cache hit.
func (s *AdminService) Statistics(ctx context.Context) (*dto.StatisticsResponse, bool, error) {
	var cached dto.StatisticsResponse
	if hit, err := s.cache.Get(ctx, statisticsCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	start := time.Now()
	counts, err := s.store.Counts(ctx, models.RegistrationFilter{})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "Failed to fetch statistics.")
	}

	groups := make(map[models.GroupField][]models.GroupCount, 3)
	for _, field := range []models.GroupField{models.GroupFieldDepartment, models.GroupFieldRegistrationType, models.GroupFieldAccommodation} {
		buckets, err := s.store.GroupCount(ctx, field)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "Failed to fetch statistics.")
		}
		groups[field] = buckets
	}
	s.metrics.ObserveStoreQuery("statistics", time.Since(start))

	stats := &dto.StatisticsResponse{
		TotalRegistrations:      counts.Total,
		VerifiedRegistrations:   counts.Verified,
		UnverifiedRegistrations: counts.Unverified,
		DepartmentStats:         groups[models.GroupFieldDepartment],
		RegistrationTypeStats:   groups[models.GroupFieldRegistrationType],
		AccommodationStats:      groups[models.GroupFieldAccommodation],
		GeneratedAt:             time.Now().UTC(),
	}

	if err := s.cache.Set(ctx, statisticsCacheKey, stats, s.statsTTL); err != nil {
		s.logger.Warn("failed to cache statistics", zap.Error(err))
	}
	return stats, false, nil
}

func toAdminRegistration(reg *models.Registration) dto.AdminRegistration {
	return dto.AdminRegistration{
		RegistrationNumber: reg.RegistrationNumber,
		FullName:           reg.FullName,
		Email:              reg.Email,
		ContactNumber:      reg.ContactNumber,
		Department:         models.DepartmentDisplayName(reg.Department),
		Ken:                reg.Ken,
		FoodPreference:     reg.FoodPreference,
		RegistrationType:   reg.RegistrationType,
		Accommodation:      reg.Accommodation,
		IsVerified:         reg.IsVerified,
		VerifiedNumber:     reg.VerifiedNumber,
		RegistrationDate:   reg.RegistrationDate,
		VerificationDate:   reg.VerificationDate,
		CreatedBy:          reg.CreatedBy,
	}
}
