package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/event-registration-api/internal/dto"
	"github.com/noah-isme/event-registration-api/internal/models"
	"github.com/noah-isme/event-registration-api/internal/repository"
	appErrors "github.com/noah-isme/event-registration-api/pkg/errors"
)

const statisticsCacheKey = "registrations:statistics"

type registrationStore interface {
	Create(ctx context.Context, reg *models.Registration) error
	Exists(ctx context.Context, field models.UniqueField, value string) (bool, error)
}

type registrationNotifier interface {
	NotifyRegistered(ctx context.Context, reg models.Registration, action string)
	NotifyVerified(ctx context.Context, reg models.Registration)
}

// RegistrationService creates registrations for self-service and administrator flows.
type RegistrationService struct {
	store     registrationStore
	codes     *CodeGenerator
	notifier  registrationNotifier
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(store registrationStore, codes *CodeGenerator, notifier registrationNotifier, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		store:     store,
		codes:     codes,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Register stores a self-service registration.
func (s *RegistrationService) Register(ctx context.Context, req dto.RegistrationRequest) (*dto.RegistrationResponse, error) {
	return s.create(ctx, req, models.CreatedByUser)
}

// CreateManual stores a registration entered by an administrator.
func (s *RegistrationService) CreateManual(ctx context.Context, req dto.RegistrationRequest) (*dto.RegistrationResponse, error) {
	return s.create(ctx, req, models.CreatedByAdmin)
}

func (s *RegistrationService) create(ctx context.Context, req dto.RegistrationRequest, createdBy string) (*dto.RegistrationResponse, error) {
	req = normalizeRegistration(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	if err := s.ensureAvailable(ctx, req, createdBy); err != nil {
		return nil, err
	}

	reg := &models.Registration{
		FullName:         req.FullName,
		Email:            req.Email,
		ContactNumber:    req.ContactNumber,
		Department:       req.Department,
		Ken:              req.Ken,
		FoodPreference:   req.FoodPreference,
		RegistrationType: req.RegistrationType,
		Accommodation:    req.Accommodation,
		CreatedBy:        createdBy,
		RegistrationDate: time.Now().UTC(),
	}

	if err := s.insert(ctx, reg); err != nil {
		return nil, err
	}

	s.metrics.RecordRegistration(createdBy)
	if err := s.cache.Evict(ctx, statisticsCacheKey); err != nil {
		s.logger.Warn("failed to evict statistics cache", zap.Error(err))
	}

	action := models.NotificationActionCreated
	if createdBy == models.CreatedByAdmin {
		action = models.NotificationActionCreatedByAdmin
	}
	if s.notifier != nil {
		s.notifier.NotifyRegistered(ctx, *reg, action)
	}

	s.logger.Info("registration created",
		zap.String("registration_number", reg.RegistrationNumber),
		zap.String("created_by", createdBy),
	)

	resp := toRegistrationResponse(reg)
	return &resp, nil
}

func (s *RegistrationService) ensureAvailable(ctx context.Context, req dto.RegistrationRequest, createdBy string) error {
	kenTaken, err := s.store.Exists(ctx, models.UniqueFieldKen, req.Ken)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, appErrors.ErrStorageFailure.Message)
	}
	if kenTaken {
		return duplicateError(models.UniqueFieldKen, createdBy)
	}

	emailTaken, err := s.store.Exists(ctx, models.UniqueFieldEmail, req.Email)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, appErrors.ErrStorageFailure.Message)
	}
	if emailTaken {
		return duplicateError(models.UniqueFieldEmail, createdBy)
	}
	return nil
}

// insert allocates a registration number and writes the record, allocating again when a
// concurrent writer claimed the same number first.
func (s *RegistrationService) insert(ctx context.Context, reg *models.Registration) error {
	maxAttempts := s.codes.MaxAttempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		code, err := s.codes.AllocateUnique(ctx, models.UniqueFieldRegistrationNumber)
		if err != nil {
			return err
		}
		reg.RegistrationNumber = code

		err = s.store.Create(ctx, reg)
		if err == nil {
			return nil
		}

		uv, ok := repository.AsUniqueViolation(err)
		if !ok {
			return appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, appErrors.ErrStorageFailure.Message)
		}
		switch uv.Field {
		case models.UniqueFieldKen, models.UniqueFieldEmail:
			return duplicateError(uv.Field, reg.CreatedBy)
		case models.UniqueFieldRegistrationNumber:
			s.logger.Warn("registration number claimed concurrently, retrying",
				zap.String("registration_number", code),
				zap.Int("attempt", attempt),
			)
		default:
			return appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, appErrors.ErrStorageFailure.Message)
		}
	}
	return appErrors.Clone(appErrors.ErrCodeSpaceExhausted, "")
}

func duplicateError(field models.UniqueField, createdBy string) error {
	manual := createdBy == models.CreatedByAdmin
	switch field {
	case models.UniqueFieldKen:
		if manual {
			return appErrors.Clone(appErrors.ErrDuplicateKen, "KEN already registered.")
		}
		return appErrors.Clone(appErrors.ErrDuplicateKen, "")
	default:
		if manual {
			return appErrors.Clone(appErrors.ErrDuplicateEmail, "Email already registered.")
		}
		return appErrors.Clone(appErrors.ErrDuplicateEmail, "")
	}
}

func toRegistrationResponse(reg *models.Registration) dto.RegistrationResponse {
	return dto.RegistrationResponse{
		RegistrationNumber: reg.RegistrationNumber,
		FullName:           reg.FullName,
		Email:              reg.Email,
		ContactNumber:      reg.ContactNumber,
		Department:         models.DepartmentDisplayName(reg.Department),
		Ken:                reg.Ken,
		FoodPreference:     reg.FoodPreference,
		RegistrationType:   reg.RegistrationType,
		Accommodation:      reg.Accommodation,
		RegistrationDate:   reg.RegistrationDate,
		CreatedBy:          reg.CreatedBy,
	}
}
