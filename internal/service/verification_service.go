package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/event-registration-api/internal/dto"
	"github.com/noah-isme/event-registration-api/internal/models"
	"github.com/noah-isme/event-registration-api/internal/repository"
	appErrors "github.com/noah-isme/event-registration-api/pkg/errors"
)

// Verification outcomes reported to metrics.
const (
	verifyOutcomeVerified        = "verified"
	verifyOutcomeAlreadyVerified = "already_verified"
	verifyOutcomeNotFound        = "not_found"
	verifyOutcomeFailed          = "failed"
)

type verificationStore interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	FindByKen(ctx context.Context, ken string) (*models.Registration, error)
	FindByNumberAndContact(ctx context.Context, registrationNumber, contactNumber string) (*models.Registration, error)
	MarkVerified(ctx context.Context, id, verifiedNumber string, verifiedAt time.Time) (bool, error)
}

// VerificationService moves registrations from unverified to verified and answers status lookups.
// Verifying an already verified registration returns the existing verification unchanged.
type VerificationService struct {
	store    verificationStore
	codes    *CodeGenerator
	notifier registrationNotifier
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(store verificationStore, codes *CodeGenerator, notifier registrationNotifier, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{
		store:    store,
		codes:    codes,
		notifier: notifier,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Verify assigns a verified number to the registration matching both the registration and contact numbers.
func (s *VerificationService) Verify(ctx context.Context, req dto.VerifyRequest) (*dto.VerificationResponse, error) {
	regNo := strings.TrimSpace(req.RegistrationNumber)
	contact := strings.TrimSpace(req.ContactNumber)
	if regNo == "" || contact == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingField, "Registration number and contact number are required.")
	}

	reg, err := s.store.FindByNumberAndContact(ctx, regNo, contact)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordVerification(verifyOutcomeNotFound)
			return nil, appErrors.Clone(appErrors.ErrNotFound, "No matching registration found with provided details.")
		}
		s.metrics.RecordVerification(verifyOutcomeFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, appErrors.ErrStorageFailure.Message)
	}

	if reg.IsVerified {
		s.metrics.RecordVerification(verifyOutcomeAlreadyVerified)
		return verificationResponse(reg, true), nil
	}

	verified, already, err := s.markVerified(ctx, reg)
	if err != nil {
		s.metrics.RecordVerification(verifyOutcomeFailed)
		return nil, err
	}
	if already {
		s.metrics.RecordVerification(verifyOutcomeAlreadyVerified)
		return verificationResponse(verified, true), nil
	}

	s.metrics.RecordVerification(verifyOutcomeVerified)
	if err := s.cache.Evict(ctx, statisticsCacheKey); err != nil {
		s.logger.Warn("failed to evict statistics cache", zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.NotifyVerified(ctx, *verified)
	}

	s.logger.Info("registration verified",
		zap.String("registration_number", verified.RegistrationNumber),
		zap.String("verified_number", *verified.VerifiedNumber),
	)
	return verificationResponse(verified, false), nil
}

// markVerified allocates a verified number and applies it only if the record is still
// unverified. A lost race returns the winner's verification with already set.
func (s *VerificationService) markVerified(ctx context.Context, reg *models.Registration) (*models.Registration, bool, error) {
	maxAttempts := s.codes.MaxAttempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		code, err := s.codes.AllocateUnique(ctx, models.UniqueFieldVerifiedNumber)
		if err != nil {
			return nil, false, err
		}

		verifiedAt := s.now().UTC()
		if verifiedAt.Before(reg.RegistrationDate) {
			verifiedAt = reg.RegistrationDate
		}

		applied, err := s.store.MarkVerified(ctx, reg.ID, code, verifiedAt)
		if err != nil {
			if uv, ok := repository.AsUniqueViolation(err); ok && uv.Field == models.UniqueFieldVerifiedNumber {
				s.logger.Warn("verified number claimed concurrently, retrying",
					zap.String("verified_number", code),
					zap.Int("attempt", attempt),
				)
				continue
			}
			return nil, false, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, appErrors.ErrStorageFailure.Message)
		}

		if !applied {
			current, err := s.store.FindByID(ctx, reg.ID)
			if err != nil {
				return nil, false, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, appErrors.ErrStorageFailure.Message)
			}
			if current.IsVerified && current.VerifiedNumber != nil {
				return current, true, nil
			}
			return nil, false, appErrors.Clone(appErrors.ErrStorageFailure, "verification could not be applied, please try again")
		}

		reg.IsVerified = true
		reg.VerifiedNumber = &code
		reg.VerificationDate = &verifiedAt
		return reg, false, nil
	}
	return nil, false, appErrors.Clone(appErrors.ErrCodeSpaceExhausted, "")
}

// ValidateByKen returns the public summary of the registration owning a KEN.
func (s *VerificationService) ValidateByKen(ctx context.Context, ken string) (*dto.RegistrationSummary, error) {
	ken = strings.ToUpper(strings.TrimSpace(ken))
	if ken == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingField, "KEN is required.")
	}

	reg, err := s.store.FindByKen(ctx, ken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "No registration found with this KEN.")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, appErrors.ErrStorageFailure.Message)
	}

	return &dto.RegistrationSummary{
		RegistrationNumber: reg.RegistrationNumber,
		FullName:           reg.FullName,
		Email:              reg.Email,
		ContactNumber:      maskContactNumber(reg.ContactNumber),
		Department:         models.DepartmentDisplayName(reg.Department),
		IsVerified:         reg.IsVerified,
		VerifiedNumber:     reg.VerifiedNumber,
		RegistrationDate:   reg.RegistrationDate,
	}, nil
}

// maskContactNumber keeps only the last four characters. The full number is the second
// factor for Verify, so KEN lookups must not disclose it.
func maskContactNumber(contact string) string {
	runes := []rune(contact)
	visible := 4
	if len(runes) <= visible {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-visible) + string(runes[len(runes)-visible:])
}

func verificationResponse(reg *models.Registration, already bool) *dto.VerificationResponse {
	resp := &dto.VerificationResponse{
		RegistrationNumber: reg.RegistrationNumber,
		FullName:           reg.FullName,
		Email:              reg.Email,
		RegistrationDate:   reg.RegistrationDate,
		AlreadyVerified:    already,
	}
	if reg.VerifiedNumber != nil {
		resp.VerifiedNumber = *reg.VerifiedNumber
	}
	if reg.VerificationDate != nil {
		resp.VerificationDate = *reg.VerificationDate
	}
	return resp
}
