package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/event-registration-api/internal/models"
	appErrors "github.com/noah-isme/event-registration-api/pkg/errors"
)

const (
	codeMin             = 1000000
	codeSpan            = 9000000
	defaultCodeAttempts = 50
)

var codeSpanBig = big.NewInt(codeSpan)

// GenerateCandidate returns a uniformly random 7-digit code in [1000000, 9999999].
func GenerateCandidate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpanBig)
	if err != nil {
		return "", fmt.Errorf("read random code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

type codeLookup interface {
	Exists(ctx context.Context, field models.UniqueField, value string) (bool, error)
}

// CodeGenerator finds generated codes not yet present in the store. It does not reserve
// them; callers rely on the store's unique constraints and retry on violation.
type CodeGenerator struct {
	store       codeLookup
	generate    func() (string, error)
	maxAttempts int
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewCodeGenerator constructs a CodeGenerator bounded to maxAttempts candidates per allocation.
func NewCodeGenerator(store codeLookup, maxAttempts int, metrics *MetricsService, logger *zap.Logger) *CodeGenerator {
	if maxAttempts <= 0 {
		maxAttempts = defaultCodeAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeGenerator{
		store:       store,
		generate:    GenerateCandidate,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		logger:      logger,
	}
}

// MaxAttempts returns the per-allocation candidate budget.
func (g *CodeGenerator) MaxAttempts() int {
	return g.maxAttempts
}

// AllocateUnique returns the first candidate with no existing record holding it in field.
func (g *CodeGenerator) AllocateUnique(ctx context.Context, field models.UniqueField) (string, error) {
	if field != models.UniqueFieldRegistrationNumber && field != models.UniqueFieldVerifiedNumber {
		return "", appErrors.Wrap(fmt.Errorf("field %q does not hold generated codes", field), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "code allocation cancelled")
		}

		code, err := g.generate()
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate code")
		}

		exists, err := g.store.Exists(ctx, field, code)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, appErrors.ErrStorageFailure.Message)
		}
		if !exists {
			g.metrics.ObserveCodeAllocation(string(field), attempt)
			return code, nil
		}
		g.logger.Debug("generated code already taken", zap.String("field", string(field)), zap.Int("attempt", attempt))
	}

	g.metrics.ObserveCodeAllocation(string(field), g.maxAttempts)
	g.logger.Error("code space exhausted", zap.String("field", string(field)), zap.Int("attempts", g.maxAttempts))
	return "", appErrors.Clone(appErrors.ErrCodeSpaceExhausted, "")
}
