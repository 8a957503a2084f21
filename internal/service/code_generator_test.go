package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-registration-api/internal/models"
	appErrors "github.com/noah-isme/event-registration-api/pkg/errors"
)

func TestGenerateCandidateFormat(t *testing.T) {
	for i := 0; i < 2000; i++ {
		code, err := GenerateCandidate()
		require.NoError(t, err)
		require.Regexp(t, codePattern, code)
	}
}

func TestAllocateUniqueSkipsTakenCodes(t *testing.T) {
	store := newMemoryStore()
	store.forceExists[models.UniqueFieldVerifiedNumber] = map[string]bool{"1000000": true}
	gen := NewCodeGenerator(store, 5, nil, nil)
	gen.generate = sequenceGenerator("1000000", "9999999")

	code, err := gen.AllocateUnique(context.Background(), models.UniqueFieldVerifiedNumber)
	require.NoError(t, err)
	assert.Equal(t, "9999999", code)
	assert.Equal(t, 2, store.existsCalls)
}

func TestAllocateUniqueExhaustsAfterMaxAttempts(t *testing.T) {
	store := newMemoryStore()
	store.forceExists[models.UniqueFieldRegistrationNumber] = map[string]bool{"5555555": true}
	metrics := NewMetricsService()
	gen := NewCodeGenerator(store, 4, metrics, nil)
	gen.generate = func() (string, error) { return "5555555", nil }

	_, err := gen.AllocateUnique(context.Background(), models.UniqueFieldRegistrationNumber)
	assert.True(t, appErrors.Is(err, appErrors.ErrCodeSpaceExhausted))
	assert.Equal(t, 4, store.existsCalls)
	count, err := testutil.GatherAndCount(metrics.Registry(), "code_allocation_attempts")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAllocateUniqueRejectsNonCodeField(t *testing.T) {
	gen := NewCodeGenerator(newMemoryStore(), 0, nil, nil)

	_, err := gen.AllocateUnique(context.Background(), models.UniqueFieldKen)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestAllocateUniqueStopsOnCancelledContext(t *testing.T) {
	store := newMemoryStore()
	gen := NewCodeGenerator(store, 0, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.AllocateUnique(ctx, models.UniqueFieldRegistrationNumber)
	assert.True(t, appErrors.Is(err, appErrors.ErrStorageFailure))
	assert.Zero(t, store.existsCalls)
}

func TestAllocateUniqueStoreError(t *testing.T) {
	store := newMemoryStore()
	store.existsErr = errors.New("connection reset")
	gen := NewCodeGenerator(store, 0, nil, nil)

	_, err := gen.AllocateUnique(context.Background(), models.UniqueFieldRegistrationNumber)
	assert.True(t, appErrors.Is(err, appErrors.ErrStorageFailure))
}
