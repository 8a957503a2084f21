package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/noah-isme/event-registration-api/internal/models"
)

func toDoc(t require.TestingT, v interface{}) bson.D {
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestMongoCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("inserts", func(mt *mtest.T) {
		repo := NewRegistrationMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		reg := sampleRegistration()
		require.NoError(mt, repo.Create(context.Background(), reg))
		assert.NotEmpty(mt, reg.ID)
	})

	mt.Run("maps duplicate ken", func(mt *mtest.T) {
		repo := NewRegistrationMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: `E11000 duplicate key error collection: test.registrations index: ken_unique dup key: { ken: "ABC1234" }`,
		}))

		err := repo.Create(context.Background(), sampleRegistration())
		uv, ok := AsUniqueViolation(err)
		require.True(mt, ok)
		assert.Equal(mt, models.UniqueFieldKen, uv.Field)
	})

	mt.Run("maps duplicate registration number", func(mt *mtest.T) {
		repo := NewRegistrationMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: `E11000 duplicate key error collection: test.registrations index: registration_number_unique dup key: { registration_number: "1234567" }`,
		}))

		err := repo.Create(context.Background(), sampleRegistration())
		uv, ok := AsUniqueViolation(err)
		require.True(mt, ok)
		assert.Equal(mt, models.UniqueFieldRegistrationNumber, uv.Field)
	})
}

func TestMongoFindByNumberAndContact(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		repo := NewRegistrationMongoRepository(mt.Coll)
		reg := sampleRegistration()
		reg.ID = "r1"
		reg.RegistrationDate = time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, toDoc(mt, reg)))

		got, err := repo.FindByNumberAndContact(context.Background(), "1234567", "9876543210")
		require.NoError(mt, err)
		assert.Equal(mt, "r1", got.ID)
		assert.Equal(mt, "ABC1234", got.Ken)
		assert.True(mt, got.RegistrationDate.Equal(reg.RegistrationDate))
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewRegistrationMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := repo.FindByNumberAndContact(context.Background(), "1234567", "0000000000")
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoExists(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("counts matches", func(mt *mtest.T) {
		repo := NewRegistrationMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}))

		exists, err := repo.Exists(context.Background(), models.UniqueFieldEmail, "asha@example.com")
		require.NoError(mt, err)
		assert.True(mt, exists)
	})

	mt.Run("rejects unknown field", func(mt *mtest.T) {
		repo := NewRegistrationMongoRepository(mt.Coll)
		_, err := repo.Exists(context.Background(), models.UniqueField("full_name"), "x")
		assert.Error(mt, err)
	})
}

func TestMongoMarkVerified(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("applied", func(mt *mtest.T) {
		repo := NewRegistrationMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}, bson.E{Key: "nModified", Value: int32(1)}))

		applied, err := repo.MarkVerified(context.Background(), "r1", "7654321", time.Now().UTC())
		require.NoError(mt, err)
		assert.True(mt, applied)
	})

	mt.Run("already verified", func(mt *mtest.T) {
		repo := NewRegistrationMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}, bson.E{Key: "nModified", Value: int32(0)}))

		applied, err := repo.MarkVerified(context.Background(), "r1", "7654321", time.Now().UTC())
		require.NoError(mt, err)
		assert.False(mt, applied)
	})

	mt.Run("verified number taken", func(mt *mtest.T) {
		repo := NewRegistrationMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: `E11000 duplicate key error collection: test.registrations index: verified_number_unique dup key: { verified_number: "7654321" }`,
		}))

		_, err := repo.MarkVerified(context.Background(), "r1", "7654321", time.Now().UTC())
		uv, ok := AsUniqueViolation(err)
		require.True(mt, ok)
		assert.Equal(mt, models.UniqueFieldVerifiedNumber, uv.Field)
	})
}

func TestMongoGroupCount(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes buckets", func(mt *mtest.T) {
		repo := NewRegistrationMongoRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "single"}, {Key: "count", Value: int32(4)}},
			bson.D{{Key: "_id", Value: "family"}, {Key: "count", Value: int32(1)}},
		))

		groups, err := repo.GroupCount(context.Background(), models.GroupFieldRegistrationType)
		require.NoError(mt, err)
		assert.Equal(mt, []models.GroupCount{{Key: "single", Count: 4}, {Key: "family", Count: 1}}, groups)
	})
}

func TestMongoFilter(t *testing.T) {
	verified := true
	f := mongoFilter(models.RegistrationFilter{Department: "ece", Verified: &verified, Search: "a+b"})
	require.Len(t, f, 3)
	assert.Equal(t, "department", f[0].Key)
	assert.Equal(t, "is_verified", f[1].Key)
	assert.Equal(t, "$or", f[2].Key)
	assert.Empty(t, mongoFilter(models.RegistrationFilter{}))
}
