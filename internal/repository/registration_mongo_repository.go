package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/event-registration-api/internal/models"
)

var mongoIndexFields = map[string]models.UniqueField{
	"registration_number_unique": models.UniqueFieldRegistrationNumber,
	"verified_number_unique":     models.UniqueFieldVerifiedNumber,
	"ken_unique":                 models.UniqueFieldKen,
	"email_unique":               models.UniqueFieldEmail,
}

// RegistrationMongoRepository stores registrations in a MongoDB collection.
type RegistrationMongoRepository struct {
	coll *mongo.Collection
}

// NewRegistrationMongoRepository wraps the registrations collection.
func NewRegistrationMongoRepository(coll *mongo.Collection) *RegistrationMongoRepository {
	return &RegistrationMongoRepository{coll: coll}
}

// EnsureIndexes creates the unique indexes registrations rely on. verified_number is only
// unique among documents that carry one.
func (r *RegistrationMongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "registration_number", Value: 1}}, Options: options.Index().SetName("registration_number_unique").SetUnique(true)},
		{Keys: bson.D{{Key: "ken", Value: 1}}, Options: options.Index().SetName("ken_unique").SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_unique").SetUnique(true)},
		{
			Keys: bson.D{{Key: "verified_number", Value: 1}},
			Options: options.Index().SetName("verified_number_unique").SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "verified_number", Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
		{Keys: bson.D{{Key: "registration_date", Value: -1}}, Options: options.Index().SetName("registration_date_desc")},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create registration indexes: %w", err)
	}
	return nil
}

// Create inserts a registration. Duplicate key errors surface as *UniqueViolationError.
func (r *RegistrationMongoRepository) Create(ctx context.Context, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if reg.RegistrationDate.IsZero() {
		reg.RegistrationDate = now
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, reg); err != nil {
		if uv := duplicateKey(err); uv != nil {
			return uv
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// Exists reports whether any registration holds value in the given unique field.
func (r *RegistrationMongoRepository) Exists(ctx context.Context, field models.UniqueField, value string) (bool, error) {
	if _, ok := uniqueColumns[field]; !ok {
		return false, fmt.Errorf("unsupported lookup field %q", field)
	}
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: string(field), Value: value}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check %s exists: %w", field, err)
	}
	return n > 0, nil
}

// FindByID returns a registration by identifier.
func (r *RegistrationMongoRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	return r.findOne(ctx, "find registration by id", bson.D{{Key: "_id", Value: id}})
}

// FindByKen returns the registration owning a KEN.
func (r *RegistrationMongoRepository) FindByKen(ctx context.Context, ken string) (*models.Registration, error) {
	return r.findOne(ctx, "find registration by ken", bson.D{{Key: "ken", Value: ken}})
}

// FindByNumberAndContact matches both the registration number and the contact number.
func (r *RegistrationMongoRepository) FindByNumberAndContact(ctx context.Context, registrationNumber, contactNumber string) (*models.Registration, error) {
	return r.findOne(ctx, "find registration by number and contact", bson.D{
		{Key: "registration_number", Value: registrationNumber},
		{Key: "contact_number", Value: contactNumber},
	})
}

// MarkVerified transitions an unverified registration. It reports false when the document was already verified.
func (r *RegistrationMongoRepository) MarkVerified(ctx context.Context, id, verifiedNumber string, verifiedAt time.Time) (bool, error) {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "is_verified", Value: false}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_verified", Value: true},
		{Key: "verified_number", Value: verifiedNumber},
		{Key: "verification_date", Value: verifiedAt},
		{Key: "updated_at", Value: verifiedAt},
	}}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		if uv := duplicateKey(err); uv != nil {
			return false, uv
		}
		return false, fmt.Errorf("mark registration verified: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// List returns registrations matching the filter, newest first.
func (r *RegistrationMongoRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error) {
	opts := options.Find().SetSort(bson.D{{Key: "registration_date", Value: -1}, {Key: "created_at", Value: -1}})
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * filter.PageSize)).SetLimit(int64(filter.PageSize))
	}

	cur, err := r.coll.Find(ctx, mongoFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	regs := []models.Registration{}
	if err := cur.All(ctx, &regs); err != nil {
		return nil, fmt.Errorf("decode registrations: %w", err)
	}
	return regs, nil
}

// Counts returns total, verified and unverified counts over the filtered set.
func (r *RegistrationMongoRepository) Counts(ctx context.Context, filter models.RegistrationFilter) (models.RegistrationCounts, error) {
	base := mongoFilter(filter)
	total, err := r.coll.CountDocuments(ctx, base)
	if err != nil {
		return models.RegistrationCounts{}, fmt.Errorf("count registrations: %w", err)
	}

	var verified int64
	switch {
	case filter.Verified != nil && *filter.Verified:
		verified = total
	case filter.Verified != nil:
		verified = 0
	default:
		verifiedFilter := append(append(bson.D{}, base...), bson.E{Key: "is_verified", Value: true})
		verified, err = r.coll.CountDocuments(ctx, verifiedFilter)
		if err != nil {
			return models.RegistrationCounts{}, fmt.Errorf("count verified registrations: %w", err)
		}
	}

	return models.RegistrationCounts{
		Total:      int(total),
		Verified:   int(verified),
		Unverified: int(total - verified),
	}, nil
}

// GroupCount aggregates registrations by a field, largest bucket first.
func (r *RegistrationMongoRepository) GroupCount(ctx context.Context, field models.GroupField) ([]models.GroupCount, error) {
	if _, ok := groupColumns[field]; !ok {
		return nil, fmt.Errorf("unsupported group field %q", field)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + string(field)},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("group registrations by %s: %w", field, err)
	}
	groups := []models.GroupCount{}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode %s groups: %w", field, err)
	}
	return groups, nil
}

// Ping checks connectivity with the deployment.
func (r *RegistrationMongoRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *RegistrationMongoRepository) findOne(ctx context.Context, op string, filter bson.D) (*models.Registration, error) {
	var reg models.Registration
	if err := r.coll.FindOne(ctx, filter).Decode(&reg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &reg, nil
}

func mongoFilter(filter models.RegistrationFilter) bson.D {
	f := bson.D{}
	if filter.Department != "" {
		f = append(f, bson.E{Key: "department", Value: filter.Department})
	}
	if filter.Verified != nil {
		f = append(f, bson.E{Key: "is_verified", Value: *filter.Verified})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := bson.D{{Key: "$regex", Value: regexp.QuoteMeta(search)}, {Key: "$options", Value: "i"}}
		f = append(f, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "full_name", Value: pattern}},
			bson.D{{Key: "email", Value: pattern}},
			bson.D{{Key: "ken", Value: pattern}},
			bson.D{{Key: "registration_number", Value: pattern}},
		}})
	}
	return f
}

func duplicateKey(err error) *UniqueViolationError {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	msg := err.Error()
	for index, field := range mongoIndexFields {
		if strings.Contains(msg, index) {
			return &UniqueViolationError{Field: field, Err: err}
		}
	}
	return &UniqueViolationError{Err: err}
}
