package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/event-registration-api/internal/models"
)

const (
	registrationColumns = `id, registration_number, full_name, email, contact_number, department, ken, food_preference, registration_type, accommodation, is_verified, verified_number, registration_date, verification_date, created_by, created_at, updated_at`

	pqUniqueViolation = "23505"
)

var uniqueColumns = map[models.UniqueField]string{
	models.UniqueFieldRegistrationNumber: "registration_number",
	models.UniqueFieldVerifiedNumber:     "verified_number",
	models.UniqueFieldKen:                "ken",
	models.UniqueFieldEmail:              "email",
}

var groupColumns = map[models.GroupField]string{
	models.GroupFieldDepartment:       "department",
	models.GroupFieldRegistrationType: "registration_type",
	models.GroupFieldAccommodation:    "accommodation",
}

var constraintFields = map[string]models.UniqueField{
	"registrations_registration_number_key": models.UniqueFieldRegistrationNumber,
	"registrations_verified_number_key":     models.UniqueFieldVerifiedNumber,
	"registrations_ken_key":                 models.UniqueFieldKen,
	"registrations_email_key":               models.UniqueFieldEmail,
}

// RegistrationRepository stores registrations in PostgreSQL.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository creates a new instance of RegistrationRepository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a registration. Unique constraint failures surface as *UniqueViolationError.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
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

	const query = `INSERT INTO registrations (` + registrationColumns + `) VALUES (:id, :registration_number, :full_name, :email, :contact_number, :department, :ken, :food_preference, :registration_type, :accommodation, :is_verified, :verified_number, :registration_date, :verification_date, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		if uv := uniqueViolation(err); uv != nil {
			return uv
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// Exists reports whether any registration holds value in the given unique field.
func (r *RegistrationRepository) Exists(ctx context.Context, field models.UniqueField, value string) (bool, error) {
	column, ok := uniqueColumns[field]
	if !ok {
		return false, fmt.Errorf("unsupported lookup field %q", field)
	}

	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM registrations WHERE %s = $1)", column)
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, value); err != nil {
		return false, fmt.Errorf("check %s exists: %w", column, err)
	}
	return exists, nil
}

// FindByID returns a registration by identifier.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	return r.findOne(ctx, "find registration by id", `SELECT `+registrationColumns+` FROM registrations WHERE id = $1 LIMIT 1`, id)
}

// FindByKen returns the registration owning a KEN.
func (r *RegistrationRepository) FindByKen(ctx context.Context, ken string) (*models.Registration, error) {
	return r.findOne(ctx, "find registration by ken", `SELECT `+registrationColumns+` FROM registrations WHERE ken = $1 LIMIT 1`, ken)
}

// FindByNumberAndContact matches both the registration number and the contact number.
func (r *RegistrationRepository) FindByNumberAndContact(ctx context.Context, registrationNumber, contactNumber string) (*models.Registration, error) {
	return r.findOne(ctx, "find registration by number and contact",
		`SELECT `+registrationColumns+` FROM registrations WHERE registration_number = $1 AND contact_number = $2 LIMIT 1`,
		registrationNumber, contactNumber)
}

// MarkVerified transitions an unverified registration. It reports false when the row was already verified.
func (r *RegistrationRepository) MarkVerified(ctx context.Context, id, verifiedNumber string, verifiedAt time.Time) (bool, error) {
	const query = `UPDATE registrations SET is_verified = TRUE, verified_number = $2, verification_date = $3, updated_at = $3 WHERE id = $1 AND is_verified = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, verifiedNumber, verifiedAt)
	if err != nil {
		if uv := uniqueViolation(err); uv != nil {
			return false, uv
		}
		return false, fmt.Errorf("mark registration verified: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark registration verified rows: %w", err)
	}
	return affected == 1, nil
}

// List returns registrations matching the filter, newest first.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error) {
	where, args := buildRegistrationWhere(filter)

	query := fmt.Sprintf("SELECT %s FROM registrations%s ORDER BY registration_date DESC, created_at DESC", registrationColumns, where)
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.PageSize, (page-1)*filter.PageSize)
	}

	regs := []models.Registration{}
	if err := r.db.SelectContext(ctx, &regs, query, args...); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// Counts returns total, verified and unverified counts over the filtered set.
func (r *RegistrationRepository) Counts(ctx context.Context, filter models.RegistrationFilter) (models.RegistrationCounts, error) {
	where, args := buildRegistrationWhere(filter)
	query := "SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_verified) AS verified, COUNT(*) FILTER (WHERE NOT is_verified) AS unverified FROM registrations" + where

	var counts models.RegistrationCounts
	if err := r.db.GetContext(ctx, &counts, query, args...); err != nil {
		return models.RegistrationCounts{}, fmt.Errorf("count registrations: %w", err)
	}
	return counts, nil
}

// GroupCount aggregates registrations by a column, largest bucket first.
func (r *RegistrationRepository) GroupCount(ctx context.Context, field models.GroupField) ([]models.GroupCount, error) {
	column, ok := groupColumns[field]
	if !ok {
		return nil, fmt.Errorf("unsupported group field %q", field)
	}

	query := fmt.Sprintf("SELECT %s AS key, COUNT(*) AS count FROM registrations GROUP BY %s ORDER BY count DESC, key ASC", column, column)
	groups := []models.GroupCount{}
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("group registrations by %s: %w", column, err)
	}
	return groups, nil
}

// Ping checks database connectivity.
func (r *RegistrationRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *RegistrationRepository) findOne(ctx context.Context, op, query string, args ...interface{}) (*models.Registration, error) {
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &reg, nil
}

// likeEscaper makes search terms match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func buildRegistrationWhere(filter models.RegistrationFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.Verified != nil {
		args = append(args, *filter.Verified)
		conditions = append(conditions, fmt.Sprintf("is_verified = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(search))+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(full_name) LIKE $%[1]d ESCAPE '\\' OR LOWER(email) LIKE $%[1]d ESCAPE '\\' OR LOWER(ken) LIKE $%[1]d ESCAPE '\\' OR registration_number LIKE $%[1]d ESCAPE '\\')", n))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func uniqueViolation(err error) *UniqueViolationError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqUniqueViolation {
		return nil
	}
	field, ok := constraintFields[pqErr.Constraint]
	if !ok {
		for column, f := range map[string]models.UniqueField{
			"registration_number": models.UniqueFieldRegistrationNumber,
			"verified_number":     models.UniqueFieldVerifiedNumber,
			"ken":                 models.UniqueFieldKen,
			"email":               models.UniqueFieldEmail,
		} {
			if strings.Contains(pqErr.Constraint, column) {
				field = f
				break
			}
		}
	}
	return &UniqueViolationError{Field: field, Err: err}
}
