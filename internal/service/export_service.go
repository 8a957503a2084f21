package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/event-registration-api/internal/dto"
	"github.com/noah-isme/event-registration-api/internal/models"
	appErrors "github.com/noah-isme/event-registration-api/pkg/errors"
	"github.com/noah-isme/event-registration-api/pkg/export"
)

// Export formats.
const (
	ExportFormatXLSX = "xlsx"
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
)

const (
	exportSheetName  = "Registrations"
	exportDateLayout = "2006-01-02 15:04:05"
	notAvailable     = "N/A"
)

var exportHeaders = []string{
	"Registration Number",
	"Full Name",
	"Email",
	"Contact Number",
	"Department",
	"KEN",
	"Food Preference",
	"Registration Type",
	"Accommodation",
	"Verified",
	"Verified Number",
	"Registration Date",
	"Verification Date",
	"Created By",
}

var exportContentTypes = map[string]string{
	ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	ExportFormatCSV:  "text/csv",
	ExportFormatPDF:  "application/pdf",
}

type exportStore interface {
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error)
}

type tableRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	FilenamePrefix string
	Title          string
}

// ExportService renders every registration into a downloadable table.
type ExportService struct {
	store  exportStore
	xlsx   tableRenderer
	csv    tableRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	cfg    ExportConfig
}

// NewExportService constructs an ExportService. Nil renderers fall back to the pkg/export defaults.
func NewExportService(store exportStore, cfg ExportConfig, logger *zap.Logger, xlsx, csv tableRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FilenamePrefix == "" {
		cfg.FilenamePrefix = "registrations"
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter(exportSheetName)
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{store: store, xlsx: xlsx, csv: csv, pdf: pdf, logger: logger, cfg: cfg}
}

// Export renders all registrations, newest first, in the requested format. An empty format means xlsx.
func (s *ExportService) Export(ctx context.Context, format string) (*dto.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatXLSX
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be one of: xlsx, csv, pdf.")
	}

	regs, err := s.store.List(ctx, models.RegistrationFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageFailure.Code, appErrors.ErrStorageFailure.Status, "Failed to export data.")
	}

	dataset := buildExportDataset(regs)

	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, s.cfg.Title)
	default:
		payload, err = s.xlsx.Render(dataset)
	}
	if err != nil {
		s.logger.Error("export render failed", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to export data.")
	}

	s.logger.Info("registrations exported", zap.String("format", format), zap.Int("rows", len(regs)))
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("%s.%s", s.cfg.FilenamePrefix, format),
		ContentType: contentType,
		Content:     payload,
	}, nil
}

func buildExportDataset(regs []models.Registration) export.Dataset {
	rows := make([]map[string]string, 0, len(regs))
	for _, reg := range regs {
		verified := "No"
		if reg.IsVerified {
			verified = "Yes"
		}
		verifiedNumber := notAvailable
		if reg.VerifiedNumber != nil && *reg.VerifiedNumber != "" {
			verifiedNumber = *reg.VerifiedNumber
		}
		verificationDate := notAvailable
		if reg.VerificationDate != nil {
			verificationDate = formatExportTime(*reg.VerificationDate)
		}

		rows = append(rows, map[string]string{
			"Registration Number": reg.RegistrationNumber,
			"Full Name":           reg.FullName,
			"Email":               reg.Email,
			"Contact Number":      reg.ContactNumber,
			"Department":          models.DepartmentDisplayName(reg.Department),
			"KEN":                 reg.Ken,
			"Food Preference":     reg.FoodPreference,
			"Registration Type":   reg.RegistrationType,
			"Accommodation":       reg.Accommodation,
			"Verified":            verified,
			"Verified Number":     verifiedNumber,
			"Registration Date":   formatExportTime(reg.RegistrationDate),
			"Verification Date":   verificationDate,
			"Created By":          reg.CreatedBy,
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}

func formatExportTime(t time.Time) string {
	return t.UTC().Format(exportDateLayout)
}
