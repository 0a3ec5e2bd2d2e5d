package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ndc-portal-api/internal/dto"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
	"github.com/noah-isme/ndc-portal-api/pkg/export"
	"github.com/noah-isme/ndc-portal-api/pkg/storage"
)

type progressTracker interface {
	Track(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.ApprovalProgress, error)
}

type requestLister interface {
	List(ctx context.Context, query dto.NDCRequestQuery, actor *models.JWTClaims) ([]dto.NDCRequestSummary, *models.Pagination, error)
}

type csvRenderer interface {
	Render(table export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(cert export.Certificate) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

const csvPageSize = 100

// ExportService renders request certificates and dashboard exports for the super-admin.
type ExportService struct {
	requests requestReader
	tracker  progressTracker
	lister   requestLister
	photos   storage.PhotoStore
	csv      csvRenderer
	pdf      pdfRenderer
	audit    auditTrail
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(requests requestReader, tracker progressTracker, lister requestLister, photos storage.PhotoStore, audit auditWriter, metrics *MetricsService, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		requests: requests,
		tracker:  tracker,
		lister:   lister,
		photos:   photos,
		csv:      csv,
		pdf:      pdf,
		audit:    auditTrail{writer: audit, logger: logger, source: "export-service"},
		metrics:  metrics,
		validate: NewValidator(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestPDF renders the certificate of a single request.
func (s *ExportService) RequestPDF(ctx context.Context, requestID string, actor *models.JWTClaims) (*ExportFile, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validate.Var(requestID, "required,uuid"); err != nil {
		return nil, validationError(err, "invalid request id")
	}
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Upstream(err, "failed to load request")
	}

	progress, err := s.tracker.Track(ctx, req.ID, actor)
	if err != nil {
		if !errors.Is(err, appErrors.ErrNoApprovers) {
			return nil, err
		}
		progress = &dto.ApprovalProgress{
			RequestID:       req.ID,
			TicketNumber:    req.TicketNumber,
			ApprovalSummary: dto.ApprovalSummary{OverallStatus: dto.OverallNoApprovers},
		}
	}

	cert := export.Certificate{
		Title: "No Dues Certificate Request",
		Fields: []export.Field{
			{Label: "Ticket Number", Value: req.TicketNumber},
			{Label: "Student Name", Value: req.StudentName},
			{Label: "Course", Value: req.Course},
			{Label: "Batch", Value: req.Batch},
			{Label: "Roll Number", Value: req.RollNumber},
			{Label: "Phone Number", Value: req.PhoneNumber},
			{Label: "Email", Value: req.Email},
			{Label: "Address", Value: req.Address},
			{Label: "Status", Value: req.Status},
			{Label: "Submitted", Value: req.CreatedAt.Format("02 Jan 2006 15:04")},
		},
		Approvals: approvalTable(progress.StatusList),
		Footer:    fmt.Sprintf("Overall status: %s (%d%% approved)", progress.OverallStatus, progress.ProgressPercent),
	}
	if req.PhotoKey != nil {
		cert.Photo, cert.PhotoType = s.loadPhoto(ctx, *req.PhotoKey)
	}

	data, err := s.pdf.Render(cert)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}

	s.metrics.RecordExport("pdf")
	s.audit.emit(ctx, actor.UserID, models.AuditActionCertificateExport, models.AuditResourceRequest, req.ID, map[string]string{"format": "pdf"})
	return &ExportFile{
		Filename:    fmt.Sprintf("NDC_Request_%s.pdf", req.TicketNumber),
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

// RequestsCSV renders every request matching the filter with its approval progress.
func (s *ExportService) RequestsCSV(ctx context.Context, query dto.NDCRequestQuery, actor *models.JWTClaims) (*ExportFile, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}

	table := export.Table{Headers: []string{
		"Ticket Number", "Student Name", "Course", "Batch", "Roll Number", "Phone Number", "Email",
		"Submitted", "Approved", "Rejected", "Pending", "Total Admins", "Progress %", "Overall Status",
	}}

	query.PageSize = csvPageSize
	for page := 1; ; page++ {
		query.Page = page
		rows, pagination, err := s.lister.List(ctx, query, actor)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			table.Rows = append(table.Rows, []string{
				row.TicketNumber,
				row.StudentName,
				row.Course,
				row.Batch,
				row.RollNumber,
				row.PhoneNumber,
				row.Email,
				row.CreatedAt.Format(time.RFC3339),
				strconv.Itoa(row.Approval.Approved),
				strconv.Itoa(row.Approval.Rejected),
				strconv.Itoa(row.Approval.Pending),
				strconv.Itoa(row.Approval.TotalAdmins),
				strconv.Itoa(row.Approval.ProgressPercent),
				row.Approval.OverallStatus,
			})
		}
		if len(rows) < csvPageSize || pagination == nil || page*csvPageSize >= pagination.TotalCount {
			break
		}
	}

	data, err := s.csv.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}

	s.metrics.RecordExport("csv")
	s.audit.emit(ctx, actor.UserID, models.AuditActionCertificateExport, models.AuditResourceRequest, "", map[string]interface{}{
		"format": "csv",
		"rows":   len(table.Rows),
	})
	return &ExportFile{
		Filename:    fmt.Sprintf("ndc_requests_%s.csv", s.now().Format("20060102")),
		ContentType: "text/csv",
		Data:        data,
	}, nil
}

// loadPhoto returns the photo bytes and gofpdf image type; a missing or unreadable photo is skipped.
func (s *ExportService) loadPhoto(ctx context.Context, key string) ([]byte, string) {
	if s.photos == nil {
		return nil, ""
	}
	rc, err := s.photos.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("failed to fetch photo for certificate", zap.String("key", key), zap.Error(err))
		}
		return nil, ""
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		s.logger.Warn("failed to read photo for certificate", zap.String("key", key), zap.Error(err))
		return nil, ""
	}
	switch detected := mimetype.Detect(data); {
	case detected.Is("image/png"):
		return data, "PNG"
	case detected.Is("image/jpeg"):
		return data, "JPG"
	default:
		return nil, ""
	}
}

func approvalTable(items []dto.ApprovalStatusItem) export.Table {
	table := export.Table{Headers: []string{"Approver", "Status", "Remarks", "Updated"}}
	for _, item := range items {
		updated := "-"
		if item.UpdatedAt != nil {
			updated = item.UpdatedAt.Format("02 Jan 2006")
		}
		status := strings.ToUpper(string(item.Status))
		if item.ReviewRequested {
			status += " (review requested)"
		}
		table.Rows = append(table.Rows, []string{item.DisplayName, status, item.Remarks, updated})
	}
	return table
}

func requireSuperAdmin(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleSuperAdmin {
		return appErrors.ErrForbidden
	}
	return nil
}
