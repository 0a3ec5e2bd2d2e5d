package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ndc-portal-api/internal/dto"
	"github.com/noah-isme/ndc-portal-api/internal/models"
	"github.com/noah-isme/ndc-portal-api/internal/repository"
	appErrors "github.com/noah-isme/ndc-portal-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
}

// CourseService manages the course catalogue.
type CourseService struct {
	repo      courseRepository
	audit     auditTrail
	validator *validator.Validate
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &CourseService{
		repo:      repo,
		audit:     auditTrail{writer: audit, logger: logger, source: "course-service"},
		validator: validate,
	}
}

// List returns every course.
func (s *CourseService) List(ctx context.Context) ([]models.Course, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Upstream(err, "failed to list courses")
	}
	return items, nil
}

// Create adds a course; only the super-admin may call it.
func (s *CourseService) Create(ctx context.Context, req dto.CreateCourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}

	course := &models.Course{Name: req.Name}
	if err := s.repo.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course already exists")
		}
		return nil, appErrors.Upstream(err, "failed to create course")
	}
	s.audit.emit(ctx, actor.UserID, models.AuditActionCourseCreate, models.AuditResourceCourse, course.ID, map[string]string{"name": course.Name})
	return course, nil
}
