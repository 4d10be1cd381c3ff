package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/siwes-logbook-api/internal/models"
	appErrors "github.com/noah-isme/siwes-logbook-api/pkg/errors"
)

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	ExistsByMatric(ctx context.Context, matricNo, excludeID string) (bool, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ListBySupervisor(ctx context.Context, supervisorID string) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	SetFlags(ctx context.Context, id string, locked, graded bool) error
}

// StudentService manages student registration and placement records.
type StudentService struct {
	studentRepo studentRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(students studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{studentRepo: students, validator: validate, logger: logger}
}

// RegisterStudentRequest captures a student's registration and placement.
type RegisterStudentRequest struct {
	UserID         *string `json:"user_id"`
	MatricNo       string  `json:"matric_no" validate:"required"`
	FullName       string  `json:"full_name" validate:"required,min=2"`
	Department     string  `json:"department" validate:"required"`
	Faculty        string  `json:"faculty" validate:"required"`
	CompanyName    string  `json:"company_name"`
	CompanyAddress string  `json:"company_address"`
	PlacementStart *string `json:"placement_start"`
}

// UpdateStudentRequest modifies registration and placement details.
type UpdateStudentRequest struct {
	FullName       *string `json:"full_name" validate:"omitempty,min=2"`
	Department     *string `json:"department"`
	Faculty        *string `json:"faculty"`
	CompanyName    *string `json:"company_name"`
	CompanyAddress *string `json:"company_address"`
	PlacementStart *string `json:"placement_start"`
}

func parsePlacementStart(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	ts, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid placement_start, expected YYYY-MM-DD")
	}
	return &ts, nil
}

// Register creates a student record. Matric numbers are unique.
func (s *StudentService) Register(ctx context.Context, req RegisterStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	matricNo := strings.ToUpper(strings.TrimSpace(req.MatricNo))
	exists, err := s.studentRepo.ExistsByMatric(ctx, matricNo, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check matric number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "matric number already registered")
	}

	placementStart, err := parsePlacementStart(req.PlacementStart)
	if err != nil {
		return nil, err
	}

	student := &models.Student{
		UserID:         req.UserID,
		MatricNo:       matricNo,
		FullName:       req.FullName,
		Department:     req.Department,
		Faculty:        req.Faculty,
		CompanyName:    req.CompanyName,
		CompanyAddress: req.CompanyAddress,
		PlacementStart: placementStart,
	}
	if err := s.studentRepo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register student")
	}
	return student, nil
}

// Get loads one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.studentRepo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// GetOwn loads the student profile behind a user account.
func (s *StudentService) GetOwn(ctx context.Context, userID string) (*models.Student, error) {
	student, err := s.studentRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// List returns students matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.studentRepo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Update modifies registration and placement details. The supervisor cache
// columns are owned by the assignment engine and are never written here.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		student.FullName = *req.FullName
	}
	if req.Department != nil {
		student.Department = *req.Department
	}
	if req.Faculty != nil {
		student.Faculty = *req.Faculty
	}
	if req.CompanyName != nil {
		student.CompanyName = *req.CompanyName
	}
	if req.CompanyAddress != nil {
		student.CompanyAddress = *req.CompanyAddress
	}
	if req.PlacementStart != nil {
		placementStart, err := parsePlacementStart(req.PlacementStart)
		if err != nil {
			return nil, err
		}
		student.PlacementStart = placementStart
	}

	if err := s.studentRepo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// SetFlags updates the administrative lock and grade markers.
func (s *StudentService) SetFlags(ctx context.Context, id string, locked, graded bool) (*models.Student, error) {
	if err := s.studentRepo.SetFlags(ctx, id, locked, graded); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student flags")
	}
	return s.Get(ctx, id)
}

// ListBySupervisor returns the students carried by a supervisor.
func (s *StudentService) ListBySupervisor(ctx context.Context, supervisorID string) ([]models.Student, error) {
	students, err := s.studentRepo.ListBySupervisor(ctx, supervisorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}
