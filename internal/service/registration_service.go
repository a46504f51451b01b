package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/transcript-api/internal/dto"
	"github.com/noah-isme/transcript-api/internal/models"
	"github.com/noah-isme/transcript-api/internal/repository"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
)

const passwordHashCost = 12

type studentRepository interface {
	FindByMatric(ctx context.Context, matric string) (*models.Student, error)
	ExistsByMatric(ctx context.Context, exec sqlx.ExtContext, matric string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
}

type profileLookup interface {
	Lookup(ctx context.Context, matric string) (*models.DirectoryProfile, error)
}

// RegistrationService creates student accounts from verified directory records.
type RegistrationService struct {
	students  studentRepository
	directory profileLookup
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(students studentRepository, directory profileLookup, tx txProvider, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{students: students, directory: directory, tx: tx, validator: validate, logger: logger}
}

// Register creates an account. Profile fields always come from the directory, never from the client.
func (s *RegistrationService) Register(ctx context.Context, req dto.RegisterRequest) (*models.Student, error) {
	req.MatricNo = models.NormalizeMatric(req.MatricNo)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	profile, err := s.directory.Lookup(ctx, req.MatricNo)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), passwordHashCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	student := &models.Student{
		MatricNo:     profile.MatricNo,
		PasswordHash: string(hash),
		Email:        req.Email,
		Phone:        req.Phone,
		FullName:     profile.FullName(),
		Surname:      profile.Surname,
		FirstName:    profile.FirstName,
		OtherName:    profile.OtherName,
		Department:   profile.Department,
		School:       profile.School,
		Level:        profile.Level,
		EntrySession: profile.EntrySession,
	}
	if student.MatricNo == "" {
		student.MatricNo = req.MatricNo
	}

	err = inTx(ctx, s.tx, "failed to commit registration", func(tx *sqlx.Tx) error {
		exists, err := s.students.ExistsByMatric(ctx, tx, student.MatricNo)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check account")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "Account already exists")
		}
		err = s.students.Create(ctx, tx, student)
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrConflict, "Account already exists")
		}
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("student registered", zap.String("matric_no", student.MatricNo), zap.String("student_id", student.ID))
	return student, nil
}

// Profile returns the stored account snapshot.
func (s *RegistrationService) Profile(ctx context.Context, matric string) (*models.Student, error) {
	student, err := s.students.FindByMatric(ctx, models.NormalizeMatric(matric))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return student, nil
}
