package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/transcript-api/internal/dto"
	"github.com/noah-isme/transcript-api/internal/models"
	"github.com/noah-isme/transcript-api/internal/repository"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
)

type studentRepoFake struct {
	students  map[string]*models.Student
	createErr error
	created   []*models.Student
}

func newStudentRepoFake(students ...*models.Student) *studentRepoFake {
	f := &studentRepoFake{students: map[string]*models.Student{}}
	for _, s := range students {
		f.students[s.MatricNo] = s
	}
	return f
}

func (f *studentRepoFake) FindByMatric(ctx context.Context, matric string) (*models.Student, error) {
	if s, ok := f.students[matric]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *studentRepoFake) ExistsByMatric(ctx context.Context, exec sqlx.ExtContext, matric string) (bool, error) {
	_, ok := f.students[matric]
	return ok, nil
}

func (f *studentRepoFake) Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	if f.createErr != nil {
		return f.createErr
	}
	student.ID = "student-" + student.MatricNo
	f.students[student.MatricNo] = student
	f.created = append(f.created, student)
	return nil
}

type profileLookupStub struct {
	profile *models.DirectoryProfile
	err     error
}

func (s profileLookupStub) Lookup(ctx context.Context, matric string) (*models.DirectoryProfile, error) {
	return s.profile, s.err
}

func sampleProfile() *models.DirectoryProfile {
	other := "Chioma"
	return &models.DirectoryProfile{
		MatricNo:     "U2020/1001",
		Surname:      "Okafor",
		FirstName:    "Ada",
		OtherName:    &other,
		Department:   "Computer Science",
		School:       "Physical Sciences",
		Level:        "400",
		EntrySession: "2020/2021",
	}
}

func TestRegistrationServiceRegister(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := newStudentRepoFake()
	svc := NewRegistrationService(repo, profileLookupStub{profile: sampleProfile()}, tx, nil, nil)

	student, err := svc.Register(context.Background(), dto.RegisterRequest{
		MatricNo: " u2020/1001 ",
		Password: "correct-horse",
		Email:    "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "U2020/1001", student.MatricNo)
	assert.Equal(t, "Okafor Ada Chioma", student.FullName)
	assert.Equal(t, "Computer Science", student.Department)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte("correct-horse")))
	cost, err := bcrypt.Cost([]byte(student.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, 12, cost)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationServiceRegisterConflict(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := newStudentRepoFake(&models.Student{ID: "s1", MatricNo: "U2020/1001"})
	svc := NewRegistrationService(repo, profileLookupStub{profile: sampleProfile()}, tx, nil, nil)

	_, err := svc.Register(context.Background(), dto.RegisterRequest{MatricNo: "U2020/1001", Password: "password1", Email: "ada@example.com"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
	assert.Equal(t, "Account already exists", appErrors.FromError(err).Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationServiceRegisterUniqueRace(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := newStudentRepoFake()
	repo.createErr = repository.ErrDuplicate
	svc := NewRegistrationService(repo, profileLookupStub{profile: sampleProfile()}, tx, nil, nil)

	_, err := svc.Register(context.Background(), dto.RegisterRequest{MatricNo: "U2020/1001", Password: "password1", Email: "ada@example.com"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationServiceRegisterRejectsInvalidInput(t *testing.T) {
	svc := NewRegistrationService(newStudentRepoFake(), profileLookupStub{profile: sampleProfile()}, nil, nil, nil)

	_, err := svc.Register(context.Background(), dto.RegisterRequest{MatricNo: "U2020/1001", Password: "short", Email: "ada@example.com"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.Register(context.Background(), dto.RegisterRequest{MatricNo: "U2020/1001", Password: "password1", Email: "not-an-email"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestRegistrationServiceRegisterDirectoryMiss(t *testing.T) {
	lookup := profileLookupStub{err: appErrors.Clone(appErrors.ErrNotFound, "student record not found")}
	svc := NewRegistrationService(newStudentRepoFake(), lookup, nil, nil, nil)

	_, err := svc.Register(context.Background(), dto.RegisterRequest{MatricNo: "U2020/1001", Password: "password1", Email: "ada@example.com"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestRegistrationServiceProfile(t *testing.T) {
	svc := NewRegistrationService(newStudentRepoFake(&models.Student{ID: "s1", MatricNo: "U2020/1001"}), nil, nil, nil, nil)

	student, err := svc.Profile(context.Background(), "u2020/1001")
	require.NoError(t, err)
	assert.Equal(t, "s1", student.ID)

	_, err = svc.Profile(context.Background(), "U2020/0000")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
