package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/transcript-api/internal/models"
)

var studentRowColumns = []string{"id", "matric_no", "password_hash", "email", "phone", "full_name", "surname", "first_name", "other_name", "department", "school", "level", "entry_session", "created_at", "updated_at"}

func TestStudentRepositoryFindByMatric(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("s-1", "CSC/2015/001", "hash", "ada@example.com", nil, "Okafor Ada", "Okafor", "Ada", nil, "Computer Science", "Science", "400", "2015/2016", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE matric_no = $1 LIMIT 1")).
		WithArgs("CSC/2015/001").
		WillReturnRows(rows)

	student, err := repo.FindByMatric(context.Background(), "CSC/2015/001")
	require.NoError(t, err)
	assert.Equal(t, "Okafor Ada", student.FullName)
	assert.Nil(t, student.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByMatric(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM students WHERE matric_no = $1)")).
		WithArgs("CSC/2015/001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByMatric(context.Background(), nil, "CSC/2015/001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{MatricNo: "CSC/2015/001", PasswordHash: "hash", Email: "ada@example.com"}
	require.NoError(t, repo.Create(context.Background(), nil, student))
	assert.NotEmpty(t, student.ID)
	assert.False(t, student.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err := repo.Create(context.Background(), nil, &models.Student{MatricNo: "CSC/2015/001"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestStudentRepositoryMatricByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT matric_no FROM students WHERE id = $1")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"matric_no"}).AddRow("CSC/2015/001"))

	matric, err := repo.MatricByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "CSC/2015/001", matric)
	assert.NoError(t, mock.ExpectationsWereMet())
}
