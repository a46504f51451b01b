package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/transcript-api/internal/models"
)

const studentColumns = `id, matric_no, password_hash, email, phone, full_name, surname, first_name, other_name, department, school, level, entry_session, created_at, updated_at`

// StudentRepository persists registered student accounts.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByMatric returns the account for a matriculation number or sql.ErrNoRows.
func (r *StudentRepository) FindByMatric(ctx context.Context, matric string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE matric_no = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, matric); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by matric: %w", err)
	}
	return &student, nil
}

// MatricByID returns the matriculation number of an account or sql.ErrNoRows.
func (r *StudentRepository) MatricByID(ctx context.Context, id string) (string, error) {
	var matric string
	err := r.db.GetContext(ctx, &matric, `SELECT matric_no FROM students WHERE id = $1`, id)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("find matric for student %s: %w", id, err)
	}
	return matric, err
}

// ExistsByMatric reports whether an account already exists.
func (r *StudentRepository) ExistsByMatric(ctx context.Context, exec sqlx.ExtContext, matric string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM students WHERE matric_no = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, matric); err != nil {
		return false, fmt.Errorf("check student exists: %w", err)
	}
	return exists, nil
}

// Create inserts a student. A unique violation is reported as ErrDuplicate.
func (r *StudentRepository) Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now

	const query = `
INSERT INTO students (id, matric_no, password_hash, email, phone, full_name, surname, first_name, other_name, department, school, level, entry_session, created_at, updated_at)
VALUES (:id, :matric_no, :password_hash, :email, :phone, :full_name, :surname, :first_name, :other_name, :department, :school, :level, :entry_session, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, student); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}
