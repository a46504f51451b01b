package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/transcript-api/internal/models"
)

var relationName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// DirectoryRepository reads verified profiles from the records database. It never writes.
type DirectoryRepository struct {
	db    *sqlx.DB
	query string
}

// NewDirectoryRepository binds the repository to a view such as std_data_view.
func NewDirectoryRepository(db *sqlx.DB, view string) (*DirectoryRepository, error) {
	if !relationName.MatchString(view) {
		return nil, fmt.Errorf("invalid directory view name %q", view)
	}
	query := `SELECT matric_no, surname, first_name, other_name, department, school, level, entry_session FROM ` +
		view + ` WHERE UPPER(TRIM(matric_no)) = $1 LIMIT 1`
	return &DirectoryRepository{db: db, query: query}, nil
}

// FindByMatric returns the profile or sql.ErrNoRows.
func (r *DirectoryRepository) FindByMatric(ctx context.Context, matric string) (*models.DirectoryProfile, error) {
	var profile models.DirectoryProfile
	if err := r.db.GetContext(ctx, &profile, r.query, matric); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("directory lookup: %w", err)
	}
	return &profile, nil
}

// Ping checks the directory connection.
func (r *DirectoryRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
