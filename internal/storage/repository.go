package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound indicates no matching record.
var ErrNotFound = errors.New("record not found")

// Chitalishte is one cultural institution record.
type Chitalishte struct {
	ID           int64
	Name         string
	Region       string
	Municipality string
	Town         string
	Address      sql.NullString
	Phone        sql.NullString
	Email        sql.NullString
	Chairman     sql.NullString
	Secretary    sql.NullString
	MembersCount sql.NullInt64
	FoundedYear  sql.NullInt64
	Status       string
}

// repoDB is the database surface the repository needs.
type repoDB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ChitalishteRepository provides read access to the chitalishte table.
// Its keyword search doubles as the degraded retriever when no vector
// store is configured.
type ChitalishteRepository struct {
	db repoDB
}

// NewChitalishteRepository creates the repository.
func NewChitalishteRepository(db repoDB) *ChitalishteRepository {
	return &ChitalishteRepository{db: db}
}

const chitalishteColumns = `
	id, name, region, municipality, town, address, phone, email,
	chairman, secretary, members_count, founded_year, status`

// GetByID retrieves one record.
func (r *ChitalishteRepository) GetByID(ctx context.Context, id int64) (*Chitalishte, error) {
	query := `SELECT` + chitalishteColumns + ` FROM chitalishte WHERE id = $1`

	c := &Chitalishte{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Region, &c.Municipality, &c.Town, &c.Address,
		&c.Phone, &c.Email, &c.Chairman, &c.Secretary, &c.MembersCount,
		&c.FoundedYear, &c.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// SearchByKeyword finds records whose name, town, or region contains the
// keyword, case-insensitive.
func (r *ChitalishteRepository) SearchByKeyword(ctx context.Context, keyword string, limit int) ([]Chitalishte, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT` + chitalishteColumns + `
		FROM chitalishte
		WHERE LOWER(name) LIKE LOWER($1)
		   OR LOWER(town) LIKE LOWER($1)
		   OR LOWER(region) LIKE LOWER($1)
		ORDER BY name
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, "%"+keyword+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var results []Chitalishte
	for rows.Next() {
		var c Chitalishte
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Region, &c.Municipality, &c.Town, &c.Address,
			&c.Phone, &c.Email, &c.Chairman, &c.Secretary, &c.MembersCount,
			&c.FoundedYear, &c.Status,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}
