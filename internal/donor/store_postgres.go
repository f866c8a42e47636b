package donor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/blood"
	"bloodlink/internal/eligibility"
	"bloodlink/pkg/platform/sentinel"
)

// PostgresStore persists donors in PostgreSQL. Pure I/O; eligibility and
// lifecycle rules live in the services that call it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, d *Donor) error {
	query := `
		INSERT INTO donors (id, full_name, email, mobile, gender, blood_group, weight,
			last_donation_date, has_disease, had_surgery, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.FullName, d.Email, d.Mobile, string(d.Gender), string(d.BloodGroup),
		d.Weight, d.LastDonationDate, d.HasDisease, d.HadSurgery, d.IsAvailable,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create donor: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Donor, error) {
	query := `
		SELECT id, full_name, email, mobile, gender, blood_group, weight,
			last_donation_date, has_disease, had_surgery, is_available, created_at, updated_at
		FROM donors
		WHERE id = $1
	`
	d, err := scanDonor(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get donor: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) SetLastDonationDate(ctx context.Context, id uuid.UUID, donatedAt time.Time) error {
	query := `
		UPDATE donors
		SET last_donation_date = $2, updated_at = $2
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, donatedAt)
	if err != nil {
		return fmt.Errorf("set last donation date: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set last donation date: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonor(row rowScanner) (*Donor, error) {
	var d Donor
	var gender, group string
	var lastDonation sql.NullTime
	err := row.Scan(
		&d.ID, &d.FullName, &d.Email, &d.Mobile, &gender, &group, &d.Weight,
		&lastDonation, &d.HasDisease, &d.HadSurgery, &d.IsAvailable,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Gender = eligibility.Gender(gender)
	d.BloodGroup = blood.Group(group)
	if lastDonation.Valid {
		t := lastDonation.Time
		d.LastDonationDate = &t
	}
	return &d, nil
}
