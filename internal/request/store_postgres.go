package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/blood"
	"bloodlink/pkg/platform/sentinel"
)

// PostgresStore persists blood requests. Status changes are conditional
// single-statement UPDATEs: the WHERE clause carries the expected source
// status, so a concurrent transition makes the statement match zero rows and
// the loser gets sentinel.ErrInvalidState instead of silently overwriting.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `
	id, requester, target_hospital, patient_name, age, patient_gender,
	blood_group, units, reason, hospital_name, doctor_name, hospital_address,
	hospital_phone, urgency, status, fulfilled_by, appointment_date,
	appointment_time, donor_message, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, r *Request) error {
	query := `
		INSERT INTO blood_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Requester, r.TargetHospital, r.PatientName, r.Age, r.PatientGender,
		string(r.BloodGroup), r.Units, r.Reason, r.HospitalName, r.DoctorName,
		r.HospitalAddress, r.HospitalPhone, string(r.Urgency), string(r.Status),
		r.FulfilledBy, r.AppointmentSlot.Date, r.AppointmentSlot.Time,
		r.DonorMessage, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM blood_requests WHERE id = $1`
	r, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM blood_requests
		WHERE requester = $1
		ORDER BY created_at DESC
	`
	return s.queryRequests(ctx, query, requesterID)
}

func (s *PostgresStore) FindMatching(ctx context.Context, group blood.Group) ([]*Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM blood_requests
		WHERE status = 'Pending' AND blood_group = $1
		ORDER BY
			CASE urgency WHEN 'critical' THEN 0 WHEN 'moderate' THEN 1 ELSE 2 END,
			created_at DESC
	`
	return s.queryRequests(ctx, query, string(group))
}

func (s *PostgresStore) ListByTargetHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM blood_requests
		WHERE target_hospital = $1
		ORDER BY created_at DESC
	`
	return s.queryRequests(ctx, query, hospitalID)
}

func (s *PostgresStore) ListByFulfiller(ctx context.Context, donorID uuid.UUID) ([]*Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM blood_requests
		WHERE fulfilled_by = $1
		ORDER BY updated_at DESC
	`
	return s.queryRequests(ctx, query, donorID)
}

func (s *PostgresStore) Schedule(ctx context.Context, id uuid.UUID, commit ScheduleCommit) (*Request, error) {
	query := `
		UPDATE blood_requests
		SET status = 'Scheduled',
			fulfilled_by = $2,
			appointment_date = $3,
			appointment_time = $4,
			donor_message = $5,
			updated_at = $6
		WHERE id = $1 AND status = 'Pending'
		RETURNING ` + requestColumns
	r, err := scanRequest(s.db.QueryRowContext(ctx, query,
		id, commit.DonorID, commit.Slot.Date, commit.Slot.Time, commit.Message, commit.Now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.missOrStale(ctx, id)
		}
		return nil, fmt.Errorf("schedule request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, now time.Time) (*Request, error) {
	query := `
		UPDATE blood_requests
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + requestColumns
	r, err := scanRequest(s.db.QueryRowContext(ctx, query, id, string(from), string(to), now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.missOrStale(ctx, id)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blood_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// missOrStale disambiguates a zero-row conditional UPDATE: the row either
// does not exist, or exists with a different status (lost the CAS race).
func (s *PostgresStore) missOrStale(ctx context.Context, id uuid.UUID) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM blood_requests WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check request state: %w", err)
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) queryRequests(ctx context.Context, query string, args ...any) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var r Request
	var group, urgency, status string
	err := row.Scan(
		&r.ID, &r.Requester, &r.TargetHospital, &r.PatientName, &r.Age,
		&r.PatientGender, &group, &r.Units, &r.Reason, &r.HospitalName,
		&r.DoctorName, &r.HospitalAddress, &r.HospitalPhone, &urgency, &status,
		&r.FulfilledBy, &r.AppointmentSlot.Date, &r.AppointmentSlot.Time,
		&r.DonorMessage, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.BloodGroup = blood.Group(group)
	r.Urgency = Urgency(urgency)
	r.Status = Status(status)
	return &r, nil
}
