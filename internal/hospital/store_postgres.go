package hospital

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bloodlink/internal/blood"
	"bloodlink/pkg/platform/sentinel"
)

// PostgresStore persists hospitals and their inventory counters. Counters
// live in hospital_inventory, one row per (hospital, blood key), so an
// adjustment is a single-row atomic UPDATE and concurrent adjustments on the
// same counter can never lose updates.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, h *Hospital) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create hospital: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO hospitals (id, hospital_name, email, phone, address, city, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, h.ID, h.HospitalName, h.Email, h.Phone, h.Address, h.City, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create hospital: %w", err)
	}

	inv := h.Inventory
	if inv == nil {
		inv = NewInventory()
	}
	for _, key := range blood.InventoryKeys() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO hospital_inventory (hospital_id, blood_key, units)
			VALUES ($1, $2, $3)
		`, h.ID, key, inv[key])
		if err != nil {
			return fmt.Errorf("seed inventory %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create hospital: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	var h Hospital
	err := s.db.QueryRowContext(ctx, `
		SELECT id, hospital_name, email, phone, address, city, created_at, updated_at
		FROM hospitals
		WHERE id = $1
	`, id).Scan(&h.ID, &h.HospitalName, &h.Email, &h.Phone, &h.Address, &h.City, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get hospital: %w", err)
	}

	inv, err := s.GetInventory(ctx, id)
	if err != nil {
		return nil, err
	}
	h.Inventory = inv
	return &h, nil
}

func (s *PostgresStore) GetInventory(ctx context.Context, id uuid.UUID) (Inventory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT blood_key, units
		FROM hospital_inventory
		WHERE hospital_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	defer rows.Close()

	inv := make(Inventory, len(blood.Groups))
	for rows.Next() {
		var key string
		var units int
		if err := rows.Scan(&key, &units); err != nil {
			return nil, fmt.Errorf("get inventory: %w", err)
		}
		inv[key] = units
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	if len(inv) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return inv, nil
}

// Adjust applies an adjustment in one atomic statement. The CTE captures the
// pre-update count so a clamped remove is distinguishable from a full
// deduction that legitimately ends at zero.
func (s *PostgresStore) Adjust(ctx context.Context, id uuid.UUID, key string, quantity int, action Action) (AdjustResult, error) {
	var expr string
	switch action {
	case ActionAdd:
		expr = "i.units + $3"
	case ActionRemove:
		expr = "GREATEST(0, i.units - $3)"
	case ActionSet:
		expr = "$3"
	default:
		return AdjustResult{}, sentinel.ErrInvalidState
	}

	query := fmt.Sprintf(`
		WITH prev AS (
			SELECT units FROM hospital_inventory
			WHERE hospital_id = $1 AND blood_key = $2
		)
		UPDATE hospital_inventory i
		SET units = %s
		FROM prev
		WHERE i.hospital_id = $1 AND i.blood_key = $2
		RETURNING i.units, prev.units
	`, expr)

	var newUnits, prevUnits int
	err := s.db.QueryRowContext(ctx, query, id, key, quantity).Scan(&newUnits, &prevUnits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AdjustResult{}, sentinel.ErrNotFound
		}
		return AdjustResult{}, fmt.Errorf("adjust inventory: %w", err)
	}

	clamped := action == ActionRemove && quantity > prevUnits
	return AdjustResult{Key: key, Units: newUnits, Clamped: clamped}, nil
}
