package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

const selectUnit = `
	SELECT
		property_id,
		unit_number,
		unit_type,
		rent_amount,
		billing_reference,
		description,
		position,
		is_occupied,
		tenant_id,
		row_version,
		updated_at
	FROM units
`

const insertUnit = `
	INSERT INTO units (
		property_id, unit_number, unit_type, rent_amount, billing_reference,
		description, position, is_occupied, tenant_id, row_version, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NOW())
`

type unitRepository struct {
	db DBTX
}

// NewUnitRepository creates a UnitRepository over db.
func NewUnitRepository(db DBTX) UnitRepository {
	return &unitRepository{db: db}
}

// CreateMany inserts units in a single batch. Units with a zero row version
// start at version 1.
func (r *unitRepository) CreateMany(ctx context.Context, units []models.Unit) error {
	if len(units) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range units {
		u := &units[i]
		if u.RowVersion == 0 {
			u.RowVersion = 1
		}
		batch.Queue(insertUnit,
			u.PropertyID, u.UnitNumber, u.UnitType, u.RentAmount, u.BillingReference,
			u.Description, u.Position, u.IsOccupied, u.TenantID, u.RowVersion,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range units {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert unit %s: %w", units[i].UnitNumber, mapWriteError(err))
		}
	}
	return nil
}

func (r *unitRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Unit, error) {
	rows, err := r.db.Query(ctx, selectUnit+" WHERE property_id = $1 ORDER BY position", propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list units for property %s: %w", propertyID, err)
	}
	defer rows.Close()

	units := []models.Unit{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit row: %w", err)
		}
		units = append(units, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unit rows: %w", err)
	}
	return units, nil
}

func (r *unitRepository) Get(ctx context.Context, propertyID uuid.UUID, unitNumber string) (*models.Unit, error) {
	u, err := scanUnit(r.db.QueryRow(ctx, selectUnit+" WHERE property_id = $1 AND unit_number = $2", propertyID, unitNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query unit %s/%s: %w", propertyID, unitNumber, err)
	}
	return u, nil
}

func (r *unitRepository) GetByBillingReference(ctx context.Context, ref string) (*models.Unit, error) {
	u, err := scanUnit(r.db.QueryRow(ctx, selectUnit+" WHERE billing_reference = $1", ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query unit by billing reference %q: %w", ref, err)
	}
	return u, nil
}

func (r *unitRepository) FindBillingReferences(ctx context.Context, refs []string, excludeProperty uuid.UUID) ([]string, error) {
	if len(refs) == 0 {
		return []string{}, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT billing_reference
		FROM units
		WHERE billing_reference = ANY($1) AND property_id <> $2
		ORDER BY billing_reference
	`, refs, excludeProperty)
	if err != nil {
		return nil, fmt.Errorf("failed to look up billing references: %w", err)
	}

	taken, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect billing references: %w", err)
	}
	return taken, nil
}

func (r *unitRepository) UpdateIfVersion(ctx context.Context, u *models.Unit, expected int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE units
		SET is_occupied = $1,
			tenant_id = $2,
			rent_amount = $3,
			unit_type = $4,
			description = $5,
			row_version = row_version + 1,
			updated_at = NOW()
		WHERE property_id = $6 AND unit_number = $7 AND row_version = $8
	`, u.IsOccupied, u.TenantID, u.RentAmount, u.UnitType, u.Description, u.PropertyID, u.UnitNumber, expected)
	if err := versionChecked(tag, err); err != nil {
		return err
	}
	u.RowVersion = expected + 1
	return nil
}

// ReplaceForProperty deletes the property's units and inserts units in their
// place. Callers run it inside WithTx.
func (r *unitRepository) ReplaceForProperty(ctx context.Context, propertyID uuid.UUID, units []models.Unit) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM units WHERE property_id = $1`, propertyID); err != nil {
		return fmt.Errorf("failed to clear units for property %s: %w", propertyID, err)
	}
	return r.CreateMany(ctx, units)
}

func scanUnit(row pgx.Row) (*models.Unit, error) {
	var u models.Unit
	err := row.Scan(
		&u.PropertyID,
		&u.UnitNumber,
		&u.UnitType,
		&u.RentAmount,
		&u.BillingReference,
		&u.Description,
		&u.Position,
		&u.IsOccupied,
		&u.TenantID,
		&u.RowVersion,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
