package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

const selectProperty = `
	SELECT
		id,
		owner_id,
		name,
		address,
		owner_phone,
		paybill_number,
		billing_prefix,
		unit_types,
		total_units,
		occupied_units,
		available_units,
		monthly_revenue,
		row_version,
		created_at,
		updated_at
	FROM properties
`

// propertyRepository is the Postgres PropertyRepository.
type propertyRepository struct {
	db DBTX
}

// NewPropertyRepository creates a PropertyRepository over db.
func NewPropertyRepository(db DBTX) PropertyRepository {
	return &propertyRepository{db: db}
}

func (r *propertyRepository) Create(ctx context.Context, p *models.Property) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.UnitTypes == nil {
		p.UnitTypes = []models.UnitTypeDeclaration{}
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO properties (
			id, owner_id, name, address, owner_phone, paybill_number, billing_prefix,
			unit_types, total_units, occupied_units, available_units, monthly_revenue,
			row_version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, 1, NOW(), NOW())
		RETURNING row_version, created_at, updated_at
	`,
		p.ID, p.OwnerID, p.Name, p.Address, p.OwnerPhone, p.PaybillNumber, p.BillingPrefix,
		p.UnitTypes, p.TotalUnits, p.OccupiedUnits, p.AvailableUnits, p.MonthlyRevenue,
	).Scan(&p.RowVersion, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert property %s: %w", p.ID, mapWriteError(err))
	}
	return nil
}

func (r *propertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	p, err := scanProperty(r.db.QueryRow(ctx, selectProperty+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query property %s: %w", id, err)
	}
	return p, nil
}

func (r *propertyRepository) UpdateIfVersion(ctx context.Context, p *models.Property, expected int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE properties
		SET name = $1,
			address = $2,
			owner_phone = $3,
			paybill_number = $4,
			unit_types = $5,
			total_units = $6,
			occupied_units = $7,
			available_units = $8,
			monthly_revenue = $9,
			row_version = row_version + 1,
			updated_at = NOW()
		WHERE id = $10 AND row_version = $11
	`,
		p.Name, p.Address, p.OwnerPhone, p.PaybillNumber, p.UnitTypes,
		p.TotalUnits, p.OccupiedUnits, p.AvailableUnits, p.MonthlyRevenue,
		p.ID, expected,
	)
	if err := versionChecked(tag, err); err != nil {
		return err
	}
	p.RowVersion = expected + 1
	return nil
}

func (r *propertyRepository) AdjustOccupancy(ctx context.Context, id uuid.UUID, occupied int, revenue decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE properties
		SET occupied_units = occupied_units + $1,
			available_units = available_units - $1,
			monthly_revenue = monthly_revenue + $2,
			row_version = row_version + 1,
			updated_at = NOW()
		WHERE id = $3
	`, occupied, revenue, id)
	if err != nil {
		return fmt.Errorf("failed to adjust occupancy for property %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to adjust occupancy for property %s: %w", id, pgx.ErrNoRows)
	}
	return nil
}

func (r *propertyRepository) Delete(ctx context.Context, id uuid.UUID, expected int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM properties WHERE id = $1 AND row_version = $2`, id, expected)
	if err != nil {
		return fmt.Errorf("failed to delete property %s: %w", id, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrVersionConflict
	}
	return nil
}

func scanProperty(row pgx.Row) (*models.Property, error) {
	var p models.Property
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Address,
		&p.OwnerPhone,
		&p.PaybillNumber,
		&p.BillingPrefix,
		&p.UnitTypes,
		&p.TotalUnits,
		&p.OccupiedUnits,
		&p.AvailableUnits,
		&p.MonthlyRevenue,
		&p.RowVersion,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
