package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

const selectTenant = `
	SELECT
		id,
		owner_id,
		name,
		phone,
		email,
		property_id,
		unit_number,
		unit_type,
		rent_amount,
		billing_reference,
		is_active,
		payment_status,
		account_balance,
		last_payment_date,
		last_billed_month,
		payment_history,
		move_in_date,
		move_out_date,
		row_version,
		created_at,
		updated_at
	FROM tenants
`

type tenantRepository struct {
	db DBTX
}

// NewTenantRepository creates a TenantRepository over db.
func NewTenantRepository(db DBTX) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) Create(ctx context.Context, t *models.Tenant) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.PaymentHistory == nil {
		t.PaymentHistory = []models.PaymentHistoryEntry{}
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO tenants (
			id, owner_id, name, phone, email, property_id, unit_number, unit_type,
			rent_amount, billing_reference, is_active, payment_status, account_balance,
			last_payment_date, last_billed_month, payment_history, move_in_date,
			move_out_date, row_version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18, 1, NOW(), NOW())
		RETURNING row_version, created_at, updated_at
	`,
		t.ID, t.OwnerID, t.Name, t.Phone, t.Email, t.PropertyID, t.UnitNumber, t.UnitType,
		t.RentAmount, t.BillingReference, t.IsActive, t.PaymentStatus, t.AccountBalance,
		t.LastPaymentDate, t.LastBilledMonth, t.PaymentHistory, t.MoveInDate,
		t.MoveOutDate,
	).Scan(&t.RowVersion, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tenant %s: %w", t.ID, mapWriteError(err))
	}
	return nil
}

func (r *tenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	t, err := scanTenant(r.db.QueryRow(ctx, selectTenant+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query tenant %s: %w", id, err)
	}
	return t, nil
}

// UpdateIfVersion rewrites every mutable tenant column guarded by the row
// version. Ledger fields, unit binding and status always change together.
func (r *tenantRepository) UpdateIfVersion(ctx context.Context, t *models.Tenant, expected int64) error {
	history := t.PaymentHistory
	if history == nil {
		history = []models.PaymentHistoryEntry{}
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE tenants
		SET name = $1,
			phone = $2,
			email = $3,
			property_id = $4,
			unit_number = $5,
			unit_type = $6,
			rent_amount = $7,
			billing_reference = $8,
			is_active = $9,
			payment_status = $10,
			account_balance = $11,
			last_payment_date = $12,
			last_billed_month = $13,
			payment_history = $14,
			move_out_date = $15,
			row_version = row_version + 1,
			updated_at = NOW()
		WHERE id = $16 AND row_version = $17
	`,
		t.Name, t.Phone, t.Email, t.PropertyID, t.UnitNumber, t.UnitType,
		t.RentAmount, t.BillingReference, t.IsActive, t.PaymentStatus, t.AccountBalance,
		t.LastPaymentDate, t.LastBilledMonth, history, t.MoveOutDate,
		t.ID, expected,
	)
	if err := versionChecked(tag, err); err != nil {
		return err
	}
	t.RowVersion = expected + 1
	return nil
}

func (r *tenantRepository) List(ctx context.Context, filter TenantFilter) ([]models.Tenant, error) {
	var (
		conds []string
		args  []any
	)
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.PropertyID != nil {
		args = append(args, *filter.PropertyID)
		conds = append(conds, fmt.Sprintf("property_id = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}

	query := selectTenant
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	tenants := []models.Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant row: %w", err)
		}
		tenants = append(tenants, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenant rows: %w", err)
	}
	return tenants, nil
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Name,
		&t.Phone,
		&t.Email,
		&t.PropertyID,
		&t.UnitNumber,
		&t.UnitType,
		&t.RentAmount,
		&t.BillingReference,
		&t.IsActive,
		&t.PaymentStatus,
		&t.AccountBalance,
		&t.LastPaymentDate,
		&t.LastBilledMonth,
		&t.PaymentHistory,
		&t.MoveInDate,
		&t.MoveOutDate,
		&t.RowVersion,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
