package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

type paymentRepository struct {
	db DBTX
}

// NewPaymentRepository creates a PaymentRepository over db.
func NewPaymentRepository(db DBTX) PaymentRepository {
	return &paymentRepository{db: db}
}

// Insert appends a payment. A transaction id already on file surfaces as
// domainerr.ErrDuplicatePayment through the partial unique index.
func (r *paymentRepository) Insert(ctx context.Context, p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO payments (
			id, tenant_id, property_id, owner_id, amount, expected_amount, classification,
			overpayment, shortfall, carry_forward, resulting_balance, billing_month,
			source_kind, source_channel, transaction_id, payer, ahead_of_billing, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14, NULLIF($15, ''), $16, $17, COALESCE($18, NOW()))
		RETURNING created_at
	`,
		p.ID, p.TenantID, p.PropertyID, p.OwnerID, p.Amount, p.ExpectedAmount, p.Classification,
		p.Overpayment, p.Shortfall, p.CarryForward, p.ResultingBalance, p.BillingMonth,
		p.Source.Kind, p.Source.Channel, p.Source.TransactionID, p.Source.Payer, p.AheadOfBilling,
		nullableTime(p.CreatedAt),
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment %s: %w", p.ID, mapWriteError(err))
	}
	return nil
}

func (r *paymentRepository) ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE transaction_id = $1)`, transactionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction %q: %w", transactionID, err)
	}
	return exists, nil
}

func (r *paymentRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			id, tenant_id, property_id, owner_id, amount, expected_amount, classification,
			overpayment, shortfall, carry_forward, resulting_balance, billing_month,
			source_kind, source_channel, COALESCE(transaction_id, ''), payer, ahead_of_billing, created_at
		FROM payments
		WHERE tenant_id = $1
		ORDER BY created_at, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(
			&p.ID, &p.TenantID, &p.PropertyID, &p.OwnerID, &p.Amount, &p.ExpectedAmount, &p.Classification,
			&p.Overpayment, &p.Shortfall, &p.CarryForward, &p.ResultingBalance, &p.BillingMonth,
			&p.Source.Kind, &p.Source.Channel, &p.Source.TransactionID, &p.Source.Payer, &p.AheadOfBilling, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment rows: %w", err)
	}
	return payments, nil
}

type chargeRepository struct {
	db DBTX
}

// NewChargeRepository creates a ChargeRepository over db.
func NewChargeRepository(db DBTX) ChargeRepository {
	return &chargeRepository{db: db}
}

// Insert appends a charge. A second charge for the same tenant and month
// surfaces as domainerr.ErrAlreadyBilled.
func (r *chargeRepository) Insert(ctx context.Context, c *models.Charge) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO charges (id, tenant_id, property_id, amount, billing_month, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING created_at
	`, c.ID, c.TenantID, c.PropertyID, c.Amount, c.BillingMonth, nullableTime(c.CreatedAt)).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert charge %s: %w", c.ID, mapWriteError(err))
	}
	return nil
}

func (r *chargeRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Charge, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, tenant_id, property_id, amount, billing_month, created_at
		FROM charges
		WHERE tenant_id = $1
		ORDER BY billing_month
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list charges for tenant %s: %w", tenantID, err)
	}

	charges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Charge, error) {
		var c models.Charge
		err := row.Scan(&c.ID, &c.TenantID, &c.PropertyID, &c.Amount, &c.BillingMonth, &c.CreatedAt)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan charge rows: %w", err)
	}
	return charges, nil
}
