package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/ledger"
	"github.com/stwalsh4118/rentledger/api/internal/logger"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/notify"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
)

// PaymentInput is a payment addressed to a known tenant.
type PaymentInput struct {
	ReceivedAt time.Time
	Amount     decimal.Decimal
	Source     models.PaymentSource
	TenantID   uuid.UUID
}

// GatewayPayment is a confirmed mobile-money payment as reported by the
// gateway. The tenant is found through the billing reference.
type GatewayPayment struct {
	ReceivedAt       time.Time
	Amount           decimal.Decimal
	TransactionID    string
	BillingReference string
	PaybillNumber    string
	Payer            string
	Channel          string
}

// PaymentResult is what a reconciled payment produced.
type PaymentResult struct {
	Tenant   *models.Tenant  `json:"tenant"`
	Payment  models.Payment  `json:"payment"`
	Analysis ledger.Analysis `json:"analysis"`
}

// ReconciliationService credits payments to tenant ledgers.
type ReconciliationService interface {
	// ReconcilePayment classifies the payment against the tenant's balance,
	// stores the updated tenant and the payment record together, then
	// notifies the owner. Moved-out tenants fail with ErrTenantMovedOut and a
	// transaction id seen before fails with ErrDuplicatePayment.
	ReconcilePayment(ctx context.Context, in PaymentInput) (*PaymentResult, error)

	// ReconcileGatewayCallback resolves the tenant from the billing reference,
	// checks the paybill number and reconciles the payment.
	ReconcileGatewayCallback(ctx context.Context, in GatewayPayment) (*PaymentResult, error)

	// ListPayments returns the tenant's payment records, oldest first.
	ListPayments(ctx context.Context, tenantID uuid.UUID) ([]models.Payment, error)
}

type reconciliationService struct {
	base
}

// NewReconciliationService creates a new instance of ReconciliationService.
func NewReconciliationService(store repository.Store, notifier notify.Notifier, log *logger.Logger, opts Options) ReconciliationService {
	return &reconciliationService{base: newBase(store, notifier, log, opts)}
}

func (s *reconciliationService) ReconcilePayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	amount := models.RoundMoney(in.Amount)
	if !amount.IsPositive() {
		return nil, domainerr.Validation("payment amount must be greater than zero")
	}
	if in.TenantID == uuid.Nil {
		return nil, domainerr.Validation("tenant id is required")
	}
	if in.Source.Kind == "" {
		in.Source.Kind = models.SourceSimulated
	}
	if in.Source.Kind == models.SourceGatewayCallback && in.Source.TransactionID == "" {
		return nil, domainerr.Validation("gateway payments require a transaction id")
	}

	receivedAt := in.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	billingMonth := models.BillingMonthOf(receivedAt.In(s.opts.Location))

	fields := map[string]interface{}{
		"tenant_id":      in.TenantID.String(),
		"amount":         amount.StringFixed(models.MoneyPlaces),
		"source":         string(in.Source.Kind),
		"transaction_id": in.Source.TransactionID,
	}

	if txID := in.Source.TransactionID; txID != "" {
		seen, err := s.store.Repos().Payments.ExistsByTransactionID(ctx, txID)
		if err != nil {
			return nil, s.fail("check transaction", err, fields)
		}
		if seen {
			return nil, s.fail("reconcile payment", domainerr.Wrapf(domainerr.ErrDuplicatePayment, "%s", txID), fields)
		}
	}

	var (
		outcome  ledger.Outcome
		analysis ledger.Analysis
	)
	err := s.inTx(ctx, func(repos repository.Repositories) error {
		tenant, err := repos.Tenants.GetByID(ctx, in.TenantID)
		if err != nil {
			return err
		}
		if tenant == nil {
			return domainerr.ErrTenantNotFound
		}
		if tenant.PaymentStatus == models.PaymentStatusMovedOut {
			return domainerr.ErrTenantMovedOut
		}

		analysis = ledger.AnalyzePayment(amount, tenant)
		outcome = ledger.ApplyPayment(tenant, analysis, ledger.PaymentMeta{
			ReceivedAt:     receivedAt,
			Source:         in.Source,
			BillingMonth:   billingMonth,
			AheadOfBilling: billingMonth > tenant.LastBilledMonth,
		})

		if err := repos.Tenants.UpdateIfVersion(ctx, outcome.Tenant, tenant.RowVersion); err != nil {
			return err
		}
		return repos.Payments.Insert(ctx, &outcome.Payment)
	})
	if err != nil {
		return nil, s.fail("reconcile payment", err, fields)
	}

	fields["classification"] = string(outcome.Payment.Classification)
	fields["balance"] = outcome.Payment.ResultingBalance.StringFixed(models.MoneyPlaces)
	fields["payment_id"] = outcome.Payment.ID.String()
	if outcome.Payment.AheadOfBilling {
		fields["billing_month"] = billingMonth
		fields["last_billed_month"] = outcome.Tenant.LastBilledMonth
		s.log.Warn("Payment received ahead of billing", fields)
	}
	s.log.Info("Payment reconciled", fields)

	s.notifier.Notify(ctx, outcome.Notification, s.ownerPhone(ctx, outcome.Tenant.PropertyID))

	return &PaymentResult{
		Tenant:   outcome.Tenant,
		Payment:  outcome.Payment,
		Analysis: analysis,
	}, nil
}

func (s *reconciliationService) ReconcileGatewayCallback(ctx context.Context, in GatewayPayment) (*PaymentResult, error) {
	txID := strings.TrimSpace(in.TransactionID)
	if txID == "" {
		return nil, domainerr.Validation("transaction id is required")
	}
	ref := strings.TrimSpace(in.BillingReference)
	if ref == "" {
		return nil, domainerr.Validation("billing reference is required")
	}

	tenantID, err := s.resolveTenant(ctx, ref, strings.TrimSpace(in.PaybillNumber))
	if err != nil {
		return nil, s.fail("resolve gateway payment", err, map[string]interface{}{
			"transaction_id":    txID,
			"billing_reference": ref,
			"paybill_number":    in.PaybillNumber,
		})
	}

	return s.ReconcilePayment(ctx, PaymentInput{
		TenantID:   tenantID,
		Amount:     in.Amount,
		ReceivedAt: in.ReceivedAt,
		Source: models.PaymentSource{
			Kind:          models.SourceGatewayCallback,
			Channel:       in.Channel,
			TransactionID: txID,
			Payer:         in.Payer,
		},
	})
}

func (s *reconciliationService) ListPayments(ctx context.Context, tenantID uuid.UUID) ([]models.Payment, error) {
	repos := s.store.Repos()

	tenant, err := repos.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return nil, domainerr.ErrTenantNotFound
	}
	payments, err := repos.Payments.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// resolveTenant maps a billing reference to the tenant occupying the unit.
// Payers type references by hand, so an upper-cased retry is attempted.
func (s *reconciliationService) resolveTenant(ctx context.Context, ref, paybill string) (uuid.UUID, error) {
	repos := s.store.Repos()

	unit, err := repos.Units.GetByBillingReference(ctx, ref)
	if err == nil && unit == nil && strings.ToUpper(ref) != ref {
		unit, err = repos.Units.GetByBillingReference(ctx, strings.ToUpper(ref))
	}
	if err != nil {
		return uuid.Nil, err
	}
	if unit == nil {
		return uuid.Nil, domainerr.Wrapf(domainerr.ErrUnitNotFound, "billing reference %q", ref)
	}

	property, err := repos.Properties.GetByID(ctx, unit.PropertyID)
	if err != nil {
		return uuid.Nil, err
	}
	if property == nil {
		return uuid.Nil, domainerr.ErrPropertyNotFound
	}
	if property.PaybillNumber != paybill {
		return uuid.Nil, domainerr.Wrapf(domainerr.ErrBillingMismatch, "got %q", paybill)
	}
	if !unit.IsOccupied || unit.TenantID == nil {
		return uuid.Nil, domainerr.Wrapf(domainerr.ErrTenantNotFound, "no tenant occupies %s", unit.BillingReference)
	}
	return *unit.TenantID, nil
}

// IsDuplicatePayment reports whether err means the payment was already
// reconciled, which gateways expect to be acknowledged rather than retried.
func IsDuplicatePayment(err error) bool {
	return errors.Is(err, domainerr.ErrDuplicatePayment)
}

