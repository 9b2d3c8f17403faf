package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/ledger"
	"github.com/stwalsh4118/rentledger/api/internal/logger"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/notify"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DefaultSweepWorkers bounds how many tenants are billed concurrently when
// no worker count is configured.
const DefaultSweepWorkers = 8

// SweepFailure records a tenant the sweep could not bill.
type SweepFailure struct {
	TenantID uuid.UUID `json:"tenantId"`
	Error    string    `json:"error"`
}

// SweepReport summarises one run of the monthly billing sweep.
type SweepReport struct {
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt"`
	TotalCharged decimal.Decimal `json:"totalCharged"`
	BillingMonth string          `json:"billingMonth"`
	Failures     []SweepFailure  `json:"failures"`
	Billed       int             `json:"billed"`
	Skipped      int             `json:"skipped"`
	Failed       int             `json:"failed"`
}

// OverdueReport summarises one overdue pass.
type OverdueReport struct {
	StartedAt    time.Time      `json:"startedAt"`
	FinishedAt   time.Time      `json:"finishedAt"`
	BillingMonth string         `json:"billingMonth"`
	Failures     []SweepFailure `json:"failures"`
	Marked       int            `json:"marked"`
	Unchanged    int            `json:"unchanged"`
	Failed       int            `json:"failed"`
}

// BillingService debits monthly rent and flags unpaid accounts.
type BillingService interface {
	// RunMonthlySweep bills every active tenant once for month. An empty
	// month means the current one. Tenants already billed for the month are
	// skipped, so re-running the sweep is safe. Per-tenant failures are
	// reported, not returned.
	RunMonthlySweep(ctx context.Context, month string) (*SweepReport, error)

	// MarkOverdue moves tenants still owing after billing to overdue.
	MarkOverdue(ctx context.Context, month string) (*OverdueReport, error)
}

type billingService struct {
	base
	workers int
}

// NewBillingService creates a new instance of BillingService.
func NewBillingService(store repository.Store, notifier notify.Notifier, log *logger.Logger, opts Options, workers int) BillingService {
	if workers < 1 {
		workers = DefaultSweepWorkers
	}
	return &billingService{
		base:    newBase(store, notifier, log.Component("billing"), opts),
		workers: workers,
	}
}

func (s *billingService) resolveMonth(month string) (string, error) {
	if month == "" {
		return s.currentBillingMonth(), nil
	}
	if _, err := models.ParseBillingMonth(month); err != nil {
		return "", domainerr.Validation("%s", err.Error())
	}
	return month, nil
}

func (s *billingService) activeTenants(ctx context.Context) ([]models.Tenant, error) {
	active := true
	return s.store.Repos().Tenants.List(ctx, repository.TenantFilter{Active: &active})
}

func (s *billingService) RunMonthlySweep(ctx context.Context, month string) (*SweepReport, error) {
	month, err := s.resolveMonth(month)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{
		BillingMonth: month,
		StartedAt:    s.now(),
		TotalCharged: decimal.Zero,
		Failures:     []SweepFailure{},
	}

	tenants, err := s.activeTenants(ctx)
	if err != nil {
		return nil, s.fail("list tenants for billing", err, map[string]interface{}{"billing_month": month})
	}

	s.log.Info("Starting monthly billing sweep", map[string]interface{}{
		"billing_month": month,
		"tenants":       len(tenants),
		"workers":       s.workers,
	})

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, t := range tenants {
		tenantID := t.ID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				s.recordFailure(&mu, &report.Failures, &report.Failed, tenantID, err)
				return nil
			}

			outcome, err := s.billOne(ctx, tenantID, month)
			if err != nil {
				s.recordFailure(&mu, &report.Failures, &report.Failed, tenantID, err)
				return nil
			}

			mu.Lock()
			if outcome.Skipped {
				report.Skipped++
			} else {
				report.Billed++
				report.TotalCharged = report.TotalCharged.Add(outcome.Charge.Amount)
			}
			mu.Unlock()

			if !outcome.Skipped {
				s.notifier.Notify(ctx, outcome.Notification, "")
			}
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = s.now()
	s.log.Info("Monthly billing sweep finished", map[string]interface{}{
		"billing_month": month,
		"billed":        report.Billed,
		"skipped":       report.Skipped,
		"failed":        report.Failed,
		"total_charged": report.TotalCharged.StringFixed(models.MoneyPlaces),
		"duration_ms":   report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	})
	return report, nil
}

// billOne debits one tenant inside its own transaction. A charge that
// already exists for the month means another run got there first.
func (s *billingService) billOne(ctx context.Context, tenantID uuid.UUID, month string) (ledger.BillingOutcome, error) {
	var outcome ledger.BillingOutcome
	err := s.inTx(ctx, func(repos repository.Repositories) error {
		tenant, err := repos.Tenants.GetByID(ctx, tenantID)
		if err != nil {
			return err
		}
		if tenant == nil {
			outcome = ledger.BillingOutcome{Skipped: true}
			return nil
		}

		outcome = ledger.BillTenant(tenant, month, s.opts.Now())
		if outcome.Skipped {
			return nil
		}
		if err := repos.Tenants.UpdateIfVersion(ctx, outcome.Tenant, tenant.RowVersion); err != nil {
			return err
		}
		return repos.Charges.Insert(ctx, &outcome.Charge)
	})
	if errors.Is(err, domainerr.ErrAlreadyBilled) {
		return ledger.BillingOutcome{Skipped: true}, nil
	}
	return outcome, err
}

func (s *billingService) MarkOverdue(ctx context.Context, month string) (*OverdueReport, error) {
	month, err := s.resolveMonth(month)
	if err != nil {
		return nil, err
	}

	report := &OverdueReport{
		BillingMonth: month,
		StartedAt:    s.now(),
		Failures:     []SweepFailure{},
	}

	tenants, err := s.activeTenants(ctx)
	if err != nil {
		return nil, s.fail("list tenants for overdue check", err, map[string]interface{}{"billing_month": month})
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, t := range tenants {
		tenantID := t.ID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				s.recordFailure(&mu, &report.Failures, &report.Failed, tenantID, err)
				return nil
			}

			var (
				updated *models.Tenant
				note    models.Notification
				marked  bool
			)
			err := s.inTx(ctx, func(repos repository.Repositories) error {
				tenant, err := repos.Tenants.GetByID(ctx, tenantID)
				if err != nil || tenant == nil {
					marked = false
					return err
				}
				updated, note, marked = ledger.MarkOverdue(tenant, month, s.opts.Now())
				if !marked {
					return nil
				}
				return repos.Tenants.UpdateIfVersion(ctx, updated, tenant.RowVersion)
			})
			if err != nil {
				s.recordFailure(&mu, &report.Failures, &report.Failed, tenantID, err)
				return nil
			}

			mu.Lock()
			if marked {
				report.Marked++
			} else {
				report.Unchanged++
			}
			mu.Unlock()

			if marked {
				s.notifier.Notify(ctx, note, s.ownerPhone(ctx, updated.PropertyID))
			}
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = s.now()
	s.log.Info("Overdue check finished", map[string]interface{}{
		"billing_month": month,
		"marked":        report.Marked,
		"unchanged":     report.Unchanged,
		"failed":        report.Failed,
	})
	return report, nil
}

func (s *billingService) recordFailure(mu *sync.Mutex, failures *[]SweepFailure, failed *int, tenantID uuid.UUID, err error) {
	s.log.Error("Failed to process tenant", err, map[string]interface{}{
		"tenant_id": tenantID.String(),
	})

	mu.Lock()
	defer mu.Unlock()
	*failed++
	*failures = append(*failures, SweepFailure{TenantID: tenantID, Error: err.Error()})
}
