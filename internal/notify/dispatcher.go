// Package notify delivers owner notifications produced by reconciliation and
// billing. Delivery happens after the originating transaction commits and
// never fails the caller.
package notify

import (
	"context"
	"time"

	"github.com/stwalsh4118/rentledger/api/internal/logger"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
)

// DeliveryTimeout bounds a single dispatch, storage and SMS included.
const DeliveryTimeout = 10 * time.Second

// Notifier is what services hand finished notifications to.
type Notifier interface {
	// Notify records n and alerts ownerPhone when the severity warrants it.
	// Failures are logged, never returned.
	Notify(ctx context.Context, n models.Notification, ownerPhone string)
}

// Dispatcher persists notifications and texts owners about high-severity ones.
type Dispatcher struct {
	repo repository.NotificationRepository
	sms  SMSSender
	log  *logger.Logger
}

// NewDispatcher creates a Dispatcher. A nil sms disables text alerts.
func NewDispatcher(repo repository.NotificationRepository, sms SMSSender, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		repo: repo,
		sms:  sms,
		log:  log.Component("notify"),
	}
}

// Notify runs detached from ctx's cancellation so a finished request still
// gets its notification recorded.
func (d *Dispatcher) Notify(ctx context.Context, n models.Notification, ownerPhone string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DeliveryTimeout)
	defer cancel()

	fields := map[string]interface{}{
		"owner_id":  n.OwnerID.String(),
		"tenant_id": n.TenantID.String(),
		"type":      string(n.Type),
		"severity":  string(n.Severity),
	}

	if err := d.repo.Insert(ctx, &n); err != nil {
		d.log.Error("Failed to persist notification", err, fields)
	} else {
		fields["notification_id"] = n.ID.String()
		d.log.Debug("Notification recorded", fields)
	}

	if !d.shouldText(n, ownerPhone) {
		return
	}
	if err := d.sms.SendSMS(ctx, ownerPhone, n.Message); err != nil {
		d.log.Error("Failed to send notification SMS", err, fields)
		return
	}
	d.log.Info("Notification SMS sent", fields)
}

func (d *Dispatcher) shouldText(n models.Notification, ownerPhone string) bool {
	return d.sms != nil && ownerPhone != "" && n.Severity == models.SeverityHigh
}

// Discard is a Notifier that drops everything.
type Discard struct{}

// Notify does nothing.
func (Discard) Notify(context.Context, models.Notification, string) {}
