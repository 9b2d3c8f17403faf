package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/logger"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/notify"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
)

// DefaultMaxRetries is used when Options.MaxRetries is unset.
const DefaultMaxRetries = 5

// Options tunes how services write and what clock they read.
type Options struct {
	// Location decides which calendar month a timestamp belongs to.
	Location   *time.Location
	Now        func() time.Time
	MaxRetries int
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.MaxRetries < 1 {
		o.MaxRetries = DefaultMaxRetries
	}
	return o
}

// base holds what every service needs.
type base struct {
	store    repository.Store
	notifier notify.Notifier
	log      *logger.Logger
	opts     Options
}

func newBase(store repository.Store, notifier notify.Notifier, log *logger.Logger, opts Options) base {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return base{store: store, notifier: notifier, log: log, opts: opts.withDefaults()}
}

// inTx runs fn as one transaction, re-running it on version conflicts.
func (b *base) inTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	return repository.WithRetry(ctx, b.opts.MaxRetries, func() error {
		return b.store.WithTx(ctx, fn)
	})
}

func (b *base) now() time.Time {
	return b.opts.Now().In(b.opts.Location)
}

func (b *base) currentBillingMonth() string {
	return models.BillingMonthOf(b.now())
}

// ownerPhone looks up where SMS alerts for a property go. Lookup failures
// only cost the SMS, so they are logged and swallowed.
func (b *base) ownerPhone(ctx context.Context, propertyID *uuid.UUID) string {
	if propertyID == nil {
		return ""
	}
	p, err := b.store.Repos().Properties.GetByID(ctx, *propertyID)
	if err != nil {
		b.log.Warn("Failed to look up owner phone", map[string]interface{}{
			"property_id": propertyID.String(),
			"error":       err.Error(),
		})
		return ""
	}
	if p == nil {
		return ""
	}
	return p.OwnerPhone
}

// fail logs err at a level matching its kind and wraps storage failures.
func (b *base) fail(op string, err error, fields map[string]interface{}) error {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["operation"] = op
	if domainerr.Kind(err) != nil {
		fields["error"] = err.Error()
		b.log.Warn("Operation rejected", fields)
		return err
	}
	b.log.Error("Operation failed", err, fields)
	return fmt.Errorf("failed to %s: %w", op, err)
}
