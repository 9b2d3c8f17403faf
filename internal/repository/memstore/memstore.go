// Package memstore is an in-process repository.Store. Transactions are
// serialized and applied copy-on-commit, so a failed unit of work leaves
// nothing behind. It backs STORAGE_DRIVER=memory and the service tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
)

type unitKey struct {
	propertyID uuid.UUID
	unitNumber string
}

type state struct {
	properties    map[uuid.UUID]*models.Property
	units         map[unitKey]*models.Unit
	tenants       map[uuid.UUID]*models.Tenant
	payments      []models.Payment
	charges       []models.Charge
	notifications []models.Notification
}

func newState() *state {
	return &state{
		properties: make(map[uuid.UUID]*models.Property),
		units:      make(map[unitKey]*models.Unit),
		tenants:    make(map[uuid.UUID]*models.Tenant),
	}
}

func (s *state) clone() *state {
	c := &state{
		properties:    make(map[uuid.UUID]*models.Property, len(s.properties)),
		units:         make(map[unitKey]*models.Unit, len(s.units)),
		tenants:       make(map[uuid.UUID]*models.Tenant, len(s.tenants)),
		payments:      append([]models.Payment(nil), s.payments...),
		charges:       append([]models.Charge(nil), s.charges...),
		notifications: append([]models.Notification(nil), s.notifications...),
	}
	for id, p := range s.properties {
		c.properties[id] = cloneProperty(p)
	}
	for k, u := range s.units {
		c.units[k] = cloneUnit(u)
	}
	for id, t := range s.tenants {
		c.tenants[id] = t.Clone()
	}
	return c
}

// Store is the in-memory repository.Store.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// Repos returns repositories that lock the store per call.
func (s *Store) Repos() repository.Repositories {
	return s.repos(&view{store: s})
}

// WithTx runs fn against a private copy of the data and publishes it only when
// fn returns nil. Transactions run one at a time.
func (s *Store) WithTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(s.repos(&view{store: s, st: working})); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) repos(v *view) repository.Repositories {
	return repository.Repositories{
		Properties:    &propertyRepo{v},
		Units:         &unitRepo{v},
		Tenants:       &tenantRepo{v},
		Payments:      &paymentRepo{v},
		Charges:       &chargeRepo{v},
		Notifications: &notificationRepo{v},
	}
}

// view routes repository calls either to a transaction's working copy or,
// under the store lock, to the committed state.
type view struct {
	store *Store
	st    *state
}

func (v *view) do(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}

func (v *view) now() time.Time {
	return v.store.now().UTC()
}

func cloneProperty(p *models.Property) *models.Property {
	c := *p
	c.UnitTypes = append([]models.UnitTypeDeclaration(nil), p.UnitTypes...)
	return &c
}

func cloneUnit(u *models.Unit) *models.Unit {
	c := *u
	if u.TenantID != nil {
		id := *u.TenantID
		c.TenantID = &id
	}
	return &c
}
