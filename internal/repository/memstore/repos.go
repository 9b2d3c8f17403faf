package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
)

type propertyRepo struct{ v *view }

func (r *propertyRepo) Create(_ context.Context, p *models.Property) error {
	return r.v.do(func(st *state) error {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if _, exists := st.properties[p.ID]; exists {
			return domainerr.Wrapf(domainerr.ErrConflict, "property %s already exists", p.ID)
		}
		if p.UnitTypes == nil {
			p.UnitTypes = []models.UnitTypeDeclaration{}
		}
		now := r.v.now()
		p.RowVersion = 1
		p.CreatedAt = now
		p.UpdatedAt = now
		st.properties[p.ID] = cloneProperty(p)
		return nil
	})
}

func (r *propertyRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Property, error) {
	var out *models.Property
	err := r.v.do(func(st *state) error {
		if p, ok := st.properties[id]; ok {
			out = cloneProperty(p)
		}
		return nil
	})
	return out, err
}

func (r *propertyRepo) UpdateIfVersion(_ context.Context, p *models.Property, expected int64) error {
	return r.v.do(func(st *state) error {
		cur, ok := st.properties[p.ID]
		if !ok || cur.RowVersion != expected {
			return repository.ErrVersionConflict
		}
		if err := checkOccupancy(p.Aggregates(), p.TotalUnits); err != nil {
			return err
		}
		next := cloneProperty(p)
		next.OwnerID = cur.OwnerID
		next.BillingPrefix = cur.BillingPrefix
		next.CreatedAt = cur.CreatedAt
		next.UpdatedAt = r.v.now()
		next.RowVersion = expected + 1
		st.properties[p.ID] = next
		p.RowVersion = next.RowVersion
		p.UpdatedAt = next.UpdatedAt
		return nil
	})
}

func (r *propertyRepo) AdjustOccupancy(_ context.Context, id uuid.UUID, occupied int, revenue decimal.Decimal) error {
	return r.v.do(func(st *state) error {
		p, ok := st.properties[id]
		if !ok {
			return fmt.Errorf("failed to adjust occupancy for property %s: not found", id)
		}
		agg := p.Aggregates()
		agg.OccupiedUnits += occupied
		agg.AvailableUnits -= occupied
		agg.MonthlyRevenue = agg.MonthlyRevenue.Add(revenue)
		if err := checkOccupancy(agg, p.TotalUnits); err != nil {
			return err
		}
		p.SetAggregates(agg)
		p.RowVersion++
		p.UpdatedAt = r.v.now()
		return nil
	})
}

func (r *propertyRepo) Delete(_ context.Context, id uuid.UUID, expected int64) error {
	return r.v.do(func(st *state) error {
		cur, ok := st.properties[id]
		if !ok || cur.RowVersion != expected {
			return repository.ErrVersionConflict
		}
		delete(st.properties, id)
		for k := range st.units {
			if k.propertyID == id {
				delete(st.units, k)
			}
		}
		for _, t := range st.tenants {
			if t.PropertyID != nil && *t.PropertyID == id {
				t.PropertyID = nil
			}
		}
		return nil
	})
}

// checkOccupancy mirrors the properties_occupancy_check constraint.
func checkOccupancy(agg models.Aggregates, total int) error {
	if agg.OccupiedUnits < 0 || agg.AvailableUnits < 0 || agg.OccupiedUnits+agg.AvailableUnits != total {
		return fmt.Errorf("occupancy constraint violated: occupied=%d available=%d total=%d",
			agg.OccupiedUnits, agg.AvailableUnits, total)
	}
	return nil
}

type unitRepo struct{ v *view }

func (r *unitRepo) CreateMany(_ context.Context, units []models.Unit) error {
	return r.v.do(func(st *state) error {
		return insertUnits(st, units, r.v.now())
	})
}

func insertUnits(st *state, units []models.Unit, now time.Time) error {
	for i := range units {
		u := &units[i]
		key := unitKey{u.PropertyID, u.UnitNumber}
		if _, exists := st.units[key]; exists {
			return domainerr.Wrapf(domainerr.ErrConflict, "unit %s already exists", u.UnitNumber)
		}
		if ref := findByReference(st, u.BillingReference); ref != nil {
			return domainerr.Wrapf(domainerr.ErrDuplicateBillingRef, "%s", u.BillingReference)
		}
		if u.RowVersion == 0 {
			u.RowVersion = 1
		}
		u.UpdatedAt = now
		st.units[key] = cloneUnit(u)
	}
	return nil
}

func (r *unitRepo) ListByProperty(_ context.Context, propertyID uuid.UUID) ([]models.Unit, error) {
	units := []models.Unit{}
	err := r.v.do(func(st *state) error {
		for k, u := range st.units {
			if k.propertyID == propertyID {
				units = append(units, *cloneUnit(u))
			}
		}
		return nil
	})
	sort.Slice(units, func(i, j int) bool { return units[i].Position < units[j].Position })
	return units, err
}

func (r *unitRepo) Get(_ context.Context, propertyID uuid.UUID, unitNumber string) (*models.Unit, error) {
	var out *models.Unit
	err := r.v.do(func(st *state) error {
		if u, ok := st.units[unitKey{propertyID, unitNumber}]; ok {
			out = cloneUnit(u)
		}
		return nil
	})
	return out, err
}

func (r *unitRepo) GetByBillingReference(_ context.Context, ref string) (*models.Unit, error) {
	var out *models.Unit
	err := r.v.do(func(st *state) error {
		if u := findByReference(st, ref); u != nil {
			out = cloneUnit(u)
		}
		return nil
	})
	return out, err
}

func findByReference(st *state, ref string) *models.Unit {
	for _, u := range st.units {
		if u.BillingReference == ref {
			return u
		}
	}
	return nil
}

func (r *unitRepo) FindBillingReferences(_ context.Context, refs []string, excludeProperty uuid.UUID) ([]string, error) {
	want := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		want[ref] = struct{}{}
	}

	taken := []string{}
	err := r.v.do(func(st *state) error {
		for k, u := range st.units {
			if k.propertyID == excludeProperty {
				continue
			}
			if _, ok := want[u.BillingReference]; ok {
				taken = append(taken, u.BillingReference)
			}
		}
		return nil
	})
	sort.Strings(taken)
	return taken, err
}

func (r *unitRepo) UpdateIfVersion(_ context.Context, u *models.Unit, expected int64) error {
	return r.v.do(func(st *state) error {
		key := unitKey{u.PropertyID, u.UnitNumber}
		cur, ok := st.units[key]
		if !ok || cur.RowVersion != expected {
			return repository.ErrVersionConflict
		}
		if u.IsOccupied != (u.TenantID != nil) {
			return fmt.Errorf("unit %s: occupancy flag disagrees with tenant binding", u.UnitNumber)
		}
		next := cloneUnit(cur)
		next.IsOccupied = u.IsOccupied
		next.TenantID = cloneUnit(u).TenantID
		next.RentAmount = u.RentAmount
		next.UnitType = u.UnitType
		next.Description = u.Description
		next.RowVersion = expected + 1
		next.UpdatedAt = r.v.now()
		st.units[key] = next
		u.RowVersion = next.RowVersion
		u.UpdatedAt = next.UpdatedAt
		return nil
	})
}

func (r *unitRepo) ReplaceForProperty(_ context.Context, propertyID uuid.UUID, units []models.Unit) error {
	return r.v.do(func(st *state) error {
		removed := make(map[unitKey]*models.Unit)
		for k, u := range st.units {
			if k.propertyID == propertyID {
				removed[k] = u
				delete(st.units, k)
			}
		}
		if err := insertUnits(st, units, r.v.now()); err != nil {
			// restore so a non-transactional caller is not left half-written
			for k := range st.units {
				if k.propertyID == propertyID {
					delete(st.units, k)
				}
			}
			for k, u := range removed {
				st.units[k] = u
			}
			return err
		}
		return nil
	})
}

type tenantRepo struct{ v *view }

func (r *tenantRepo) Create(_ context.Context, t *models.Tenant) error {
	return r.v.do(func(st *state) error {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		if _, exists := st.tenants[t.ID]; exists {
			return domainerr.Wrapf(domainerr.ErrConflict, "tenant %s already exists", t.ID)
		}
		if t.PaymentHistory == nil {
			t.PaymentHistory = []models.PaymentHistoryEntry{}
		}
		now := r.v.now()
		t.RowVersion = 1
		t.CreatedAt = now
		t.UpdatedAt = now
		st.tenants[t.ID] = t.Clone()
		return nil
	})
}

func (r *tenantRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	var out *models.Tenant
	err := r.v.do(func(st *state) error {
		if t, ok := st.tenants[id]; ok {
			out = t.Clone()
		}
		return nil
	})
	return out, err
}

func (r *tenantRepo) UpdateIfVersion(_ context.Context, t *models.Tenant, expected int64) error {
	return r.v.do(func(st *state) error {
		cur, ok := st.tenants[t.ID]
		if !ok || cur.RowVersion != expected {
			return repository.ErrVersionConflict
		}
		next := t.Clone()
		if next.PaymentHistory == nil {
			next.PaymentHistory = []models.PaymentHistoryEntry{}
		}
		next.OwnerID = cur.OwnerID
		next.MoveInDate = cur.MoveInDate
		next.CreatedAt = cur.CreatedAt
		next.UpdatedAt = r.v.now()
		next.RowVersion = expected + 1
		st.tenants[t.ID] = next
		t.RowVersion = next.RowVersion
		t.UpdatedAt = next.UpdatedAt
		return nil
	})
}

func (r *tenantRepo) List(_ context.Context, filter repository.TenantFilter) ([]models.Tenant, error) {
	tenants := []models.Tenant{}
	err := r.v.do(func(st *state) error {
		for _, t := range st.tenants {
			if filter.OwnerID != nil && t.OwnerID != *filter.OwnerID {
				continue
			}
			if filter.PropertyID != nil && (t.PropertyID == nil || *t.PropertyID != *filter.PropertyID) {
				continue
			}
			if filter.Active != nil && t.IsActive != *filter.Active {
				continue
			}
			tenants = append(tenants, *t.Clone())
		}
		return nil
	})
	sort.Slice(tenants, func(i, j int) bool {
		if !tenants[i].CreatedAt.Equal(tenants[j].CreatedAt) {
			return tenants[i].CreatedAt.Before(tenants[j].CreatedAt)
		}
		return tenants[i].ID.String() < tenants[j].ID.String()
	})
	return tenants, err
}

type paymentRepo struct{ v *view }

func (r *paymentRepo) Insert(_ context.Context, p *models.Payment) error {
	return r.v.do(func(st *state) error {
		if p.Source.TransactionID != "" {
			for _, existing := range st.payments {
				if existing.Source.TransactionID == p.Source.TransactionID {
					return domainerr.ErrDuplicatePayment
				}
			}
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = r.v.now()
		}
		st.payments = append(st.payments, *p)
		return nil
	})
}

func (r *paymentRepo) ExistsByTransactionID(_ context.Context, transactionID string) (bool, error) {
	var exists bool
	err := r.v.do(func(st *state) error {
		for _, p := range st.payments {
			if p.Source.TransactionID == transactionID {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r *paymentRepo) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := r.v.do(func(st *state) error {
		for _, p := range st.payments {
			if p.TenantID == tenantID {
				payments = append(payments, p)
			}
		}
		return nil
	})
	return payments, err
}

type chargeRepo struct{ v *view }

func (r *chargeRepo) Insert(_ context.Context, c *models.Charge) error {
	return r.v.do(func(st *state) error {
		for _, existing := range st.charges {
			if existing.TenantID == c.TenantID && existing.BillingMonth == c.BillingMonth {
				return domainerr.ErrAlreadyBilled
			}
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = r.v.now()
		}
		st.charges = append(st.charges, *c)
		return nil
	})
}

func (r *chargeRepo) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]models.Charge, error) {
	charges := []models.Charge{}
	err := r.v.do(func(st *state) error {
		for _, c := range st.charges {
			if c.TenantID == tenantID {
				charges = append(charges, c)
			}
		}
		return nil
	})
	sort.SliceStable(charges, func(i, j int) bool { return charges[i].BillingMonth < charges[j].BillingMonth })
	return charges, err
}

type notificationRepo struct{ v *view }

func (r *notificationRepo) Insert(_ context.Context, n *models.Notification) error {
	return r.v.do(func(st *state) error {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = r.v.now()
		}
		st.notifications = append(st.notifications, *n)
		return nil
	})
}

func (r *notificationRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = repository.DefaultNotificationLimit
	}

	out := []models.Notification{}
	err := r.v.do(func(st *state) error {
		// newest first
		for i := len(st.notifications) - 1; i >= 0 && len(out) < limit; i-- {
			n := st.notifications[i]
			if n.OwnerID != ownerID || (unreadOnly && n.Read) {
				continue
			}
			out = append(out, n)
		}
		return nil
	})
	return out, err
}
