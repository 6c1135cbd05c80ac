package persistence

import (
	"fmt"
	"reflect"
	"time"

	"github.com/crm/backend/internal/domain/crm"
	"github.com/crm/backend/internal/domain/shared"
	"gorm.io/gorm"
)

const (
	// timestampsAppliedKey marks statements whose entities the Store has
	// already stamped, so the GORM callbacks leave them alone.
	timestampsAppliedKey = "crm:timestamps_applied"

	beforeCreateCallback = "crm:timestamps:before_create"
	beforeUpdateCallback = "crm:timestamps:before_update"
)

var customerType = reflect.TypeOf(crm.Customer{})

// TimestampMaintainer stamps Customer.CreatedDate and Customer.ModifiedDate on
// pending inserts and updates. It only mutates in-memory entities, never
// reads from storage and holds no state besides its clock, so one instance
// can serve concurrent saves of different entities.
type TimestampMaintainer struct {
	clock shared.Clock
}

// NewTimestampMaintainer creates a maintainer reading time from clock. A nil
// clock means the system clock.
func NewTimestampMaintainer(clock shared.Clock) *TimestampMaintainer {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &TimestampMaintainer{clock: clock}
}

// Stamp applies timestamps to every Added or Modified Customer entry and
// returns how many entities it stamped. The clock is read once, so all
// entities stamped by one call share the same instant. Other entries are
// not touched.
//
// A nil entry or nil entity is a programming error and panics.
func (m *TimestampMaintainer) Stamp(entries []*Entry) int {
	now := m.clock.Now().UTC()
	stamped := 0
	for _, e := range entries {
		if e == nil || e.Entity == nil {
			panic("persistence: nil entity in pending changes")
		}
		if e.State != Added && e.State != Modified {
			continue
		}
		c, ok := e.Entity.(*crm.Customer)
		if !ok {
			continue
		}
		if c == nil {
			panic("persistence: nil *crm.Customer in pending changes")
		}
		stampCustomer(c, e.State == Added, now)
		stamped++
	}
	return stamped
}

// Now returns the maintainer's current UTC time
func (m *TimestampMaintainer) Now() time.Time {
	return m.clock.Now().UTC()
}

func stampCustomer(c *crm.Customer, inserting bool, now time.Time) {
	if inserting && c.CreatedDate == nil {
		created := now
		c.CreatedDate = &created
	}
	c.ModifiedDate = now
}

// RegisterCallbacks installs the same stamping on GORM's create and update
// chains, for code that writes customers through *gorm.DB directly instead
// of going through a Store.
func (m *TimestampMaintainer) RegisterCallbacks(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").
		Register(beforeCreateCallback, m.beforeCreate); err != nil {
		return fmt.Errorf("register %s: %w", beforeCreateCallback, err)
	}
	if err := db.Callback().Update().Before("gorm:update").
		Register(beforeUpdateCallback, m.beforeUpdate); err != nil {
		return fmt.Errorf("register %s: %w", beforeUpdateCallback, err)
	}
	return nil
}

func (m *TimestampMaintainer) skip(db *gorm.DB) bool {
	if db.Error != nil || db.Statement.Schema == nil || db.Statement.Schema.ModelType != customerType {
		return true
	}
	applied, ok := db.Get(timestampsAppliedKey)
	return ok && applied == true
}

func (m *TimestampMaintainer) beforeCreate(db *gorm.DB) {
	if m.skip(db) {
		return
	}
	now := m.Now()
	forEachCustomer(db.Statement.ReflectValue, func(c *crm.Customer) {
		stampCustomer(c, true, now)
	})
}

func (m *TimestampMaintainer) beforeUpdate(db *gorm.DB) {
	if m.skip(db) {
		return
	}
	now := m.Now()
	// SetColumn covers both struct and map update values.
	db.Statement.SetColumn("ModifiedDate", now, true)
}

func forEachCustomer(rv reflect.Value, fn func(*crm.Customer)) {
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			forEachCustomer(rv.Index(i), fn)
		}
	case reflect.Struct:
		if rv.CanAddr() {
			if c, ok := rv.Addr().Interface().(*crm.Customer); ok {
				fn(c)
			}
		}
	}
}
