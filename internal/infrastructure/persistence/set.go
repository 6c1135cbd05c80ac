package persistence

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/crm/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Set is the persistence set of one entity type. Writes are recorded in the
// owning Store's change tracker and applied by SaveChanges; reads go straight
// to the database and attach their results as Unchanged.
type Set[T any] struct {
	db      *gorm.DB
	tracker *ChangeTracker

	once      sync.Once
	schema    *schema.Schema
	schemaErr error
}

func newSet[T any](db *gorm.DB, tracker *ChangeTracker) *Set[T] {
	return &Set[T]{db: db, tracker: tracker}
}

// Add marks entity for insertion
func (s *Set[T]) Add(entity *T) *Entry {
	return s.tracker.Track(entity, Added)
}

// Update marks entity for update. An entity whose generated key is still
// zero has never been stored, so it is tracked as Added instead.
func (s *Set[T]) Update(entity *T) *Entry {
	if s.isTransient(entity) {
		return s.tracker.Track(entity, Added)
	}
	return s.tracker.Track(entity, Modified)
}

// Remove marks entity for deletion
func (s *Set[T]) Remove(entity *T) *Entry {
	return s.tracker.Track(entity, Deleted)
}

// Attach starts tracking an entity known to exist, with no pending change
func (s *Set[T]) Attach(entity *T) *Entry {
	return s.tracker.Track(entity, Unchanged)
}

// Schema returns the parsed GORM schema of T
func (s *Set[T]) Schema() (*schema.Schema, error) {
	s.once.Do(func() {
		stmt := &gorm.Statement{DB: s.db}
		if err := stmt.Parse(new(T)); err != nil {
			s.schemaErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		s.schema = stmt.Schema
	})
	return s.schema, s.schemaErr
}

// Find loads the entity with the given primary key. Sets of composite-keyed
// types must use Where instead.
func (s *Set[T]) Find(ctx context.Context, id any) (*T, error) {
	sch, err := s.Schema()
	if err != nil {
		return nil, err
	}
	if len(sch.PrimaryFields) != 1 {
		return nil, shared.ErrInvalidInput.Withf("%s has a composite key; use Where", sch.Table)
	}

	var entity T
	err = s.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: sch.PrimaryFields[0].DBName}, Value: id}).
		Take(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.Withf("%s %v not found", sch.Table, id)
		}
		return nil, err
	}
	s.tracker.Track(&entity, Unchanged)
	return &entity, nil
}

// Where loads every entity matching the condition
func (s *Set[T]) Where(ctx context.Context, query any, args ...any) ([]*T, error) {
	var entities []*T
	if err := s.db.WithContext(ctx).Where(query, args...).Find(&entities).Error; err != nil {
		return nil, err
	}
	s.attachAll(entities)
	return entities, nil
}

// List returns one page of entities. Ordering and equality filters are
// limited to the columns of T; anything else is ignored.
func (s *Set[T]) List(ctx context.Context, filter shared.Filter) (shared.Paginated[*T], error) {
	sch, err := s.Schema()
	if err != nil {
		return shared.Paginated[*T]{}, err
	}
	allowed := ColumnWhitelist(sch)

	query := s.db.WithContext(ctx).Model(new(T))
	for column, value := range filter.Filters {
		if allowed[column] {
			query = query.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: column}, Value: value})
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[*T]{}, err
	}

	orderBy := ValidateSortField(filter.OrderBy, allowed, defaultSortField(sch))
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(clause.OrderByColumn{
		Column: clause.Column{Table: clause.CurrentTable, Name: orderBy},
		Desc:   orderDir == "DESC",
	})
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var entities []*T
	if err := query.Find(&entities).Error; err != nil {
		return shared.Paginated[*T]{}, err
	}
	s.attachAll(entities)
	return shared.NewPaginated(entities, total, filter.Page, filter.PageSize), nil
}

// Count returns the number of stored entities
func (s *Set[T]) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(new(T)).Count(&count).Error
	return count, err
}

func (s *Set[T]) isTransient(entity *T) bool {
	sch, err := s.Schema()
	if err != nil || len(sch.PrimaryFields) != 1 {
		return false
	}
	pk := sch.PrimaryFields[0]
	if !pk.AutoIncrement {
		return false
	}
	_, zero := pk.ValueOf(context.Background(), reflect.ValueOf(entity))
	return zero
}

func (s *Set[T]) attachAll(entities []*T) {
	for _, e := range entities {
		s.tracker.Track(e, Unchanged)
	}
}
