package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/crm"
	"github.com/crm/backend/internal/domain/identity"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PersistenceError wraps a failure of the database commit. The underlying
// driver or GORM error is kept in the chain for errors.Is and errors.As.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// SaveResult is delivered by SaveChangesAsync
type SaveResult struct {
	Affected int64
	Err      error
}

// SaveRecorder observes every unit of work that reached the commit step
type SaveRecorder interface {
	RecordSave(ctx context.Context, async bool, affected int64, duration time.Duration, err error)
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock sets the clock used for Customer timestamps
func WithClock(clock shared.Clock) StoreOption {
	return func(s *Store) {
		s.timestamps = NewTimestampMaintainer(clock)
	}
}

// WithLogger sets the logger used for commit diagnostics
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// WithSaveRecorder reports each commit to r
func WithSaveRecorder(r SaveRecorder) StoreOption {
	return func(s *Store) {
		s.recorder = r
	}
}

// Store is the unit of work over the CRM and identity sets. Changes recorded
// through its sets are applied together by SaveChanges in one transaction.
// A Store is meant for one caller at a time; use a Store per request.
type Store struct {
	db         *gorm.DB
	tracker    *ChangeTracker
	timestamps *TimestampMaintainer
	logger     *zap.Logger
	recorder   SaveRecorder

	Customers         *Set[crm.Customer]
	Addresses         *Set[crm.Address]
	Contacts          *Set[crm.Contact]
	Opportunities     *Set[crm.Opportunity]
	Leads             *Set[crm.Lead]
	Products          *Set[crm.Product]
	ProductCategories *Set[crm.ProductCategory]
	Services          *Set[crm.Service]
	ServiceCategories *Set[crm.ServiceCategory]
	Sales             *Set[crm.Sale]
	Vendors           *Set[crm.Vendor]
	SupportCases      *Set[crm.SupportCase]
	TodoTasks         *Set[crm.TodoTask]
	Rewards           *Set[crm.Reward]

	Users      *Set[identity.User]
	Roles      *Set[identity.Role]
	UserRoles  *Set[identity.UserRole]
	UserClaims *Set[identity.UserClaim]
	RoleClaims *Set[identity.RoleClaim]
	UserLogins *Set[identity.UserLogin]
	UserTokens *Set[identity.UserToken]
}

// NewStore creates a Store over db
func NewStore(db *gorm.DB, opts ...StoreOption) *Store {
	tracker := NewChangeTracker()
	s := &Store{
		db:         db,
		tracker:    tracker,
		timestamps: NewTimestampMaintainer(shared.SystemClock{}),
		logger:     zap.NewNop(),

		Customers:         newSet[crm.Customer](db, tracker),
		Addresses:         newSet[crm.Address](db, tracker),
		Contacts:          newSet[crm.Contact](db, tracker),
		Opportunities:     newSet[crm.Opportunity](db, tracker),
		Leads:             newSet[crm.Lead](db, tracker),
		Products:          newSet[crm.Product](db, tracker),
		ProductCategories: newSet[crm.ProductCategory](db, tracker),
		Services:          newSet[crm.Service](db, tracker),
		ServiceCategories: newSet[crm.ServiceCategory](db, tracker),
		Sales:             newSet[crm.Sale](db, tracker),
		Vendors:           newSet[crm.Vendor](db, tracker),
		SupportCases:      newSet[crm.SupportCase](db, tracker),
		TodoTasks:         newSet[crm.TodoTask](db, tracker),
		Rewards:           newSet[crm.Reward](db, tracker),

		Users:      newSet[identity.User](db, tracker),
		Roles:      newSet[identity.Role](db, tracker),
		UserRoles:  newSet[identity.UserRole](db, tracker),
		UserClaims: newSet[identity.UserClaim](db, tracker),
		RoleClaims: newSet[identity.RoleClaim](db, tracker),
		UserLogins: newSet[identity.UserLogin](db, tracker),
		UserTokens: newSet[identity.UserToken](db, tracker),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChangeTracker exposes the store's tracker
func (s *Store) ChangeTracker() *ChangeTracker {
	return s.tracker
}

// SaveChanges applies every pending change and returns the number of
// affected rows. It blocks until the commit finishes.
func (s *Store) SaveChanges() (int64, error) {
	return s.SaveChangesContext(context.Background())
}

// SaveChangesContext applies every pending change. Timestamps are stamped
// first; if ctx is already done at that point nothing is sent to the
// database, and the in-memory stamps are kept.
func (s *Store) SaveChangesContext(ctx context.Context) (int64, error) {
	entries, stamped := s.prepare()
	return s.commit(ctx, entries, stamped, false)
}

// SaveChangesAsync is the non-blocking form of SaveChangesContext. Stamping
// happens before it returns; only the commit runs in the background. The
// channel receives exactly one result and is then closed.
func (s *Store) SaveChangesAsync(ctx context.Context) <-chan SaveResult {
	entries, stamped := s.prepare()
	ch := make(chan SaveResult, 1)
	go func() {
		defer close(ch)
		n, err := s.commit(ctx, entries, stamped, true)
		ch <- SaveResult{Affected: n, Err: err}
	}()
	return ch
}

// prepare snapshots the pending entries and stamps them
func (s *Store) prepare() ([]*Entry, int) {
	pending := s.tracker.Pending()
	stamped := s.timestamps.Stamp(pending)
	if stamped > 0 {
		s.logger.Debug("Stamped customer timestamps", zap.Int("count", stamped))
	}
	return pending, stamped
}

func (s *Store) commit(ctx context.Context, entries []*Entry, stamped int, async bool) (affected int64, err error) {
	if len(entries) == 0 {
		return 0, nil
	}

	ctx, span := telemetry.StartComponentSpan(ctx, "store", "save_changes",
		telemetry.WithAttribute(telemetry.SpanAttrEntries, len(entries)),
		telemetry.WithAttribute(telemetry.SpanAttrStamped, stamped),
		telemetry.WithAttribute(telemetry.SpanAttrAsync, async),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetAttributes(span, telemetry.SpanAttrAffected, affected)
		}
		span.End()
		if s.recorder != nil {
			s.recorder.RecordSave(ctx, async, affected, time.Since(start), err)
		}
	}()

	if cerr := ctx.Err(); cerr != nil {
		return 0, &PersistenceError{Op: "save_changes", Err: cerr}
	}

	err = s.db.WithContext(logger.WithOperation(ctx, "save_changes")).Transaction(func(tx *gorm.DB) error {
		base := tx.Set(timestampsAppliedKey, true).
			Omit(clause.Associations).
			Session(&gorm.Session{})
		for _, e := range entries {
			n, err := applyEntry(base, e)
			if err != nil {
				return fmt.Errorf("%s %T: %w", e.State, e.Entity, err)
			}
			affected += n
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Save changes failed",
			zap.Int("entries", len(entries)),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("code", shared.CodeOf(err)),
			zap.Error(err),
		)
		return 0, &PersistenceError{Op: "save_changes", Err: err}
	}

	s.tracker.AcceptAll(entries)
	s.logger.Debug("Saved changes",
		zap.Int("entries", len(entries)),
		zap.Int64("affected", affected),
		zap.Duration("elapsed", time.Since(start)),
	)
	return affected, nil
}

// applyEntry writes one entry. A Modified entry is an UPDATE of every column
// and never falls back to an insert: no matching row is ErrNotFound, or
// ErrConcurrencyConflict when the entity carries a token.
func applyEntry(tx *gorm.DB, e *Entry) (int64, error) {
	var result *gorm.DB
	tok, tokened := e.Entity.(ConcurrencyTokened)
	checkToken := tokened && e.OriginalToken != ""

	switch e.State {
	case Added:
		result = tx.Create(e.Entity)
	case Modified:
		q := tx.Model(e.Entity)
		if checkToken {
			q = q.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: tok.ConcurrencyTokenColumn()}, Value: e.OriginalToken})
		}
		result = q.Select("*").Updates(e.Entity)
	case Deleted:
		if checkToken {
			result = tx.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: tok.ConcurrencyTokenColumn()}, Value: e.OriginalToken}).
				Delete(e.Entity)
		} else {
			result = tx.Delete(e.Entity)
		}
	default:
		return 0, nil
	}

	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		switch {
		case checkToken:
			return 0, shared.ErrConcurrencyConflict
		case e.State == Modified:
			return 0, shared.ErrNotFound.Withf("no stored row matches the updated %T", e.Entity)
		}
	}
	return result.RowsAffected, nil
}
