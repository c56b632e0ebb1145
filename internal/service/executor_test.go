package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arnaudmaillet/core-platform-sub000/internal/domain"
	outboxdomain "github.com/arnaudmaillet/core-platform-sub000/pkg/outbox/domain"
)

// fakeTx collects staged writes and applies them on Commit, mirroring the
// all-or-nothing behavior of a real transaction.
type fakeTx struct {
	pgx.Tx
	applies []func()
}

func (t *fakeTx) Commit(ctx context.Context) error {
	for _, apply := range t.applies {
		apply()
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeDB struct{}

func (fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{}, nil
}

type fakeProfileStore struct {
	mu    sync.Mutex
	rows  map[string]*domain.Profile
	loads int

	// afterLoad runs under the lock after each load, simulating writers
	// that slip in between the executor's read and its conditional write.
	afterLoad func(rows map[string]*domain.Profile)
}

func newFakeProfileStore(profiles ...*domain.Profile) *fakeProfileStore {
	rows := make(map[string]*domain.Profile, len(profiles))
	for _, p := range profiles {
		cp := *p
		rows[p.AccountID] = &cp
	}
	return &fakeProfileStore{rows: rows}
}

func (s *fakeProfileStore) GetByID(ctx context.Context, accountID, region string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: profile %s", domain.ErrNotFound, accountID)
	}
	if row.Region != region {
		return nil, domain.NewForbiddenError("profile belongs to another region")
	}

	s.loads++
	cp := *row

	if s.afterLoad != nil {
		s.afterLoad(s.rows)
	}

	return &cp, nil
}

func (s *fakeProfileStore) Insert(ctx context.Context, tx pgx.Tx, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[profile.AccountID]; ok {
		return domain.NewAlreadyExistsError("handle")
	}

	cp := *profile
	tx.(*fakeTx).applies = append(tx.(*fakeTx).applies, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rows[cp.AccountID] = &cp
	})

	return nil
}

func (s *fakeProfileStore) Update(ctx context.Context, tx pgx.Tx, profile *domain.Profile, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[profile.AccountID]
	if !ok {
		return fmt.Errorf("%w: profile %s", domain.ErrNotFound, profile.AccountID)
	}
	if row.Version != expectedVersion {
		return fmt.Errorf("%w: profile %s changed concurrently", domain.ErrConcurrencyConflict, profile.AccountID)
	}

	cp := *profile
	tx.(*fakeTx).applies = append(tx.(*fakeTx).applies, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rows[cp.AccountID] = &cp
	})

	return nil
}

func (s *fakeProfileStore) stored(accountID string) *domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[accountID]
}

type fakeOutbox struct {
	mu       sync.Mutex
	rows     []*outboxdomain.OutboxEvent
	failWith error
}

func (o *fakeOutbox) SaveOutboxEvents(ctx context.Context, tx pgx.Tx, events []*outboxdomain.OutboxEvent) error {
	if o.failWith != nil {
		return o.failWith
	}

	staged := events
	tx.(*fakeTx).applies = append(tx.(*fakeTx).applies, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.rows = append(o.rows, staged...)
	})

	return nil
}

func (o *fakeOutbox) all() []*outboxdomain.OutboxEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*outboxdomain.OutboxEvent(nil), o.rows...)
}

func newTestExecutor(store *fakeProfileStore, outbox *fakeOutbox, maxRetries int) *Executor[*domain.Profile] {
	return NewExecutor[*domain.Profile](
		fakeDB{},
		store,
		outbox,
		"identity.events",
		maxRetries,
		time.Millisecond,
		zap.NewNop(),
	)
}

func TestExecuteCommitsRowAndEvents(t *testing.T) {
	store := newFakeProfileStore(domain.NewProfile("acc-1", "eu", "Alice", "alice"))
	outbox := &fakeOutbox{}
	executor := newTestExecutor(store, outbox, 3)

	profile, err := executor.Execute(context.Background(), "acc-1", "eu", func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateBio("eu", "hello")
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), profile.Version)
	assert.Equal(t, "hello", store.stored("acc-1").Bio)
	assert.Equal(t, int64(2), store.stored("acc-1").Version)

	rows := outbox.all()
	require.Len(t, rows, 1)
	assert.Equal(t, "BioUpdated", rows[0].EventType)
	assert.Equal(t, "acc-1", rows[0].AggregateID)
	assert.Equal(t, "eu", rows[0].Region)
	assert.Contains(t, string(rows[0].Payload), "hello")
}

func TestExecuteNoOpSkipsWriteEntirely(t *testing.T) {
	profile := domain.NewProfile("acc-1", "eu", "Alice", "alice")
	profile.Bio = "hello"
	store := newFakeProfileStore(profile)
	outbox := &fakeOutbox{}
	executor := newTestExecutor(store, outbox, 3)

	result, err := executor.Execute(context.Background(), "acc-1", "eu", func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateBio("eu", "hello")
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Version)
	assert.Equal(t, int64(1), store.stored("acc-1").Version)
	assert.Empty(t, outbox.all())
	assert.Equal(t, 1, store.loads)
}

func TestExecuteRetriesConflictWithoutLosingUpdates(t *testing.T) {
	store := newFakeProfileStore(domain.NewProfile("acc-1", "eu", "Alice", "alice"))
	outbox := &fakeOutbox{}
	executor := newTestExecutor(store, outbox, 3)

	// A concurrent writer renames the profile between our load and our
	// conditional write, exactly once.
	interfered := false
	store.afterLoad = func(rows map[string]*domain.Profile) {
		if interfered {
			return
		}
		interfered = true
		rows["acc-1"].DisplayName = "Alice Prime"
		rows["acc-1"].Version++
	}

	profile, err := executor.Execute(context.Background(), "acc-1", "eu", func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateBio("eu", "written second")
	})
	require.NoError(t, err)

	// Both writes survive: the interloper's rename and our bio.
	assert.Equal(t, int64(3), profile.Version)
	assert.Equal(t, "Alice Prime", profile.DisplayName)
	assert.Equal(t, "written second", profile.Bio)
	assert.Equal(t, 2, store.loads)
	require.Len(t, outbox.all(), 1)
}

func TestExecuteRetriesWithZeroConfiguredBackoff(t *testing.T) {
	store := newFakeProfileStore(domain.NewProfile("acc-1", "eu", "Alice", "alice"))
	outbox := &fakeOutbox{}
	executor := NewExecutor[*domain.Profile](
		fakeDB{},
		store,
		outbox,
		"identity.events",
		3,
		0,
		zap.NewNop(),
	)

	interfered := false
	store.afterLoad = func(rows map[string]*domain.Profile) {
		if interfered {
			return
		}
		interfered = true
		rows["acc-1"].Version++
	}

	profile, err := executor.Execute(context.Background(), "acc-1", "eu", func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateBio("eu", "still lands")
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), profile.Version)
	assert.Equal(t, 2, store.loads)
}

func TestExecuteExhaustsRetriesAndSurfacesConflict(t *testing.T) {
	store := newFakeProfileStore(domain.NewProfile("acc-1", "eu", "Alice", "alice"))
	outbox := &fakeOutbox{}
	executor := newTestExecutor(store, outbox, 2)

	// Every load is immediately invalidated, so every write conflicts.
	store.afterLoad = func(rows map[string]*domain.Profile) {
		rows["acc-1"].Version++
	}

	_, err := executor.Execute(context.Background(), "acc-1", "eu", func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateBio("eu", "never lands")
	})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	// Initial attempt plus two retries.
	assert.Equal(t, 3, store.loads)
	assert.Empty(t, outbox.all())
}

func TestExecuteOutboxFailureRollsBackAggregateWrite(t *testing.T) {
	store := newFakeProfileStore(domain.NewProfile("acc-1", "eu", "Alice", "alice"))
	outbox := &fakeOutbox{failWith: errors.New("sink unavailable")}
	executor := newTestExecutor(store, outbox, 3)

	_, err := executor.Execute(context.Background(), "acc-1", "eu", func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateBio("eu", "lost with the transaction")
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrConcurrencyConflict)

	assert.Equal(t, int64(1), store.stored("acc-1").Version)
	assert.Equal(t, "", store.stored("acc-1").Bio)
	assert.Empty(t, outbox.all())
	assert.Equal(t, 1, store.loads, "infra failures are not retried")
}

func TestExecuteTerminalErrorsAreNotRetried(t *testing.T) {
	store := newFakeProfileStore(domain.NewProfile("acc-1", "eu", "Alice", "alice"))
	outbox := &fakeOutbox{}
	executor := newTestExecutor(store, outbox, 3)

	_, err := executor.Execute(context.Background(), "acc-1", "us", func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateBio("us", "wrong shard")
	})
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Empty(t, outbox.all())

	_, err = executor.Execute(context.Background(), "missing", "eu", func(p *domain.Profile) ([]domain.Event, error) {
		return p.UpdateBio("eu", "nobody home")
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreatePersistsAggregateAndEvents(t *testing.T) {
	store := newFakeProfileStore()
	outbox := &fakeOutbox{}
	executor := newTestExecutor(store, outbox, 3)

	profile := domain.NewProfile("acc-1", "eu", "Alice", "alice")
	err := executor.Create(context.Background(), profile, profile.Created())
	require.NoError(t, err)

	require.NotNil(t, store.stored("acc-1"))
	assert.Equal(t, int64(1), store.stored("acc-1").Version)

	rows := outbox.all()
	require.Len(t, rows, 1)
	assert.Equal(t, "ProfileCreated", rows[0].EventType)
}

func TestCreateKeyCollisionSurfacesImmediately(t *testing.T) {
	existing := domain.NewProfile("acc-1", "eu", "Alice", "alice")
	store := newFakeProfileStore(existing)
	outbox := &fakeOutbox{}
	executor := newTestExecutor(store, outbox, 3)

	duplicate := domain.NewProfile("acc-1", "eu", "Imposter", "alice")
	err := executor.Create(context.Background(), duplicate, duplicate.Created())
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Empty(t, outbox.all())
}

func TestExecuteCompoundMutationSingleVersionBump(t *testing.T) {
	store := newFakeProfileStore()
	outbox := &fakeOutbox{}
	executor := newTestExecutor(store, outbox, 3)

	profile := domain.NewProfile("acc-1", "eu", "Alice", "alice")
	require.NoError(t, executor.Create(context.Background(), profile, profile.Created()))

	for i := 1; i <= 10; i++ {
		postID := fmt.Sprintf("post-%d", i)
		_, err := executor.Execute(context.Background(), "acc-1", "eu", func(p *domain.Profile) ([]domain.Event, error) {
			return p.IncrementPostCount("eu", postID)
		})
		require.NoError(t, err)
	}

	// Ten mutating commands: versions 2 through 11, even though the tenth
	// command emitted two events.
	assert.Equal(t, int64(11), store.stored("acc-1").Version)
	assert.Len(t, outbox.all(), 12)
}
