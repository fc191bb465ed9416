package intake

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehatbridge/sehatauth/internal/validate"
	"github.com/sehatbridge/sehatauth/sequence"
)

var _ Repository = (*MockRepository)(nil)

type MockRepository struct {
	InsertFunc        func(ctx context.Context, rec *Record) error
	LatestByEmailFunc func(ctx context.Context, email string) (*Record, error)

	InsertCallCount int32
}

func (m *MockRepository) Insert(ctx context.Context, rec *Record) error {
	atomic.AddInt32(&m.InsertCallCount, 1)
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, rec)
	}
	return nil
}

func (m *MockRepository) LatestByEmail(ctx context.Context, email string) (*Record, error) {
	if m.LatestByEmailFunc != nil {
		return m.LatestByEmailFunc(ctx, email)
	}
	return nil, ErrNotFound
}

type failingGenerator struct{}

func (failingGenerator) Next(context.Context, string) (int64, error) {
	return 0, sequence.ErrStoreUnavailable
}

func (failingGenerator) Current(context.Context, string) (int64, error) {
	return 0, sequence.ErrStoreUnavailable
}

func validRequest() Request {
	return Request{
		Name:       "Ravi",
		Email:      "Ravi@Example.org",
		Age:        34,
		Gender:     "Male",
		Contact:    "9000000000",
		Department: "Cardiology",
		Pincode:    "411001",
		Reason:     "Chest pain",
		Date:       "2026-05-02",
		Reports:    []string{"uploads/ecg.pdf"},
	}
}

func TestSubmitAssignsSequentialIdentifiers(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(sequence.NewMemoryGenerator(), repo, Config{}, zerolog.Nop())

	first, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "REG-1", first.RegistrationID)
	assert.Equal(t, "REG-2", second.RegistrationID)
	assert.Equal(t, "ravi@example.org", first.Email)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, repo.All(), 2)
}

func TestSubmitConcurrentDistinctIdentifiers(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(sequence.NewMemoryGenerator(), repo, Config{}, zerolog.Nop())

	var wg sync.WaitGroup
	ids := make([]string, 3)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := svc.Submit(context.Background(), validRequest())
			if err != nil {
				t.Errorf("Submit error: %v", err)
				return
			}
			ids[i] = rec.RegistrationID
		}(i)
	}
	wg.Wait()

	sort.Strings(ids)
	assert.Equal(t, []string{"REG-1", "REG-2", "REG-3"}, ids)
}

func TestSubmitValidationDoesNotConsumeSequence(t *testing.T) {
	gen := sequence.NewMemoryGenerator()
	repo := &MockRepository{}
	svc := NewService(gen, repo, Config{}, zerolog.Nop())

	req := validRequest()
	req.Name = ""
	req.Age = 0
	req.Email = "nope"

	_, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, validate.ErrInvalid)

	var verr *validate.Errors
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)

	current, err := gen.Current(context.Background(), DefaultSequenceName)
	require.NoError(t, err)
	assert.Zero(t, current)
	assert.Zero(t, atomic.LoadInt32(&repo.InsertCallCount))
}

func TestSubmitPropagatesSequenceFailure(t *testing.T) {
	repo := &MockRepository{}
	svc := NewService(failingGenerator{}, repo, Config{}, zerolog.Nop())

	_, err := svc.Submit(context.Background(), validRequest())
	assert.ErrorIs(t, err, sequence.ErrStoreUnavailable)
	assert.Zero(t, atomic.LoadInt32(&repo.InsertCallCount))
}

func TestSubmitPersistFailureOrphansIdentifier(t *testing.T) {
	gen := sequence.NewMemoryGenerator()
	calls := 0
	repo := &MockRepository{InsertFunc: func(ctx context.Context, rec *Record) error {
		calls++
		if calls == 1 {
			return errors.New("disk full")
		}
		return nil
	}}
	svc := NewService(gen, repo, Config{}, zerolog.Nop())

	_, err := svc.Submit(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrPersistFailed)

	rec, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "REG-2", rec.RegistrationID, "failed allocation must not be reused")
}

func TestCustomPrefixAndCounter(t *testing.T) {
	gen := sequence.NewMemoryGenerator()
	svc := NewService(gen, NewMemoryRepository(), Config{SequenceName: "opd", Prefix: "OPD-"}, zerolog.Nop())

	rec, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "OPD-1", rec.RegistrationID)

	current, err := gen.Current(context.Background(), "opd")
	require.NoError(t, err)
	assert.EqualValues(t, 1, current)
}

func TestLatestByEmail(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(sequence.NewMemoryGenerator(), repo, Config{}, zerolog.Nop())
	tick := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}

	_, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	got, err := svc.LatestByEmail(context.Background(), "RAVI@example.org")
	require.NoError(t, err)
	assert.Equal(t, second.RegistrationID, got.RegistrationID)

	_, err = svc.LatestByEmail(context.Background(), "nobody@example.org")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.LatestByEmail(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}
