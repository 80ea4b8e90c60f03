package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfolio/hostfolio/internal/listing/domain"
	"github.com/hostfolio/hostfolio/internal/listing/infrastructure/persistence"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/lock"
	"github.com/hostfolio/hostfolio/internal/shared/infrastructure/outbox"
)

type noopUnitOfWork struct{}

func (noopUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (noopUnitOfWork) Commit(ctx context.Context) error                   { return nil }
func (noopUnitOfWork) Rollback(ctx context.Context) error                 { return nil }

type sentNotification struct {
	hostID  uuid.UUID
	event   string
	payload map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) NotifyHost(ctx context.Context, hostID uuid.UUID, event string, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{hostID: hostID, event: event, payload: payload})
	return nil
}

func (n *recordingNotifier) NotifyOperators(ctx context.Context, event string, payload map[string]any) error {
	return nil
}

func (n *recordingNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, s := range n.sent {
		out[i] = s.event
	}
	return out
}

type sweepFixture struct {
	sweeper  *TrialSweeper
	listings *persistence.MemoryRepository
	outbox   *outbox.MemoryRepository
	notifier *recordingNotifier
	now      time.Time
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	f := &sweepFixture{
		listings: persistence.NewMemoryRepository(),
		outbox:   outbox.NewMemoryRepository(),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.sweeper = NewTrialSweeper(f.listings, noopUnitOfWork{}, f.outbox, f.notifier, lock.NewLocalLease(), nil)
	f.sweeper.now = func() time.Time { return f.now }
	return f
}

// seedTrial stores a TRIAL listing whose trial ends at the given offset from
// the fixture clock.
func (f *sweepFixture) seedTrial(t *testing.T, endsIn time.Duration) *domain.Listing {
	t.Helper()
	starts := f.now.Add(endsIn - domain.TrialDuration)
	ends := f.now.Add(endsIn)
	listing := domain.RehydrateListing(
		uuid.New(), uuid.New(), "Walking tour", domain.StatusTrial,
		&starts, &ends,
		false, false, false,
		&starts, true,
		starts, starts,
	)
	require.NoError(t, f.listings.Save(context.Background(), listing))
	return listing
}

func TestRunOnce_ExpiresOverdueTrials(t *testing.T) {
	f := newSweepFixture(t)
	listing := f.seedTrial(t, -time.Minute)

	result, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Expired)
	assert.Zero(t, result.Failed)

	stored, err := f.listings.FindByID(context.Background(), listing.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspended, stored.Status())
	assert.False(t, stored.IsPublished())

	require.Equal(t, []string{"trial_expired"}, f.notifier.events())
	assert.NotEmpty(t, f.outbox.All())
}

func TestRunOnce_WarnsMostUrgentWindowOnly(t *testing.T) {
	f := newSweepFixture(t)
	listing := f.seedTrial(t, 30*time.Minute)

	result, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	// 30 minutes out crosses all three thresholds; only the 1h warning fires.
	assert.Equal(t, 1, result.Warned1h)
	assert.Zero(t, result.Warned6h)
	assert.Zero(t, result.Warned24h)
	require.Equal(t, []string{"trial_warning"}, f.notifier.events())

	stored, err := f.listings.FindByID(context.Background(), listing.ID())
	require.NoError(t, err)
	assert.True(t, stored.Notified1h())
	assert.True(t, stored.Notified6h())
	assert.True(t, stored.Notified24h())
}

func TestRunOnce_GraduatedWindows(t *testing.T) {
	f := newSweepFixture(t)
	f.seedTrial(t, 20*time.Hour)
	f.seedTrial(t, 3*time.Hour)

	result, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Warned24h)
	assert.Equal(t, 1, result.Warned6h)
	assert.Zero(t, result.Warned1h)
	assert.Len(t, f.notifier.events(), 2)
}

func TestRunOnce_ExpiryWinsOverWarning(t *testing.T) {
	f := newSweepFixture(t)
	listing := f.seedTrial(t, -time.Second)

	result, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Expired)
	assert.Zero(t, result.Warned1h)
	require.Equal(t, []string{"trial_expired"}, f.notifier.events())

	stored, err := f.listings.FindByID(context.Background(), listing.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspended, stored.Status())
}

func TestRunOnce_SecondPassIsIdempotent(t *testing.T) {
	f := newSweepFixture(t)
	f.seedTrial(t, -time.Minute)
	f.seedTrial(t, 30*time.Minute)

	_, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	result, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SweepResult{}, result)
	assert.Len(t, f.notifier.events(), 2)
}

func TestRunOnce_UpcomingTrialUntouched(t *testing.T) {
	f := newSweepFixture(t)
	f.seedTrial(t, 40*time.Hour)

	result, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SweepResult{}, result)
	assert.Empty(t, f.notifier.events())
}

func TestRunOnce_LeaseHeld(t *testing.T) {
	f := newSweepFixture(t)
	lease := lock.NewLocalLease()
	f.sweeper.lock = lease

	release, err := lease.Acquire(context.Background())
	require.NoError(t, err)
	defer release(context.Background())

	_, err = f.sweeper.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)
}

func TestRunOnce_ReleasesLease(t *testing.T) {
	f := newSweepFixture(t)

	_, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	_, err = f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
}

// conflictingRepo simulates a concurrent writer beating every sweep update.
type conflictingRepo struct {
	*persistence.MemoryRepository
}

func (r *conflictingRepo) Update(ctx context.Context, listing *domain.Listing, expected domain.Status) error {
	return domain.ErrStatusConflict
}

func TestRunOnce_ConcurrentConflictIsNotAFailure(t *testing.T) {
	f := newSweepFixture(t)
	f.seedTrial(t, -time.Minute)
	f.sweeper.listings = &conflictingRepo{MemoryRepository: f.listings}

	result, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	// The concurrent writer won; nothing is counted and nobody is notified.
	assert.Zero(t, result.Failed)
	assert.Zero(t, result.Expired)
	assert.Empty(t, f.notifier.events())
	assert.Empty(t, f.outbox.All())
}
