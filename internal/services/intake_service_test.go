package services

import (
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/talent-intake/internal/config"
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/maxaizer/talent-intake/internal/repositories"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type testEnv struct {
	db          *repositories.DbContext
	candidates  *repositories.Candidates
	queue       *repositories.IntakeQueue
	experiences *repositories.Experiences
	intakeLogs  *repositories.IntakeLogs
	sequences   *repositories.Sequences
	bus         EventBus.Bus
	intake      *IntakeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := repositories.NewDbContext(config.DBConfig{
		ConnectionString: filepath.Join(t.TempDir(), "intake.db") + "?_pragma=busy_timeout(5000)",
		MaxOpenConns:     1,
		PageSize:         100,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		db:          db,
		candidates:  repositories.NewCandidatesRepository(db.DB),
		queue:       repositories.NewIntakeQueueRepository(db.DB),
		experiences: repositories.NewExperiencesRepository(db.DB),
		intakeLogs:  repositories.NewIntakeLogsRepository(db.DB),
		sequences:   repositories.NewSequencesRepository(db.DB),
		bus:         EventBus.New(),
	}

	_, err = NewIntakeLogger(env.bus, env.intakeLogs)
	require.NoError(t, err)

	env.intake = env.newIntake(t, NewIdentityMatcher(env.candidates, env.queue, testMarkers), NewIDAllocator(env.sequences))
	return env
}

func (env *testEnv) newIntake(t *testing.T, matcher duplicateChecker, allocator idAllocator) *IntakeService {
	t.Helper()
	intake, err := NewIntakeService(matcher, allocator, env.candidates, env.queue, env.bus)
	require.NoError(t, err)
	return intake
}

func (env *testEnv) candidateCount(t *testing.T) int64 {
	count, err := env.candidates.Count(context.Background())
	require.NoError(t, err)
	return count
}

type failingReserver struct{}

func (failingReserver) Reserve(context.Context, string, int) (int64, error) {
	return 0, repositories.ErrSequenceUnavailable
}

// blindMatcher never reports a duplicate, leaving the storage constraint as
// the only guard.
type blindMatcher struct {
	*IdentityMatcher
	err error
}

func (m blindMatcher) FindDuplicate(context.Context, models.Identity) (Verdict, error) {
	return Verdict{}, m.err
}

func (m blindMatcher) FindActiveProcessing(context.Context, models.Identity, ...string) (Verdict, error) {
	return Verdict{}, m.err
}

func Test_Batch_SamePersonTwiceYieldsOneNewAndOneInBatchDuplicate(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.intake.Batch(context.Background(), []BatchRow{
		{Identity: models.Identity{Name: "Ana Perez", ProfileURL: "https://linkedin.com/in/ana"}},
		{Identity: models.Identity{Name: "Ana Perez", ProfileURL: "https://linkedin.com/in/ana"},
			Fields: map[string]string{"note": "second"}},
	})

	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.NotEmpty(t, result.BatchID)

	first, second := result.Outcomes[0], result.Outcomes[1]
	assert.Equal(t, OutcomeCreated, first.Status)
	assert.Equal(t, "C00001", first.CandidateID)
	assert.Equal(t, OutcomeDuplicate, second.Status)
	assert.Equal(t, TierBatch, second.Tier)
	assert.Equal(t, ReasonName, second.Reason)
	assert.Equal(t, "C00001", second.CandidateID)
	assert.Equal(t, 2, second.Row)
	assert.Equal(t, "second", second.Fields["note"])

	assert.Equal(t, 1, result.Count(OutcomeCreated))
	assert.Equal(t, 1, result.Count(OutcomeDuplicate))
	assert.EqualValues(t, 1, env.candidateCount(t))
}

// flakyMatcher fails the first in-progress check and behaves normally after.
type flakyMatcher struct {
	*IdentityMatcher
	calls int
}

func (m *flakyMatcher) FindActiveProcessing(ctx context.Context, identity models.Identity,
	exclude ...string) (Verdict, error) {

	m.calls++
	if m.calls == 1 {
		return Verdict{}, fmt.Errorf("%w: %w", ErrDuplicateCheckFailed, errors.New("timeout"))
	}
	return m.IdentityMatcher.FindActiveProcessing(ctx, identity, exclude...)
}

func Test_Batch_RepeatOfFailedRowFailsToo(t *testing.T) {
	env := newTestEnv(t)
	intake := env.newIntake(t, &flakyMatcher{IdentityMatcher: NewIdentityMatcher(env.candidates, env.queue, testMarkers)},
		NewIDAllocator(env.sequences))

	result, err := intake.Batch(context.Background(), []BatchRow{
		{Identity: models.Identity{Name: "Ana Perez"}},
		{Identity: models.Identity{Name: "Ana Perez"}},
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcomes[0].Status)
	assert.Equal(t, OutcomeFailed, result.Outcomes[1].Status)
	assert.Contains(t, result.Outcomes[1].Error, "row 1")
	assert.Empty(t, result.Outcomes[1].Tier)
	assert.Zero(t, result.Count(OutcomeDuplicate))
	assert.EqualValues(t, 0, env.candidateCount(t))
}

func Test_Batch_RepeatOfInProgressRowPointsAtTrackedIntake(t *testing.T) {
	env := newTestEnv(t)
	tracked, err := env.intake.Track(context.Background(), models.Identity{Name: "Ana Perez"})
	require.NoError(t, err)

	result, err := env.intake.Batch(context.Background(), []BatchRow{
		{Identity: models.Identity{Name: "Ana Perez"}},
		{Identity: models.Identity{Name: "ana  perez"}},
	})

	require.NoError(t, err)
	for _, outcome := range result.Outcomes {
		assert.Equal(t, OutcomeDuplicate, outcome.Status)
		assert.Equal(t, TierProcessing, outcome.Tier)
		assert.Equal(t, tracked.TrackingID, outcome.TrackingID)
	}
	assert.EqualValues(t, 0, env.candidateCount(t))
}

func Test_Batch_InBatchMatchOnTrustedURL(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.intake.Batch(context.Background(), []BatchRow{
		{Identity: models.Identity{Name: "Ana Perez", ProfileURL: "https://linkedin.com/in/ana"}},
		{Identity: models.Identity{Name: "A. Perez", ProfileURL: "https://linkedin.com/in/ana?utm=1"}},
		{Identity: models.Identity{Name: "Bo", ProfileURL: "https://example.com/p"}},
		{Identity: models.Identity{Name: "Cy", ProfileURL: "https://example.com/p"}},
	})

	require.NoError(t, err)
	assert.Equal(t, ReasonLinkedIn, result.Outcomes[1].Reason)
	assert.Equal(t, TierBatch, result.Outcomes[1].Tier)
	assert.Equal(t, OutcomeCreated, result.Outcomes[2].Status)
	assert.Equal(t, OutcomeCreated, result.Outcomes[3].Status)
	assert.EqualValues(t, 3, env.candidateCount(t))
}

func Test_Batch_AllocatorFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	intake := env.newIntake(t, NewIdentityMatcher(env.candidates, env.queue, testMarkers), NewIDAllocator(failingReserver{}))

	rows := make([]BatchRow, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, BatchRow{Identity: models.Identity{Name: fmt.Sprintf("Person %d", i)}})
	}

	_, err := intake.Batch(context.Background(), rows)

	assert.ErrorIs(t, err, ErrAllocationFailed)
	assert.EqualValues(t, 0, env.candidateCount(t))

	var queued int64
	require.NoError(t, env.db.DB.Model(&models.IntakeQueueItem{}).Count(&queued).Error)
	assert.EqualValues(t, 0, queued)
}

func Test_Batch_SkipsInvalidAndReportsStoredDuplicates(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.intake.Manual(context.Background(), ManualRequest{Identity: models.Identity{Name: "Ana Perez"}})
	require.NoError(t, err)

	result, err := env.intake.Batch(context.Background(), []BatchRow{
		{Identity: models.Identity{Email: "only@email.com"}},
		{Identity: models.Identity{Name: "ANA PÉREZ", Email: "not-an-email"}},
		{Identity: models.Identity{Name: "Bob Stone", Email: "bob@example.com"}},
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedInvalid, result.Outcomes[0].Status)
	assert.Equal(t, OutcomeDuplicate, result.Outcomes[1].Status)
	assert.Equal(t, TierStored, result.Outcomes[1].Tier)
	assert.Equal(t, "C00001", result.Outcomes[1].CandidateID)
	assert.Equal(t, OutcomeCreated, result.Outcomes[2].Status)
	assert.Equal(t, "C00002", result.Outcomes[2].CandidateID)
	assert.NotEmpty(t, result.Outcomes[2].TrackingID)

	item, err := env.queue.GetByID(context.Background(), result.Outcomes[2].TrackingID)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, models.QueueCompleted, item.Status)
	assert.Equal(t, result.BatchID, item.BatchID)
}

func Test_Batch_ConcurrentBatchesGetDisjointIDs(t *testing.T) {
	env := newTestEnv(t)

	const batches = 4
	results := make([]BatchResult, batches)
	var wg sync.WaitGroup
	for b := 0; b < batches; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			rows := make([]BatchRow, 0, 5)
			for i := 0; i < 5; i++ {
				rows = append(rows, BatchRow{Identity: models.Identity{Name: fmt.Sprintf("Batch %d Person %d", b, i)}})
			}
			result, err := env.intake.Batch(context.Background(), rows)
			assert.NoError(t, err)
			results[b] = result
		}(b)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, result := range results {
		for _, outcome := range result.Outcomes {
			require.Equal(t, OutcomeCreated, outcome.Status)
			assert.False(t, seen[outcome.CandidateID], "id %s handed out twice", outcome.CandidateID)
			seen[outcome.CandidateID] = true
		}
	}
	assert.Len(t, seen, batches*5)
	assert.EqualValues(t, batches*5, env.candidateCount(t))
}

func Test_Manual_CreatesThenReportsDuplicate(t *testing.T) {
	env := newTestEnv(t)

	outcome, err := env.intake.Manual(context.Background(), ManualRequest{
		Identity: models.Identity{Name: "Ana Perez", Email: "ana@example.com"},
		Profile:  models.Profile{Headline: "Engineer"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome.Status)
	assert.Equal(t, "C00001", outcome.CandidateID)

	outcome, err = env.intake.Manual(context.Background(), ManualRequest{
		Identity: models.Identity{Name: "Someone", Email: "ANA@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome.Status)
	assert.Equal(t, ReasonEmail, outcome.Reason)
	assert.Equal(t, "C00001", outcome.CandidateID)

	logs, err := env.intakeLogs.GetByCandidate(context.Background(), "C00001")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, string(models.SourceManual), logs[0].Source)
}

func Test_Manual_InvalidInputIsSkipped(t *testing.T) {
	env := newTestEnv(t)

	outcome, err := env.intake.Manual(context.Background(), ManualRequest{Identity: models.Identity{Name: "  "}})

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedInvalid, outcome.Status)
	assert.EqualValues(t, 0, env.candidateCount(t))
}

func Test_Manual_FailsClosedWhenDuplicateCheckFails(t *testing.T) {
	env := newTestEnv(t)
	matcher := blindMatcher{IdentityMatcher: NewIdentityMatcher(env.candidates, env.queue, testMarkers),
		err: fmt.Errorf("%w: %w", ErrDuplicateCheckFailed, errors.New("timeout"))}
	intake := env.newIntake(t, matcher, NewIDAllocator(env.sequences))

	_, err := intake.Manual(context.Background(), ManualRequest{Identity: models.Identity{Name: "Ana Perez"}})

	assert.ErrorIs(t, err, ErrDuplicateCheckFailed)
	assert.EqualValues(t, 0, env.candidateCount(t))
}

func Test_Manual_StorageConstraintCatchesMissedDuplicate(t *testing.T) {
	env := newTestEnv(t)
	intake := env.newIntake(t, blindMatcher{IdentityMatcher: NewIdentityMatcher(env.candidates, env.queue, testMarkers)},
		NewIDAllocator(env.sequences))

	_, err := intake.Manual(context.Background(), ManualRequest{Identity: models.Identity{Name: "Ana Perez"}})
	require.NoError(t, err)

	outcome, err := intake.Manual(context.Background(), ManualRequest{Identity: models.Identity{Name: "ana perez"}})

	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome.Status)
	assert.Equal(t, ReasonConstraint, outcome.Reason)
	assert.EqualValues(t, 1, env.candidateCount(t))
}

func Test_Manual_SeesTrackedIntakeInProgress(t *testing.T) {
	env := newTestEnv(t)

	tracked, err := env.intake.Track(context.Background(), models.Identity{ProfileURL: "https://www.linkedin.com/in/carla"})
	require.NoError(t, err)
	require.Equal(t, OutcomePending, tracked.Status)

	outcome, err := env.intake.Manual(context.Background(), ManualRequest{
		Identity: models.Identity{Name: "Carla Diaz", ProfileURL: "https://www.linkedin.com/in/carla?trk=x"},
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome.Status)
	assert.Equal(t, TierProcessing, outcome.Tier)
	assert.Equal(t, tracked.TrackingID, outcome.TrackingID)
}

// heldLocker reports every key in held as busy and records requested keys.
type heldLocker struct {
	held map[string]bool
	keys []string
}

func (l *heldLocker) Lock(_ context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	if l.held[key] {
		return nil, ErrIdentityBusy
	}
	return func() {}, nil
}

func Test_Manual_UntrustedURLDoesNotShareLock(t *testing.T) {
	env := newTestEnv(t)
	locker := &heldLocker{held: map[string]bool{"url:https://example.com/p": true}}
	env.intake.WithIdentityLocker(locker)

	outcome, err := env.intake.Manual(context.Background(), ManualRequest{
		Identity: models.Identity{Name: "Cy", ProfileURL: "https://example.com/p"},
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome.Status)
	require.Len(t, locker.keys, 1)
	assert.True(t, strings.HasPrefix(locker.keys[0], "name:"))
	assert.EqualValues(t, 1, env.candidateCount(t))
}

func Test_Manual_TrustedURLLockIsShared(t *testing.T) {
	env := newTestEnv(t)
	locker := &heldLocker{}
	env.intake.WithIdentityLocker(locker)

	_, err := env.intake.Manual(context.Background(), ManualRequest{
		Identity: models.Identity{Name: "Bo", ProfileURL: "https://linkedin.com/in/bo"},
	})
	require.NoError(t, err)
	require.Len(t, locker.keys, 1)
	assert.True(t, strings.HasPrefix(locker.keys[0], "url:"))

	locker.held = map[string]bool{locker.keys[0]: true}
	outcome, err := env.intake.Manual(context.Background(), ManualRequest{
		Identity: models.Identity{Name: "Robert", ProfileURL: "https://linkedin.com/in/bo?trk=1"},
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome.Status)
	assert.Equal(t, ReasonLocked, outcome.Reason)
	assert.EqualValues(t, 1, env.candidateCount(t))
}

func Test_Callback_CreatesCandidateWithExperiencesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tracked, err := env.intake.Track(ctx, models.Identity{Name: "Carla Diaz", ProfileURL: "https://www.linkedin.com/in/carla"})
	require.NoError(t, err)

	req := CallbackRequest{
		TrackingID: tracked.TrackingID,
		Profile:    models.Profile{Location: "Lisbon"},
		Experiences: []models.RawExperience{
			{Company: "Acme", Position: "Engineer", StartDate: "2018-01-01", EndDate: "2021-06-30", Current: "no"},
			{Company: "Globex", Position: "Lead", StartDate: "2021-07-01", Current: "present"},
		},
	}

	first, err := env.intake.Callback(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, first.Status)
	assert.Equal(t, "C00001", first.CandidateID)

	retry, err := env.intake.Callback(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Status, retry.Status)
	assert.Equal(t, first.CandidateID, retry.CandidateID)
	assert.EqualValues(t, 1, env.candidateCount(t))

	candidate, err := env.candidates.GetByExternalID(ctx, "C00001")
	require.NoError(t, err)
	assert.Equal(t, "Carla Diaz", candidate.Name)
	assert.Equal(t, "Lisbon", candidate.Location)

	experiences, err := env.experiences.GetByCandidate(ctx, "C00001")
	require.NoError(t, err)
	require.Len(t, experiences, 2)
	assert.Equal(t, "ER000001", experiences[0].ExternalID)
	assert.Equal(t, "ER000002", experiences[1].ExternalID)
	assert.Equal(t, "Globex", SelectPrimary(experiences).Company)

	logs, err := env.intakeLogs.GetByCandidate(ctx, "C00001")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, tracked.TrackingID, logs[0].TrackingID)
}

func Test_Callback_UnknownTrackingID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.intake.Callback(context.Background(), CallbackRequest{TrackingID: "missing"})

	assert.ErrorIs(t, err, ErrTrackingNotFound)
}

func Test_Callback_RetryAfterAllocatorFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tracked, err := env.intake.Track(ctx, models.Identity{Name: "Dan Roe"})
	require.NoError(t, err)

	broken := env.newIntake(t, NewIdentityMatcher(env.candidates, env.queue, testMarkers), NewIDAllocator(failingReserver{}))
	_, err = broken.Callback(ctx, CallbackRequest{TrackingID: tracked.TrackingID})
	require.ErrorIs(t, err, ErrAllocationFailed)

	item, err := env.queue.GetByID(ctx, tracked.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueFailed, item.Status)

	outcome, err := env.intake.Callback(ctx, CallbackRequest{TrackingID: tracked.TrackingID})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome.Status)
	assert.EqualValues(t, 1, env.candidateCount(t))
}

func Test_Callback_DuplicateOfStoredCandidate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tracked, err := env.intake.Track(ctx, models.Identity{ProfileURL: "https://linkedin.com/in/eve"})
	require.NoError(t, err)

	_, err = env.intake.Manual(ctx, ManualRequest{Identity: models.Identity{Name: "Eve Stone"}})
	require.NoError(t, err)

	outcome, err := env.intake.Callback(ctx, CallbackRequest{
		TrackingID: tracked.TrackingID,
		Identity:   models.Identity{Name: "Eve  Stone"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome.Status)
	assert.Equal(t, "C00001", outcome.CandidateID)

	retry, err := env.intake.Callback(ctx, CallbackRequest{TrackingID: tracked.TrackingID})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, retry.Status)
	assert.Equal(t, "C00001", retry.CandidateID)
	assert.Equal(t, ReasonName, retry.Reason)
}

func Test_IntakeService_RejectsNilDependencies(t *testing.T) {
	_, err := NewIntakeService(nil, nil, nil, nil, EventBus.New())
	assert.Error(t, err)
}
