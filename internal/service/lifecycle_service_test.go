package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/notify"
)

func TestPublishFlipsPreviousVersionAndRebuilds(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.store.add("v-old", "group-a", false, 3)
	fx.store.add("v-new", "group-a", true, 2)
	fx.store.add("v-new", "group-b", true, 2)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	result, err := fx.service.Publish(context.Background(), "v-new")
	require.NoError(t, err)
	assert.Equal(t, 4, result.PublishedCount)
	assert.Equal(t, 3, result.PreviouslyActiveCount)
	assert.Equal(t, []string{"v-old"}, result.PreviouslyActiveVersions)
	assert.True(t, result.IsActive)
	assert.Equal(t, 2, result.RebuiltSchedules)

	assert.Equal(t, []string{"v-new"}, fx.store.publishedVersions())
	assert.ElementsMatch(t, []models.ClassGroupTerm{
		{ClassGroupID: "group-a", TermID: "term-1"},
		{ClassGroupID: "group-b", TermID: "term-1"},
	}, fx.schedules.rebuilt)
	assert.Equal(t, fx.schedules.rebuilt, fx.schedules.invalidated)
	assert.Equal(t, []string{notify.EventPublished}, fx.notifier.published())
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestPublishLocksDemotedVersions(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.store.add("v-b", "group-a", false, 1)
	fx.store.add("v-a", "group-b", false, 1)
	fx.store.add("v-new", "group-a", true, 1)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	result, err := fx.service.Publish(context.Background(), "v-new")
	require.NoError(t, err)
	assert.Equal(t, []string{"v-a", "v-b"}, result.PreviouslyActiveVersions)
	assert.Equal(t, []string{"v-new", "v-a", "v-b"}, fx.store.locked)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestPublishIsIdempotent(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.store.add("v-1", "group-a", true, 2)

	for i := 0; i < 2; i++ {
		fx.mock.ExpectBegin()
		fx.mock.ExpectCommit()
		result, err := fx.service.Publish(context.Background(), "v-1")
		require.NoError(t, err)
		assert.True(t, result.IsActive)
		assert.Equal(t, 2, result.PublishedCount)
		assert.Equal(t, 0, result.PreviouslyActiveCount)
		assert.Empty(t, result.PreviouslyActiveVersions)
	}

	status, err := fx.service.Status(context.Background(), "v-1", "")
	require.NoError(t, err)
	assert.True(t, status.IsActive)
	assert.Equal(t, 2, status.PublishedEntries)
	require.NotNil(t, status.ActiveVersion)
	assert.Equal(t, "v-1", *status.ActiveVersion)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestPublishSequenceKeepsSingleActiveVersion(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.store.add("v-1", "group-a", true, 2)
	fx.store.add("v-2", "group-b", true, 1)
	fx.store.add("v-3", "group-a", true, 3)

	for _, version := range []string{"v-1", "v-2", "v-1", "v-3", "v-2"} {
		fx.mock.ExpectBegin()
		fx.mock.ExpectCommit()
		_, err := fx.service.Publish(context.Background(), version)
		require.NoError(t, err)
		assert.Equal(t, []string{version}, fx.store.publishedVersions())
	}
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestPublishUnknownVersionReportsZeroCounts(t *testing.T) {
	fx := newLifecycleFixture(t)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	result, err := fx.service.Publish(context.Background(), "v-missing")
	require.NoError(t, err)
	assert.Equal(t, 0, result.PublishedCount)
	assert.Equal(t, MessageNoEntries, result.Message)
	assert.Empty(t, fx.notifier.published())
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestPublishRollsBackOnRebuildFailure(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.store.add("v-1", "group-a", true, 1)
	fx.schedules.err = errors.New("upsert failed")

	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err := fx.service.Publish(context.Background(), "v-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Empty(t, fx.notifier.published())
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestPublishRequiresVersion(t *testing.T) {
	fx := newLifecycleFixture(t)
	_, err := fx.service.Publish(context.Background(), "  ")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDiscardRemovesOnlyDraftRows(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.store.add("v-1", "group-a", true, 5)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	result, err := fx.service.Discard(context.Background(), "v-1")
	require.NoError(t, err)
	assert.Equal(t, 5, result.DiscardedCount)
	assert.Equal(t, 0, result.PublishedEntriesRemaining)
	assert.False(t, result.IsActive)
	assert.Equal(t, 0, result.PostStatus.TotalEntries)
	assert.Equal(t, []string{notify.EventDiscarded}, fx.notifier.published())
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestDiscardKeepsPublishedRows(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.store.add("v-1", "group-a", false, 3)
	fx.store.add("v-1", "group-b", true, 2)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	result, err := fx.service.Discard(context.Background(), "v-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.DiscardedCount)
	assert.Equal(t, 3, result.PublishedEntriesRemaining)
	assert.True(t, result.IsActive)
	assert.Equal(t, 3, result.PostStatus.PublishedEntries)
	assert.Equal(t, 0, result.PostStatus.DraftEntries)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestDiscardWithoutDraftRowsReportsMessage(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.store.add("v-1", "group-a", false, 3)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	result, err := fx.service.Discard(context.Background(), "v-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.DiscardedCount)
	assert.Equal(t, MessageNoDraftEntries, result.Message)
	assert.Equal(t, 3, result.PublishedEntriesRemaining)
	assert.True(t, result.IsActive)
	assert.Equal(t, 3, result.PostStatus.PublishedEntries)
	assert.Empty(t, fx.notifier.published())
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestRevertFlipsPublishedRows(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.store.add("v-1", "group-a", false, 4)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	result, err := fx.service.Revert(context.Background(), "v-1")
	require.NoError(t, err)
	assert.Equal(t, 4, result.UpdatedCount)
	assert.Equal(t, 1, result.RebuiltSchedules)
	assert.Empty(t, fx.store.publishedVersions())
	assert.Equal(t, []string{notify.EventReverted}, fx.notifier.published())
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestRevertDraftVersionIsNoop(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.store.add("v-1", "group-a", true, 2)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	result, err := fx.service.Revert(context.Background(), "v-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.UpdatedCount)
	assert.Empty(t, fx.schedules.rebuilt)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestStatusUnknownVersion(t *testing.T) {
	fx := newLifecycleFixture(t)
	status, err := fx.service.Status(context.Background(), "v-none", "")
	require.NoError(t, err)
	assert.Equal(t, 0, status.TotalEntries)
	assert.False(t, status.IsActive)
	assert.Nil(t, status.ActiveVersion)
}

func TestDraftSummary(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.store.add("v-1", "group-a", true, 2)

	summary, err := fx.service.DraftSummary(context.Background(), "v-1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalEntries)
	require.Len(t, summary.ByClassGroup, 1)
	assert.Equal(t, 2, summary.ByClassGroup[0].Count)
	assert.NotNil(t, summary.ByRoom)

	_, err = fx.service.DraftSummary(context.Background(), "v-missing", "")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

// --- Fixtures ---

type lifecycleFixture struct {
	service   *LifecycleService
	store     *memoryEntryStore
	schedules *rebuilderStub
	notifier  *publisherStub
	mock      sqlmock.Sqlmock
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fx := &lifecycleFixture{
		store:     &memoryEntryStore{},
		schedules: &rebuilderStub{},
		notifier:  &publisherStub{},
		mock:      mock,
	}
	fx.service = NewLifecycleService(fx.store, fx.schedules, sqlx.NewDb(db, "sqlmock"), nil, fx.notifier, nil, zap.NewNop())
	return fx
}

type memoryRow struct {
	version    string
	classGroup string
	isDraft    bool
}

// memoryEntryStore models timetable_entries rows for lifecycle tests.
type memoryEntryStore struct {
	rows   []memoryRow
	locked []string
}

func (s *memoryEntryStore) add(version, classGroup string, isDraft bool, n int) {
	for i := 0; i < n; i++ {
		s.rows = append(s.rows, memoryRow{version: version, classGroup: classGroup, isDraft: isDraft})
	}
}

func (s *memoryEntryStore) publishedVersions() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range s.rows {
		if r.isDraft {
			continue
		}
		if _, ok := seen[r.version]; !ok {
			seen[r.version] = struct{}{}
			out = append(out, r.version)
		}
	}
	sort.Strings(out)
	return out
}

func (s *memoryEntryStore) LockPublish(context.Context, sqlx.ExtContext) error { return nil }

func (s *memoryEntryStore) LockVersion(_ context.Context, _ sqlx.ExtContext, version string) error {
	s.locked = append(s.locked, version)
	return nil
}

func (s *memoryEntryStore) PublishedVersions(_ context.Context, _ sqlx.ExtContext, exclude string) ([]string, error) {
	var out []string
	for _, v := range s.publishedVersions() {
		if v != exclude {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memoryEntryStore) SetDraftState(_ context.Context, _ sqlx.ExtContext, versions []string, isDraft bool) (int, error) {
	changed := 0
	for i := range s.rows {
		for _, v := range versions {
			if s.rows[i].version == v && s.rows[i].isDraft != isDraft {
				s.rows[i].isDraft = isDraft
				changed++
			}
		}
	}
	return changed, nil
}

func (s *memoryEntryStore) DeleteDrafts(_ context.Context, _ sqlx.ExtContext, version string) (int, error) {
	kept := s.rows[:0]
	deleted := 0
	for _, r := range s.rows {
		if r.version == version && r.isDraft {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return deleted, nil
}

func (s *memoryEntryStore) CountByVersion(_ context.Context, _ sqlx.ExtContext, version, _ string) (models.VersionStatusCounts, error) {
	var counts models.VersionStatusCounts
	for _, r := range s.rows {
		if r.version != version {
			continue
		}
		counts.Total++
		if r.isDraft {
			counts.Draft++
		} else {
			counts.Published++
		}
	}
	return counts, nil
}

func (s *memoryEntryStore) ActiveVersion(_ context.Context, _ sqlx.ExtContext, _ string) (*string, error) {
	versions := s.publishedVersions()
	if len(versions) == 0 {
		return nil, nil
	}
	return &versions[0], nil
}

func (s *memoryEntryStore) AffectedClassGroups(_ context.Context, _ sqlx.ExtContext, versions []string) ([]models.ClassGroupTerm, error) {
	seen := map[string]struct{}{}
	var out []models.ClassGroupTerm
	for _, r := range s.rows {
		for _, v := range versions {
			if r.version != v {
				continue
			}
			if _, ok := seen[r.classGroup]; ok {
				continue
			}
			seen[r.classGroup] = struct{}{}
			out = append(out, models.ClassGroupTerm{ClassGroupID: r.classGroup, TermID: "term-1"})
		}
	}
	return out, nil
}

func (s *memoryEntryStore) ListVersions(context.Context, string, bool) ([]models.DraftVersionInfo, error) {
	return nil, nil
}

func (s *memoryEntryStore) CountGroupedBy(_ context.Context, version, _ string, dimension string) ([]models.GroupCount, error) {
	if dimension != "class_group" {
		return nil, nil
	}
	counts := map[string]int{}
	for _, r := range s.rows {
		if r.version == version {
			counts[r.classGroup]++
		}
	}
	var out []models.GroupCount
	for key, n := range counts {
		out = append(out, models.GroupCount{Key: key, Label: key, Count: n})
	}
	return out, nil
}

type rebuilderStub struct {
	rebuilt     []models.ClassGroupTerm
	invalidated []models.ClassGroupTerm
	err         error
}

func (s *rebuilderStub) Rebuild(_ context.Context, _ sqlx.ExtContext, targets []models.ClassGroupTerm) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.rebuilt = append(s.rebuilt, targets...)
	return len(targets), nil
}

func (s *rebuilderStub) Invalidate(_ context.Context, targets []models.ClassGroupTerm) {
	s.invalidated = append(s.invalidated, targets...)
}

type publisherStub struct {
	mu     sync.Mutex
	events []string
}

func (p *publisherStub) Publish(_ context.Context, event string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *publisherStub) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *publisherStub) Close() {}
