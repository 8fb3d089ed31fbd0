package service

import (
	"context"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/notify"
)

// MessageNoEntries is reported when a lifecycle call targets an unknown version.
const MessageNoEntries = "no entries found for draft version"

// MessageNoDraftEntries is reported when a discard finds only published rows.
const MessageNoDraftEntries = "no draft entries found for draft version"

var summaryDimensionNames = []string{"department", "class_group", "day", "trainer", "room"}

type lifecycleEntryStore interface {
	LockPublish(ctx context.Context, exec sqlx.ExtContext) error
	LockVersion(ctx context.Context, exec sqlx.ExtContext, version string) error
	PublishedVersions(ctx context.Context, exec sqlx.ExtContext, exclude string) ([]string, error)
	SetDraftState(ctx context.Context, exec sqlx.ExtContext, versions []string, isDraft bool) (int, error)
	DeleteDrafts(ctx context.Context, exec sqlx.ExtContext, version string) (int, error)
	CountByVersion(ctx context.Context, exec sqlx.ExtContext, version, termID string) (models.VersionStatusCounts, error)
	ActiveVersion(ctx context.Context, exec sqlx.ExtContext, termID string) (*string, error)
	AffectedClassGroups(ctx context.Context, exec sqlx.ExtContext, versions []string) ([]models.ClassGroupTerm, error)
	ListVersions(ctx context.Context, termID string, includePublished bool) ([]models.DraftVersionInfo, error)
	CountGroupedBy(ctx context.Context, version, termID, dimension string) ([]models.GroupCount, error)
}

type scheduleRebuilder interface {
	Rebuild(ctx context.Context, exec sqlx.ExtContext, targets []models.ClassGroupTerm) (int, error)
	Invalidate(ctx context.Context, targets []models.ClassGroupTerm)
}

// LifecycleService owns draft/publish transitions. At most one version is
// published at a time. Every transition runs in one transaction holding the
// version's advisory lock.
type LifecycleService struct {
	entries   lifecycleEntryStore
	schedules scheduleRebuilder
	tx        txProvider
	cache     *CacheService
	notifier  notify.Publisher
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewLifecycleService constructs the lifecycle manager.
func NewLifecycleService(entries lifecycleEntryStore, schedules scheduleRebuilder, tx txProvider, cache *CacheService, notifier notify.Publisher, metrics *MetricsService, logger *zap.Logger) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NopPublisher{}
	}
	return &LifecycleService{
		entries:   entries,
		schedules: schedules,
		tx:        tx,
		cache:     cache,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
	}
}

// Publish makes version the single active version. Other published
// versions are flipped back to draft in the same transaction and every
// touched class group schedule is rebuilt before commit.
func (s *LifecycleService) Publish(ctx context.Context, version string) (result *dto.PublishResult, err error) {
	defer func() { s.metrics.RecordLifecycle("publish", err) }()

	version, err = normaliseVersion(version)
	if err != nil {
		return nil, err
	}
	result = &dto.PublishResult{DraftVersion: version, PreviouslyActiveVersions: []string{}}

	var affected []models.ClassGroupTerm
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.LockPublish(ctx, tx); err != nil {
			return err
		}
		if err := s.entries.LockVersion(ctx, tx, version); err != nil {
			return err
		}
		counts, err := s.entries.CountByVersion(ctx, tx, version, "")
		if err != nil {
			return err
		}
		if counts.Total == 0 {
			result.Message = MessageNoEntries
			return nil
		}

		previous, err := s.entries.PublishedVersions(ctx, tx, version)
		if err != nil {
			return err
		}
		// Demoted versions are locked too, in a fixed order.
		sort.Strings(previous)
		for _, prev := range previous {
			if err := s.entries.LockVersion(ctx, tx, prev); err != nil {
				return err
			}
		}
		affected, err = s.entries.AffectedClassGroups(ctx, tx, append([]string{version}, previous...))
		if err != nil {
			return err
		}
		reverted, err := s.entries.SetDraftState(ctx, tx, previous, true)
		if err != nil {
			return err
		}
		flipped, err := s.entries.SetDraftState(ctx, tx, []string{version}, false)
		if err != nil {
			return err
		}
		if reverted > 0 || flipped > 0 {
			rebuilt, err := s.schedules.Rebuild(ctx, tx, affected)
			if err != nil {
				return err
			}
			result.RebuiltSchedules = rebuilt
		} else {
			affected = nil
		}

		result.PublishedCount = counts.Total
		result.PreviouslyActiveCount = reverted
		if previous != nil {
			result.PreviouslyActiveVersions = previous
		}
		result.IsActive = true
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish draft timetable")
	}
	if result.PublishedCount == 0 {
		return result, nil
	}

	s.afterCommit(ctx, affected, append([]string{version}, result.PreviouslyActiveVersions...))
	s.notify(ctx, notify.EventPublished, result)
	s.logger.Sugar().Infow("draft timetable published",
		"draft_version", version,
		"published", result.PublishedCount,
		"previously_active", result.PreviouslyActiveCount,
		"previous_versions", result.PreviouslyActiveVersions,
		"rebuilt_schedules", result.RebuiltSchedules,
	)
	return result, nil
}

// Discard deletes the draft rows of version. Published rows sharing the
// version are never touched.
func (s *LifecycleService) Discard(ctx context.Context, version string) (result *dto.DiscardResult, err error) {
	defer func() { s.metrics.RecordLifecycle("discard", err) }()

	version, err = normaliseVersion(version)
	if err != nil {
		return nil, err
	}
	result = &dto.DiscardResult{DraftVersion: version, PostStatus: dto.VersionStatus{DraftVersion: version}}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.LockVersion(ctx, tx, version); err != nil {
			return err
		}
		before, err := s.entries.CountByVersion(ctx, tx, version, "")
		if err != nil {
			return err
		}
		if before.Total == 0 {
			result.Message = MessageNoEntries
			return nil
		}
		if before.Draft == 0 {
			active, err := s.entries.ActiveVersion(ctx, tx, "")
			if err != nil {
				return err
			}
			result.Message = MessageNoDraftEntries
			result.PublishedEntriesRemaining = before.Published
			result.IsActive = before.Published > 0
			result.PostStatus = versionStatus(version, before, active)
			return nil
		}
		deleted, err := s.entries.DeleteDrafts(ctx, tx, version)
		if err != nil {
			return err
		}
		after, err := s.entries.CountByVersion(ctx, tx, version, "")
		if err != nil {
			return err
		}
		active, err := s.entries.ActiveVersion(ctx, tx, "")
		if err != nil {
			return err
		}
		result.DiscardedCount = deleted
		result.PublishedEntriesRemaining = after.Published
		result.IsActive = after.Published > 0
		result.PostStatus = versionStatus(version, after, active)
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard draft timetable")
	}
	if result.DiscardedCount == 0 {
		return result, nil
	}

	s.afterCommit(ctx, nil, []string{version})
	s.notify(ctx, notify.EventDiscarded, result)
	s.logger.Sugar().Infow("draft timetable discarded",
		"draft_version", version,
		"discarded", result.DiscardedCount,
		"published_remaining", result.PublishedEntriesRemaining,
	)
	return result, nil
}

// Revert flips the published rows of version back to draft.
func (s *LifecycleService) Revert(ctx context.Context, version string) (result *dto.RevertResult, err error) {
	defer func() { s.metrics.RecordLifecycle("revert", err) }()

	version, err = normaliseVersion(version)
	if err != nil {
		return nil, err
	}
	result = &dto.RevertResult{DraftVersion: version}

	var affected []models.ClassGroupTerm
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.entries.LockPublish(ctx, tx); err != nil {
			return err
		}
		if err := s.entries.LockVersion(ctx, tx, version); err != nil {
			return err
		}
		counts, err := s.entries.CountByVersion(ctx, tx, version, "")
		if err != nil {
			return err
		}
		if counts.Total == 0 {
			result.Message = MessageNoEntries
			return nil
		}
		if counts.Published == 0 {
			return nil
		}
		affected, err = s.entries.AffectedClassGroups(ctx, tx, []string{version})
		if err != nil {
			return err
		}
		updated, err := s.entries.SetDraftState(ctx, tx, []string{version}, true)
		if err != nil {
			return err
		}
		rebuilt, err := s.schedules.Rebuild(ctx, tx, affected)
		if err != nil {
			return err
		}
		result.UpdatedCount = updated
		result.RebuiltSchedules = rebuilt
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revert timetable to draft")
	}
	if result.UpdatedCount == 0 {
		return result, nil
	}

	s.afterCommit(ctx, affected, []string{version})
	s.notify(ctx, notify.EventReverted, result)
	s.logger.Sugar().Infow("timetable reverted to draft",
		"draft_version", version,
		"updated", result.UpdatedCount,
		"rebuilt_schedules", result.RebuiltSchedules,
	)
	return result, nil
}

// Status aggregates a version's counts. Unknown versions report zeros.
func (s *LifecycleService) Status(ctx context.Context, version, termID string) (*dto.VersionStatus, error) {
	version, err := normaliseVersion(version)
	if err != nil {
		return nil, err
	}
	counts, err := s.entries.CountByVersion(ctx, nil, version, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft version status")
	}
	active, err := s.entries.ActiveVersion(ctx, nil, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active version")
	}
	status := versionStatus(version, counts, active)
	return &status, nil
}

// ListDraftVersions lists versions newest first.
func (s *LifecycleService) ListDraftVersions(ctx context.Context, termID string, includePublished bool) ([]models.DraftVersionInfo, error) {
	versions, err := s.entries.ListVersions(ctx, termID, includePublished)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list draft versions")
	}
	if versions == nil {
		versions = []models.DraftVersionInfo{}
	}
	return versions, nil
}

// DraftSummary breaks a version down by department, class group, day,
// trainer and room.
func (s *LifecycleService) DraftSummary(ctx context.Context, version, termID string) (*dto.DraftSummary, error) {
	version, err := normaliseVersion(version)
	if err != nil {
		return nil, err
	}
	key := summaryCacheKey(version, termID)
	var cached dto.DraftSummary
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	counts, err := s.entries.CountByVersion(ctx, nil, version, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise draft version")
	}
	if counts.Total == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, MessageNoEntries)
	}

	summary := &dto.DraftSummary{DraftVersion: version, TotalEntries: counts.Total}
	for _, dimension := range summaryDimensionNames {
		groups, err := s.entries.CountGroupedBy(ctx, version, termID, dimension)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise draft version")
		}
		if groups == nil {
			groups = []models.GroupCount{}
		}
		switch dimension {
		case "department":
			summary.ByDepartment = groups
		case "class_group":
			summary.ByClassGroup = groups
		case "day":
			summary.ByDay = groups
		case "trainer":
			summary.ByTrainer = groups
		case "room":
			summary.ByRoom = groups
		}
	}
	_ = s.cache.Set(ctx, key, summary, 0)
	return summary, nil
}

func (s *LifecycleService) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *LifecycleService) afterCommit(ctx context.Context, affected []models.ClassGroupTerm, versions []string) {
	if len(affected) > 0 {
		s.schedules.Invalidate(ctx, affected)
	}
	for _, v := range versions {
		_ = s.cache.Invalidate(ctx, summaryCachePattern(v))
	}
}

func (s *LifecycleService) notify(ctx context.Context, event string, payload interface{}) {
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		s.logger.Sugar().Warnw("timetable event not delivered", "event", event, "error", err)
	}
}

func normaliseVersion(version string) (string, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "draft_version is required")
	}
	return version, nil
}

func versionStatus(version string, counts models.VersionStatusCounts, active *string) dto.VersionStatus {
	return dto.VersionStatus{
		DraftVersion:     version,
		TotalEntries:     counts.Total,
		DraftEntries:     counts.Draft,
		PublishedEntries: counts.Published,
		IsActive:         counts.Published > 0,
		ActiveVersion:    active,
	}
}
