package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// publishLockKey serialises publish transitions across all versions.
const publishLockKey int64 = 7_240_001

// ErrBatchAborted signals the surrounding transaction can no longer be used.
var ErrBatchAborted = errors.New("entry batch aborted")

const entryDetailSelect = `SELECT te.id, te.course_enrollment_id, te.day_of_week, te.start_time, te.end_time, te.room_id,
te.is_draft, te.draft_version, te.created_at, te.updated_at,
ce.term_id, ce.course_id, c.code AS course_code, c.name AS course_name,
ce.trainer_id, t.full_name AS trainer_name, ce.class_group_id, cg.name AS class_group_name,
r.name AS room_name, cg.department_id, d.name AS department_name
FROM timetable_entries te
JOIN course_enrollments ce ON ce.id = te.course_enrollment_id
JOIN courses c ON c.id = ce.course_id
JOIN trainers t ON t.id = ce.trainer_id
JOIN class_groups cg ON cg.id = ce.class_group_id
JOIN rooms r ON r.id = te.room_id
LEFT JOIN departments d ON d.id = cg.department_id`

// TimetableEntryRepository persists timetable entries and their version state.
type TimetableEntryRepository struct {
	db *sqlx.DB
}

// NewTimetableEntryRepository constructs the repository.
func NewTimetableEntryRepository(db *sqlx.DB) *TimetableEntryRepository {
	return &TimetableEntryRepository{db: db}
}

func (r *TimetableEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindConflicting returns published entries on the query day that overlap the
// candidate range and share at least one of its axes.
func (r *TimetableEntryRepository) FindConflicting(ctx context.Context, q models.ConflictQuery) ([]models.TimetableEntryDetail, error) {
	args := []interface{}{q.DayOfWeek, q.StartTime, q.EndTime}
	conditions := []string{"te.is_draft = FALSE", "te.day_of_week = $1", "te.start_time < $3", "te.end_time > $2"}

	var axes []string
	if q.RoomID != "" {
		args = append(args, q.RoomID)
		axes = append(axes, fmt.Sprintf("te.room_id = $%d", len(args)))
	}
	if q.TrainerID != "" {
		args = append(args, q.TrainerID)
		axes = append(axes, fmt.Sprintf("ce.trainer_id = $%d", len(args)))
	}
	if q.ClassGroupID != "" {
		args = append(args, q.ClassGroupID)
		axes = append(axes, fmt.Sprintf("ce.class_group_id = $%d", len(args)))
	}
	if len(axes) == 0 {
		return nil, nil
	}
	conditions = append(conditions, "("+strings.Join(axes, " OR ")+")")
	if q.ExcludeEntryID != "" {
		args = append(args, q.ExcludeEntryID)
		conditions = append(conditions, fmt.Sprintf("te.id <> $%d", len(args)))
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY te.start_time, te.id", entryDetailSelect, strings.Join(conditions, " AND "))
	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("find conflicting entries: %w", err)
	}
	return entries, nil
}

// List returns entries matching the filter ordered by day and start time.
func (r *TimetableEntryRepository) List(ctx context.Context, exec sqlx.ExtContext, filter models.EntryFilter) ([]models.TimetableEntryDetail, error) {
	if filter.MatchesNothing() {
		return []models.TimetableEntryDetail{}, nil
	}
	var (
		args       []interface{}
		conditions = []string{"1=1"}
	)
	add := func(expr string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}
	if filter.TermID != "" {
		add("ce.term_id = $%d", filter.TermID)
	}
	if filter.DraftVersion != "" {
		add("te.draft_version = $%d", filter.DraftVersion)
	}
	if filter.PublishedOnly {
		conditions = append(conditions, "te.is_draft = FALSE")
	}
	if filter.DayOfWeek != "" {
		add("te.day_of_week = $%d", filter.DayOfWeek)
	}
	if filter.RoomID != "" {
		add("te.room_id = $%d", filter.RoomID)
	}
	if len(filter.ClassGroupIDs) > 0 {
		add("ce.class_group_id = ANY($%d)", pq.Array(filter.ClassGroupIDs))
	}
	if len(filter.TrainerIDs) > 0 {
		add("ce.trainer_id = ANY($%d)", pq.Array(filter.TrainerIDs))
	}
	if len(filter.DepartmentIDs) > 0 {
		add("cg.department_id = ANY($%d)", pq.Array(filter.DepartmentIDs))
	}

	query := fmt.Sprintf(`%s WHERE %s
ORDER BY CASE te.day_of_week WHEN 'monday' THEN 1 WHEN 'tuesday' THEN 2 WHEN 'wednesday' THEN 3 WHEN 'thursday' THEN 4 WHEN 'friday' THEN 5 WHEN 'saturday' THEN 6 ELSE 7 END, te.start_time, te.id`,
		entryDetailSelect, strings.Join(conditions, " AND "))
	var entries []models.TimetableEntryDetail
	if err := sqlx.SelectContext(ctx, r.exec(exec), &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// InsertInSavepoint inserts one entry inside tx guarded by a savepoint so a
// failing row does not poison the batch. ErrBatchAborted is returned when
// the savepoint itself cannot be managed.
func (r *TimetableEntryRepository) InsertInSavepoint(ctx context.Context, tx sqlx.ExtContext, entry *models.TimetableEntry) error {
	if entry == nil {
		return fmt.Errorf("entry payload is nil")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, "SAVEPOINT timetable_entry"); err != nil {
		return fmt.Errorf("%w: savepoint: %v", ErrBatchAborted, err)
	}

	const insertQuery = `INSERT INTO timetable_entries (id, course_enrollment_id, day_of_week, start_time, end_time, room_id, is_draft, draft_version, created_at, updated_at)
VALUES (:id, :course_enrollment_id, :day_of_week, :start_time, :end_time, :room_id, :is_draft, :draft_version, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, insertQuery, entry); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT timetable_entry"); rbErr != nil {
			return fmt.Errorf("%w: rollback savepoint: %v (insert: %v)", ErrBatchAborted, rbErr, err)
		}
		return fmt.Errorf("insert timetable entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT timetable_entry"); err != nil {
		return fmt.Errorf("%w: release savepoint: %v", ErrBatchAborted, err)
	}
	return nil
}

// LockVersion takes a transaction-scoped advisory lock for one draft version.
func (r *TimetableEntryRepository) LockVersion(ctx context.Context, exec sqlx.ExtContext, version string) error {
	if _, err := r.exec(exec).ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", version); err != nil {
		return fmt.Errorf("lock draft version %s: %w", version, err)
	}
	return nil
}

// LockPublish takes the global publish lock for the current transaction.
func (r *TimetableEntryRepository) LockPublish(ctx context.Context, exec sqlx.ExtContext) error {
	if _, err := r.exec(exec).ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", publishLockKey); err != nil {
		return fmt.Errorf("lock publish: %w", err)
	}
	return nil
}

// PublishedVersions lists versions with published entries other than exclude.
func (r *TimetableEntryRepository) PublishedVersions(ctx context.Context, exec sqlx.ExtContext, exclude string) ([]string, error) {
	const query = `SELECT DISTINCT draft_version FROM timetable_entries WHERE is_draft = FALSE AND draft_version <> $1 ORDER BY draft_version`
	var versions []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &versions, query, exclude); err != nil {
		return nil, fmt.Errorf("list published versions: %w", err)
	}
	return versions, nil
}

// SetDraftState flips entries of the given versions to isDraft and returns
// how many rows actually changed.
func (r *TimetableEntryRepository) SetDraftState(ctx context.Context, exec sqlx.ExtContext, versions []string, isDraft bool) (int, error) {
	if len(versions) == 0 {
		return 0, nil
	}
	const query = `UPDATE timetable_entries SET is_draft = $1, updated_at = NOW() WHERE draft_version = ANY($2) AND is_draft <> $1`
	res, err := r.exec(exec).ExecContext(ctx, query, isDraft, pq.Array(versions))
	if err != nil {
		return 0, fmt.Errorf("update draft state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update draft state rows: %w", err)
	}
	return int(affected), nil
}

// DeleteDrafts removes the draft rows of a version; published rows stay.
func (r *TimetableEntryRepository) DeleteDrafts(ctx context.Context, exec sqlx.ExtContext, version string) (int, error) {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM timetable_entries WHERE draft_version = $1 AND is_draft = TRUE`, version)
	if err != nil {
		return 0, fmt.Errorf("delete draft entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete draft entries rows: %w", err)
	}
	return int(affected), nil
}

// CountByVersion aggregates entry counts for a version, optionally within a term.
func (r *TimetableEntryRepository) CountByVersion(ctx context.Context, exec sqlx.ExtContext, version, termID string) (models.VersionStatusCounts, error) {
	query := `SELECT COUNT(*) AS total,
COUNT(*) FILTER (WHERE te.is_draft) AS draft,
COUNT(*) FILTER (WHERE NOT te.is_draft) AS published
FROM timetable_entries te`
	args := []interface{}{version}
	if termID != "" {
		query += ` JOIN course_enrollments ce ON ce.id = te.course_enrollment_id WHERE te.draft_version = $1 AND ce.term_id = $2`
		args = append(args, termID)
	} else {
		query += ` WHERE te.draft_version = $1`
	}

	var counts models.VersionStatusCounts
	if err := sqlx.GetContext(ctx, r.exec(exec), &counts, query, args...); err != nil {
		return models.VersionStatusCounts{}, fmt.Errorf("count version entries: %w", err)
	}
	return counts, nil
}

// ActiveVersion returns the version currently holding published entries.
func (r *TimetableEntryRepository) ActiveVersion(ctx context.Context, exec sqlx.ExtContext, termID string) (*string, error) {
	query := `SELECT te.draft_version FROM timetable_entries te`
	var args []interface{}
	if termID != "" {
		query += ` JOIN course_enrollments ce ON ce.id = te.course_enrollment_id WHERE te.is_draft = FALSE AND ce.term_id = $1`
		args = append(args, termID)
	} else {
		query += ` WHERE te.is_draft = FALSE`
	}
	query += ` ORDER BY te.updated_at DESC, te.draft_version LIMIT 1`

	var version string
	if err := sqlx.GetContext(ctx, r.exec(exec), &version, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active version: %w", err)
	}
	return &version, nil
}

// AffectedClassGroups lists the class group and term pairs touched by versions.
func (r *TimetableEntryRepository) AffectedClassGroups(ctx context.Context, exec sqlx.ExtContext, versions []string) ([]models.ClassGroupTerm, error) {
	if len(versions) == 0 {
		return nil, nil
	}
	const query = `SELECT DISTINCT ce.class_group_id, ce.term_id
FROM timetable_entries te JOIN course_enrollments ce ON ce.id = te.course_enrollment_id
WHERE te.draft_version = ANY($1)
ORDER BY ce.class_group_id, ce.term_id`
	var pairs []models.ClassGroupTerm
	if err := sqlx.SelectContext(ctx, r.exec(exec), &pairs, query, pq.Array(versions)); err != nil {
		return nil, fmt.Errorf("list affected class groups: %w", err)
	}
	return pairs, nil
}

// ListVersions summarises versions newest first. When includePublished is
// false, only versions that still have draft rows are returned.
func (r *TimetableEntryRepository) ListVersions(ctx context.Context, termID string, includePublished bool) ([]models.DraftVersionInfo, error) {
	var (
		args       []interface{}
		conditions = []string{"1=1"}
	)
	if termID != "" {
		args = append(args, termID)
		conditions = append(conditions, fmt.Sprintf("ce.term_id = $%d", len(args)))
	}
	having := ""
	if !includePublished {
		having = " HAVING COUNT(*) FILTER (WHERE te.is_draft) > 0"
	}

	query := fmt.Sprintf(`SELECT te.draft_version,
COUNT(*) AS total_entries,
COUNT(*) FILTER (WHERE te.is_draft) AS draft_entries,
COUNT(*) FILTER (WHERE NOT te.is_draft) AS published_entries,
MIN(te.created_at) AS created_at,
ARRAY_REMOVE(ARRAY_AGG(DISTINCT d.name), NULL) AS departments
FROM timetable_entries te
JOIN course_enrollments ce ON ce.id = te.course_enrollment_id
JOIN class_groups cg ON cg.id = ce.class_group_id
LEFT JOIN departments d ON d.id = cg.department_id
WHERE %s
GROUP BY te.draft_version%s
ORDER BY created_at DESC, te.draft_version`, strings.Join(conditions, " AND "), having)

	var versions []models.DraftVersionInfo
	if err := r.db.SelectContext(ctx, &versions, query, args...); err != nil {
		return nil, fmt.Errorf("list draft versions: %w", err)
	}
	return versions, nil
}

// summaryDimensions maps a grouping name to its key and label expressions.
var summaryDimensions = map[string][2]string{
	"department":  {"COALESCE(cg.department_id, '')", "COALESCE(d.name, 'Unassigned')"},
	"class_group": {"ce.class_group_id", "cg.name"},
	"day":         {"te.day_of_week", "te.day_of_week"},
	"trainer":     {"ce.trainer_id", "t.full_name"},
	"room":        {"te.room_id", "r.name"},
}

// CountGroupedBy counts a version's entries per dimension: department,
// class_group, day, trainer or room.
func (r *TimetableEntryRepository) CountGroupedBy(ctx context.Context, version, termID, dimension string) ([]models.GroupCount, error) {
	exprs, ok := summaryDimensions[dimension]
	if !ok {
		return nil, fmt.Errorf("unknown summary dimension %q", dimension)
	}
	args := []interface{}{version}
	where := "te.draft_version = $1"
	if termID != "" {
		args = append(args, termID)
		where += " AND ce.term_id = $2"
	}

	query := fmt.Sprintf(`SELECT %s AS key, %s AS label, COUNT(*) AS count
FROM timetable_entries te
JOIN course_enrollments ce ON ce.id = te.course_enrollment_id
JOIN class_groups cg ON cg.id = ce.class_group_id
JOIN trainers t ON t.id = ce.trainer_id
JOIN rooms r ON r.id = te.room_id
LEFT JOIN departments d ON d.id = cg.department_id
WHERE %s
GROUP BY 1, 2
ORDER BY count DESC, label`, exprs[0], exprs[1], where)

	var counts []models.GroupCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count entries by %s: %w", dimension, err)
	}
	return counts, nil
}
