package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// ClassGroupScheduleRepository stores materialised class group schedules.
type ClassGroupScheduleRepository struct {
	db *sqlx.DB
}

// NewClassGroupScheduleRepository constructs the repository.
func NewClassGroupScheduleRepository(db *sqlx.DB) *ClassGroupScheduleRepository {
	return &ClassGroupScheduleRepository{db: db}
}

func (r *ClassGroupScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Replace overwrites the schedule for the class group and term.
func (r *ClassGroupScheduleRepository) Replace(ctx context.Context, exec sqlx.ExtContext, schedule *models.ClassGroupSchedule) error {
	if schedule == nil {
		return fmt.Errorf("schedule payload is nil")
	}
	if schedule.ClassGroupID == "" || schedule.TermID == "" {
		return fmt.Errorf("class_group_id and term_id are required")
	}
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if len(schedule.Schedule) == 0 {
		schedule.Schedule = types.JSONText(`[]`)
	}
	schedule.LastUpdated = time.Now().UTC()

	const query = `INSERT INTO class_group_schedules (id, class_group_id, term_id, schedule, entry_count, last_updated)
VALUES (:id, :class_group_id, :term_id, :schedule, :entry_count, :last_updated)
ON CONFLICT (class_group_id, term_id) DO UPDATE SET schedule = EXCLUDED.schedule, entry_count = EXCLUDED.entry_count, last_updated = EXCLUDED.last_updated`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, schedule); err != nil {
		return fmt.Errorf("replace class group schedule: %w", err)
	}
	return nil
}

// Get fetches the schedule; sql.ErrNoRows when it has never been built.
func (r *ClassGroupScheduleRepository) Get(ctx context.Context, classGroupID, termID string) (*models.ClassGroupSchedule, error) {
	const query = `SELECT id, class_group_id, term_id, schedule, entry_count, last_updated
FROM class_group_schedules WHERE class_group_id = $1 AND term_id = $2`
	var schedule models.ClassGroupSchedule
	if err := r.db.GetContext(ctx, &schedule, query, classGroupID, termID); err != nil {
		return nil, err
	}
	return &schedule, nil
}
