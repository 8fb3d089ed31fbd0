package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// TimetableSettingsRepository stores per-term generation settings.
type TimetableSettingsRepository struct {
	db *sqlx.DB
}

// NewTimetableSettingsRepository constructs the repository.
func NewTimetableSettingsRepository(db *sqlx.DB) *TimetableSettingsRepository {
	return &TimetableSettingsRepository{db: db}
}

// Get returns the school-specific settings for a term, falling back to the
// term-wide row. sql.ErrNoRows when neither exists.
func (r *TimetableSettingsRepository) Get(ctx context.Context, termID string, schoolID *string) (*models.TimetableSettings, error) {
	const query = `SELECT id, term_id, school_id, working_days, day_start, day_end, slot_minutes, breaks, max_sessions_per_day
FROM timetable_settings
WHERE term_id = $1 AND (school_id = $2 OR school_id IS NULL)
ORDER BY school_id NULLS LAST
LIMIT 1`
	var settings models.TimetableSettings
	if err := r.db.GetContext(ctx, &settings, query, termID, schoolID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Upsert stores settings for (term, school), replacing an existing row in
// place. settings.ID is set to the id of the stored row.
func (r *TimetableSettingsRepository) Upsert(ctx context.Context, settings *models.TimetableSettings) error {
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	const query = `INSERT INTO timetable_settings (id, term_id, school_id, working_days, day_start, day_end, slot_minutes, breaks, max_sessions_per_day)
VALUES (:id, :term_id, :school_id, :working_days, :day_start, :day_end, :slot_minutes, :breaks, :max_sessions_per_day)
ON CONFLICT (term_id, (COALESCE(school_id, ''))) DO UPDATE SET
working_days = EXCLUDED.working_days, day_start = EXCLUDED.day_start, day_end = EXCLUDED.day_end,
slot_minutes = EXCLUDED.slot_minutes, breaks = EXCLUDED.breaks, max_sessions_per_day = EXCLUDED.max_sessions_per_day
RETURNING id`
	bound, args, err := sqlx.Named(query, settings)
	if err != nil {
		return fmt.Errorf("bind timetable settings: %w", err)
	}
	if err := r.db.QueryRowxContext(ctx, r.db.Rebind(bound), args...).Scan(&settings.ID); err != nil {
		return fmt.Errorf("upsert timetable settings: %w", err)
	}
	return nil
}
