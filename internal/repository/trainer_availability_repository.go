package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// TrainerAvailabilityRepository stores declared trainer availability windows.
type TrainerAvailabilityRepository struct {
	db *sqlx.DB
}

// NewTrainerAvailabilityRepository constructs the repository.
func NewTrainerAvailabilityRepository(db *sqlx.DB) *TrainerAvailabilityRepository {
	return &TrainerAvailabilityRepository{db: db}
}

// ListByTrainers returns the windows of the given trainers.
func (r *TrainerAvailabilityRepository) ListByTrainers(ctx context.Context, trainerIDs []string) ([]models.TrainerAvailability, error) {
	if len(trainerIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, trainer_id, day_of_week, start_time, end_time
FROM trainer_availabilities WHERE trainer_id = ANY($1) ORDER BY trainer_id, day_of_week, start_time`
	var windows []models.TrainerAvailability
	if err := r.db.SelectContext(ctx, &windows, query, pq.Array(trainerIDs)); err != nil {
		return nil, fmt.Errorf("list trainer availability: %w", err)
	}
	return windows, nil
}

// ListByTrainer returns one trainer's windows.
func (r *TrainerAvailabilityRepository) ListByTrainer(ctx context.Context, trainerID string) ([]models.TrainerAvailability, error) {
	return r.ListByTrainers(ctx, []string{trainerID})
}

// Create inserts one window, assigning an id when missing.
func (r *TrainerAvailabilityRepository) Create(ctx context.Context, window *models.TrainerAvailability) error {
	if window == nil {
		return fmt.Errorf("availability payload is nil")
	}
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	const query = `INSERT INTO trainer_availabilities (id, trainer_id, day_of_week, start_time, end_time)
VALUES (:id, :trainer_id, :day_of_week, :start_time, :end_time)`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("insert trainer availability: %w", err)
	}
	return nil
}

// BulkCreate stores every window in its own statement. errs[i] is nil when
// windows[i] was stored; one failure never blocks the others.
func (r *TrainerAvailabilityRepository) BulkCreate(ctx context.Context, windows []*models.TrainerAvailability) []error {
	errs := make([]error, len(windows))
	for i, window := range windows {
		errs[i] = r.Create(ctx, window)
	}
	return errs
}
