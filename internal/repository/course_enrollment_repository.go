package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/timetable-engine/internal/models"
)

const courseEnrollmentSelect = `SELECT ce.id, ce.term_id, ce.course_id, c.code AS course_code, c.name AS course_name,
ce.trainer_id, t.full_name AS trainer_name, ce.class_group_id, cg.name AS class_group_name, cg.size AS class_group_size,
cg.department_id, cg.school_id, ce.sessions_per_week, ce.session_minutes, c.required_room_type
FROM course_enrollments ce
JOIN courses c ON c.id = ce.course_id
JOIN trainers t ON t.id = ce.trainer_id
JOIN class_groups cg ON cg.id = ce.class_group_id`

// CourseEnrollmentRepository reads the enrollments the scheduler places.
type CourseEnrollmentRepository struct {
	db *sqlx.DB
}

// NewCourseEnrollmentRepository constructs the repository.
func NewCourseEnrollmentRepository(db *sqlx.DB) *CourseEnrollmentRepository {
	return &CourseEnrollmentRepository{db: db}
}

// List returns enrollments matching the filter in a stable order.
func (r *CourseEnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.CourseEnrollment, error) {
	var (
		args       []interface{}
		conditions = []string{"ce.active = TRUE"}
	)
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("ce.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if len(filter.ClassGroupIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("ce.class_group_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.ClassGroupIDs))
	}
	if len(filter.DepartmentIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("cg.department_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.DepartmentIDs))
	}
	if filter.SchoolID != nil {
		conditions = append(conditions, fmt.Sprintf("cg.school_id = $%d", len(args)+1))
		args = append(args, *filter.SchoolID)
	}
	if filter.TrainerID != "" {
		conditions = append(conditions, fmt.Sprintf("ce.trainer_id = $%d", len(args)+1))
		args = append(args, filter.TrainerID)
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY c.code, cg.name, ce.trainer_id, ce.id", courseEnrollmentSelect, strings.Join(conditions, " AND "))
	var enrollments []models.CourseEnrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByID fetches one enrollment; sql.ErrNoRows when missing.
func (r *CourseEnrollmentRepository) FindByID(ctx context.Context, id string) (*models.CourseEnrollment, error) {
	query := courseEnrollmentSelect + " WHERE ce.id = $1"
	var enrollment models.CourseEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}
