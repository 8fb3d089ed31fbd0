package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-engine/internal/models"
)

const roomColumns = "id, name, capacity, room_type, building, floor, department_id, school_id, is_active"

// RoomRepository reads rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns rooms ordered by building, floor, name and id.
func (r *RoomRepository) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, error) {
	var (
		args       []interface{}
		conditions = []string{"1=1"}
	)
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if filter.SchoolID != nil {
		conditions = append(conditions, fmt.Sprintf("(school_id = $%d OR school_id IS NULL)", len(args)+1))
		args = append(args, *filter.SchoolID)
	}

	query := fmt.Sprintf("SELECT %s FROM rooms WHERE %s ORDER BY building, floor, name, id", roomColumns, strings.Join(conditions, " AND "))
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// FindByID fetches a room; sql.ErrNoRows when missing.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	query := fmt.Sprintf("SELECT %s FROM rooms WHERE id = $1", roomColumns)
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}
