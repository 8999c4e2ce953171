package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/daycal/internal/models"
	"github.com/Kerhoff/daycal/internal/repository"
)

const eventColumns = `id, title, description, location, start_date, end_date, is_all_day, recurrence,
		notification_lead_minutes, color, calendar_id, created_at, updated_at`

type eventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB) repository.EventRepository {
	return &eventRepository{db: db}
}

func scanEvent(row scanner) (*models.Event, error) {
	var event models.Event
	var start, end, created, updated int64
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Location,
		&start,
		&end,
		&event.IsAllDay,
		&event.Recurrence,
		&event.NotificationLeadMinutes,
		&event.Color,
		&event.CalendarID,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	event.StartDate = fromMillis(start)
	event.EndDate = fromMillis(end)
	event.CreatedAt = fromMillis(created)
	event.UpdatedAt = fromMillis(updated)
	return &event, nil
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) (*models.Event, error) {
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().Truncate(time.Millisecond)
	event.CreatedAt = now
	event.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Title,
		event.Description,
		event.Location,
		toMillis(event.StartDate),
		toMillis(event.EndDate),
		event.IsAllDay,
		string(event.Recurrence),
		event.NotificationLeadMinutes,
		event.Color,
		event.CalendarID,
		toMillis(event.CreatedAt),
		toMillis(event.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return event, nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

func (r *eventRepository) List(ctx context.Context, filters repository.EventFilters) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`
	args := []interface{}{}

	if filters.From != nil {
		query += " AND (end_date >= ? OR recurrence <> 'none')"
		args = append(args, toMillis(*filters.From))
	}
	if filters.To != nil {
		query += " AND start_date <= ?"
		args = append(args, toMillis(*filters.To))
	}
	if filters.Title != "" {
		query += " AND title LIKE ?"
		args = append(args, "%"+filters.Title+"%")
	}

	query += " ORDER BY start_date ASC, id ASC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

func (r *eventRepository) Update(ctx context.Context, event *models.Event) (*models.Event, error) {
	query := `
		UPDATE events
		SET title = ?, description = ?, location = ?, start_date = ?, end_date = ?, is_all_day = ?,
			recurrence = ?, notification_lead_minutes = ?, color = ?, calendar_id = ?, updated_at = ?
		WHERE id = ?
		RETURNING created_at`

	event.UpdatedAt = time.Now().Truncate(time.Millisecond)

	var created int64
	err := r.db.QueryRowContext(ctx, query,
		event.Title,
		event.Description,
		event.Location,
		toMillis(event.StartDate),
		toMillis(event.EndDate),
		event.IsAllDay,
		string(event.Recurrence),
		event.NotificationLeadMinutes,
		event.Color,
		event.CalendarID,
		toMillis(event.UpdatedAt),
		event.ID,
	).Scan(&created)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	event.CreatedAt = fromMillis(created)

	return event, nil
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("event with ID %s not found", id)
	}

	return nil
}
