package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/daycal/internal/models"
	"github.com/Kerhoff/daycal/internal/repository"
)

const reminderColumns = `event_id, title, event_start, fire_at, lead_minutes, sound_profile, armed, created_at`

type reminderRepository struct {
	db *sql.DB
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *sql.DB) repository.ReminderRepository {
	return &reminderRepository{db: db}
}

func scanReminder(row scanner) (*models.ScheduledReminder, error) {
	var reminder models.ScheduledReminder
	var start, fireAt, created int64
	err := row.Scan(
		&reminder.EventID,
		&reminder.Title,
		&start,
		&fireAt,
		&reminder.LeadMinutes,
		&reminder.SoundProfile,
		&reminder.Armed,
		&created,
	)
	if err != nil {
		return nil, err
	}
	reminder.EventStart = fromMillis(start)
	reminder.FireAt = fromMillis(fireAt)
	reminder.CreatedAt = fromMillis(created)
	return &reminder, nil
}

// Save inserts the reminder or replaces the one stored for the same event.
// A replaced record keeps its original position in List.
func (r *reminderRepository) Save(ctx context.Context, reminder *models.ScheduledReminder) error {
	query := `
		INSERT INTO scheduled_reminders (` + reminderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO UPDATE
		SET title = excluded.title, event_start = excluded.event_start, fire_at = excluded.fire_at,
			lead_minutes = excluded.lead_minutes, sound_profile = excluded.sound_profile,
			armed = excluded.armed, created_at = excluded.created_at`

	_, err := r.db.ExecContext(ctx, query,
		reminder.EventID,
		reminder.Title,
		toMillis(reminder.EventStart),
		toMillis(reminder.FireAt),
		reminder.LeadMinutes,
		reminder.SoundProfile,
		reminder.Armed,
		toMillis(reminder.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save reminder: %w", err)
	}

	return nil
}

func (r *reminderRepository) Get(ctx context.Context, eventID string) (*models.ScheduledReminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM scheduled_reminders WHERE event_id = ?`

	reminder, err := scanReminder(r.db.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}

	return reminder, nil
}

func (r *reminderRepository) List(ctx context.Context) ([]*models.ScheduledReminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM scheduled_reminders ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*models.ScheduledReminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, reminder)
	}

	return reminders, rows.Err()
}

func (r *reminderRepository) Delete(ctx context.Context, eventID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_reminders WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return nil
}
