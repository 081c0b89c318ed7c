package taskstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Shaxina0930/vocalis-app/pkg/types"
)

// Schema is the SQL DDL for the tasks table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id          VARCHAR(50) PRIMARY KEY,
    title       VARCHAR(200) NOT NULL,
    task_date   DATE,
    task_time   TIME,
    description TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tasks_schedule ON tasks(task_date, task_time);
`

// selectColumns renders the optional date and time as text so that NULL maps
// to the empty string and no driver-specific temporal types leak out.
const selectColumns = `
	id, title,
	COALESCE(to_char(task_date, 'YYYY-MM-DD'), ''),
	COALESCE(to_char(task_time, 'HH24:MI'), ''),
	description`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. Tasks are listed by date,
// then time, with unscheduled tasks last and creation time as the tiebreak.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps db. Call [PostgresStore.Migrate] before use.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes [Schema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("taskstore: migrate: %w", err)
	}
	return nil
}

// Ping checks connectivity; it backs the readiness probe.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("taskstore: ping: %w", err)
	}
	return nil
}

// Create implements [Store.Create] as an upsert on id.
func (s *PostgresStore) Create(ctx context.Context, t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	const query = `
		INSERT INTO tasks (id, title, task_date, task_time, description)
		VALUES ($1, $2, $3::text::date, $4::text::time, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			task_date = EXCLUDED.task_date,
			task_time = EXCLUDED.task_time,
			description = EXCLUDED.description`

	date, clock := scheduleArgs(t)
	if _, err := s.db.Exec(ctx, query, t.ID, t.Title, date, clock, t.Description); err != nil {
		return fmt.Errorf("taskstore: create %q: %w", t.ID, err)
	}
	return nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id string) (Task, error) {
	query := `SELECT` + selectColumns + ` FROM tasks WHERE id = $1`

	var dateStr, timeStr string
	t := Task{}
	err := s.db.QueryRow(ctx, query, id).Scan(&t.ID, &t.Title, &dateStr, &timeStr, &t.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("taskstore: get %q: %w", id, err)
	}
	if err := applySchedule(&t, dateStr, timeStr); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Update implements [Store.Update].
func (s *PostgresStore) Update(ctx context.Context, t Task) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	const query = `
		UPDATE tasks SET
			title = $2,
			task_date = $3::text::date,
			task_time = $4::text::time,
			description = $5
		WHERE id = $1`

	date, clock := scheduleArgs(t)
	tag, err := s.db.Exec(ctx, query, t.ID, t.Title, date, clock, t.Description)
	if err != nil {
		return false, fmt.Errorf("taskstore: update %q: %w", t.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete implements [Store.Delete].
func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("taskstore: delete %q: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context) ([]Task, error) {
	query := `SELECT` + selectColumns + `
		FROM tasks
		ORDER BY task_date ASC NULLS LAST, task_time ASC NULLS LAST, created_at, id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("taskstore: list: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var dateStr, timeStr string
		t := Task{}
		if err := rows.Scan(&t.ID, &t.Title, &dateStr, &timeStr, &t.Description); err != nil {
			return nil, fmt.Errorf("taskstore: list scan: %w", err)
		}
		if err := applySchedule(&t, dateStr, timeStr); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("taskstore: list: %w", err)
	}
	return tasks, nil
}

// scheduleArgs returns the date and time parameters, nil when absent.
func scheduleArgs(t Task) (date, clock any) {
	if t.Date != nil {
		date = t.Date.String()
	}
	if t.Time != nil {
		clock = t.Time.String()
	}
	return date, clock
}

func applySchedule(t *Task, dateStr, timeStr string) error {
	if dateStr != "" {
		d, err := types.ParseDate(dateStr)
		if err != nil {
			return fmt.Errorf("taskstore: task %q: %w", t.ID, err)
		}
		t.Date = &d
	}
	if timeStr != "" {
		tod, err := types.ParseTimeOfDay(timeStr)
		if err != nil {
			return fmt.Errorf("taskstore: task %q: %w", t.ID, err)
		}
		t.Time = &tod
	}
	return nil
}
