package store

import (
	"database/sql"
	"fmt"

	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/points"
)

// TaskStore owns task definitions. Tasks are never deleted because completed
// history joins through to tasks.points for the earned total.
type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, family_id, title, points, max_per_day, frequency, created_at, updated_at`

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	err := scanner.Scan(&t.ID, &t.FamilyID, &t.Title, &t.Points, &t.MaxPerDay, &t.Frequency, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func validateTask(title string, pts, maxPerDay int, frequency string) error {
	if title == "" {
		return &points.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if pts <= 0 {
		return &points.ValidationError{Field: "points", Reason: "must be positive"}
	}
	if maxPerDay <= 0 {
		return &points.ValidationError{Field: "max_per_day", Reason: "must be positive"}
	}
	switch frequency {
	case model.FrequencyOnce, model.FrequencyDaily, model.FrequencyWeekly:
	default:
		return &points.ValidationError{Field: "frequency", Reason: "must be once, daily or weekly"}
	}
	return nil
}

func (s *TaskStore) Create(familyID int64, title string, pts, maxPerDay int, frequency string) (*model.Task, error) {
	if err := validateTask(title, pts, maxPerDay, frequency); err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`INSERT INTO tasks (family_id, title, points, max_per_day, frequency) VALUES (?, ?, ?, ?, ?)`,
		familyID, title, pts, maxPerDay, frequency,
	)
	if err != nil {
		return nil, lockErr("insert task", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(id)
}

func (s *TaskStore) Get(id int64) (*model.Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) ListByFamily(familyID int64) ([]model.Task, error) {
	rows, err := s.db.Query(`SELECT `+taskCols+` FROM tasks WHERE family_id = ? ORDER BY title`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update changes the task definition. Completions recorded before the change
// keep their original value only through the join at read time; repricing a
// task reprices its history, which is why admin UIs warn before editing points.
func (s *TaskStore) Update(id int64, title string, pts, maxPerDay int, frequency string) (*model.Task, error) {
	if err := validateTask(title, pts, maxPerDay, frequency); err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`UPDATE tasks SET title = ?, points = ?, max_per_day = ?, frequency = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, pts, maxPerDay, frequency, id,
	)
	if err != nil {
		return nil, lockErr("update task", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("task %d: %w", id, points.ErrNotFound)
	}
	return s.Get(id)
}
