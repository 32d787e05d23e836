package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"farmsavvy/internal/domain"
)

const taskColumns = `id,farm_id,title,description,category,priority,status,due_date,notes,completed_at,completed_by,created_by,created_at,updated_at`

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.FarmID, t.Title, t.Description, t.Category, t.Priority, t.Status, t.DueDate,
		nullable(t.Notes), nullableStringPtr(t.CompletedAt), nullableStringPtr(t.CompletedBy),
		t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	return err
}

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var notes, completedAt, completedBy sql.NullString
	err := scan(&t.ID, &t.FarmID, &t.Title, &t.Description, &t.Category, &t.Priority, &t.Status,
		&t.DueDate, &notes, &completedAt, &completedBy, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if notes.Valid {
		t.Notes = notes.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	if completedBy.Valid {
		t.CompletedBy = &completedBy.String
	}
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row.Scan)
	if err != nil {
		return t, err
	}
	t.AssignedTo, err = r.taskAssignees(ctx, t.ID)
	return t, err
}

func (r Repo) taskAssignees(ctx context.Context, taskID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id FROM task_assignees WHERE task_id=? ORDER BY user_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r Repo) SetTaskAssignees(ctx context.Context, tx *sql.Tx, taskID string, userIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id=?`, taskID); err != nil {
		return err
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_assignees(task_id,user_id) VALUES (?,?)`, taskID, userID); err != nil {
			return err
		}
	}
	return nil
}

type TaskFilters struct {
	FarmID     string
	Status     string
	Category   string
	Priority   string
	AssignedTo string
	DueFrom    string
	DueTo      string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"t.farm_id=?"}
	args := []any{f.FarmID}
	if f.Status != "" {
		clauses = append(clauses, "t.status=?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		clauses = append(clauses, "t.category=?")
		args = append(args, f.Category)
	}
	if f.Priority != "" {
		clauses = append(clauses, "t.priority=?")
		args = append(args, f.Priority)
	}
	if f.AssignedTo != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM task_assignees a WHERE a.task_id=t.id AND a.user_id=?)")
		args = append(args, f.AssignedTo)
	}
	if f.DueFrom != "" {
		clauses = append(clauses, "t.due_date >= ?")
		args = append(args, f.DueFrom)
	}
	if f.DueTo != "" {
		clauses = append(clauses, "t.due_date < ?")
		args = append(args, f.DueTo)
	}
	query := fmt.Sprintf(`SELECT %s FROM tasks t WHERE %s ORDER BY t.due_date ASC,
CASE t.priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END ASC, t.id ASC`,
		taskColumnsPrefixed(), strings.Join(clauses, " AND "))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		res[i].AssignedTo, err = r.taskAssignees(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func taskColumnsPrefixed() string {
	cols := strings.Split(taskColumns, ",")
	for i, c := range cols {
		cols[i] = "t." + c
	}
	return strings.Join(cols, ",")
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, category=?, priority=?, status=?, due_date=?, notes=?, completed_at=?, completed_by=?, updated_at=? WHERE id=?`,
		t.Title, t.Description, t.Category, t.Priority, t.Status, t.DueDate, nullable(t.Notes),
		nullableStringPtr(t.CompletedAt), nullableStringPtr(t.CompletedBy), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TaskStats summarizes a day's tasks for the dashboard.
type TaskStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// TaskStatsByFarm counts tasks due within [dueFrom, dueTo).
func (r Repo) TaskStatsByFarm(ctx context.Context, farmID, dueFrom, dueTo string) (TaskStats, error) {
	var stats TaskStats
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks WHERE farm_id=? AND due_date >= ? AND due_date < ? GROUP BY status`,
		farmID, dueFrom, dueTo)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, err
		}
		stats.Total += n
		switch status {
		case "completed":
			stats.Completed += n
		case "pending", "in-progress":
			stats.Pending += n
		}
	}
	return stats, rows.Err()
}
