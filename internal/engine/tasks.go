package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"farmsavvy/internal/authz"
	"farmsavvy/internal/domain"
	"farmsavvy/internal/ledger"
	"farmsavvy/internal/repo"
)

type TaskCreateOptions struct {
	FarmID      string
	Title       string
	Description string
	Category    string
	Priority    string
	DueDate     string
	AssignedTo  []string
	Notes       string
}

func (e Engine) CreateTask(ctx context.Context, actor authz.Actor, opts TaskCreateOptions) (domain.Task, error) {
	if opts.FarmID == "" {
		return domain.Task{}, errors.New("farm id is required")
	}
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.DueDate == "" {
		return domain.Task{}, errors.New("due date is required")
	}
	f, err := e.Repo.GetFarm(ctx, opts.FarmID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionCreate); err != nil {
		return domain.Task{}, err
	}
	if opts.Category == "" {
		opts.Category = "other"
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	now := e.timestamp()
	t := domain.Task{
		ID:          uuid.NewString(),
		FarmID:      opts.FarmID,
		Title:       opts.Title,
		Description: opts.Description,
		Category:    opts.Category,
		Priority:    opts.Priority,
		Status:      "pending",
		AssignedTo:  opts.AssignedTo,
		DueDate:     opts.DueDate,
		Notes:       opts.Notes,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if len(opts.AssignedTo) > 0 {
		if err := e.Repo.SetTaskAssignees(ctx, tx, t.ID, opts.AssignedTo); err != nil {
			return domain.Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	e.Ledger.Record(ctx, domain.Activity{
		Type:        ledger.TypeTaskCompleted,
		Action:      "created",
		Description: fmt.Sprintf("New task created: %s", t.Title),
		EntityType:  "task",
		EntityID:    t.ID,
		EntityName:  t.Title,
		ActorID:     actor.ID,
		FarmID:      t.FarmID,
		Metadata:    map[string]any{"category": t.Category, "priority": t.Priority},
	})
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, actor authz.Actor, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	f, err := e.Repo.GetFarm(ctx, t.FarmID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionView); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) ListTasks(ctx context.Context, actor authz.Actor, f repo.TaskFilters) ([]domain.Task, error) {
	if f.FarmID == "" {
		return nil, errors.New("farm id is required")
	}
	farm, err := e.Repo.GetFarm(ctx, f.FarmID)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, membershipOf(farm), authz.ActionView); err != nil {
		return nil, err
	}
	return e.Repo.ListTasks(ctx, f)
}

// TodayTasks lists tasks due within the current UTC day.
func (e Engine) TodayTasks(ctx context.Context, actor authz.Actor, farmID string) ([]domain.Task, error) {
	from, to := e.todayWindow()
	return e.ListTasks(ctx, actor, repo.TaskFilters{FarmID: farmID, DueFrom: from, DueTo: to})
}

func (e Engine) TaskStats(ctx context.Context, actor authz.Actor, farmID string) (repo.TaskStats, error) {
	f, err := e.Repo.GetFarm(ctx, farmID)
	if err != nil {
		return repo.TaskStats{}, err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionView); err != nil {
		return repo.TaskStats{}, err
	}
	from, to := e.todayWindow()
	return e.Repo.TaskStatsByFarm(ctx, farmID, from, to)
}

func (e Engine) todayWindow() (string, string) {
	day := e.now().UTC().Truncate(24 * time.Hour)
	return day.Format(time.RFC3339), day.AddDate(0, 0, 1).Format(time.RFC3339)
}

type TaskUpdateOptions struct {
	Title       *string
	Description *string
	Category    *string
	Priority    *string
	Status      *string
	DueDate     *string
	Notes       *string
	AssignedTo  []string
}

// UpdateTask applies general field edits, update tier required. A
// status change into or out of completed goes through the same
// completion bookkeeping as the dedicated endpoints.
func (e Engine) UpdateTask(ctx context.Context, actor authz.Actor, id string, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	f, err := e.Repo.GetFarm(ctx, t.FarmID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionUpdate); err != nil {
		return domain.Task{}, err
	}
	wasCompleted := t.Status == "completed"
	if opts.Title != nil {
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Category != nil {
		t.Category = *opts.Category
	}
	if opts.Priority != nil {
		t.Priority = *opts.Priority
	}
	if opts.DueDate != nil {
		t.DueDate = *opts.DueDate
	}
	if opts.Notes != nil {
		t.Notes = *opts.Notes
	}
	if opts.Status != nil {
		if err := validTransition(t.Status, *opts.Status); err != nil {
			return domain.Task{}, err
		}
		t.Status = *opts.Status
	}
	now := e.timestamp()
	if t.Status == "completed" && !wasCompleted {
		t.CompletedAt = &now
		actorID := actor.ID
		t.CompletedBy = &actorID
	}
	if t.Status != "completed" && wasCompleted {
		t.CompletedAt = nil
		t.CompletedBy = nil
	}
	t.UpdatedAt = now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if opts.AssignedTo != nil {
		if err := e.Repo.SetTaskAssignees(ctx, tx, t.ID, opts.AssignedTo); err != nil {
			return domain.Task{}, err
		}
		t.AssignedTo = opts.AssignedTo
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	if t.Status == "completed" && !wasCompleted {
		e.recordCompletion(ctx, actor, t)
	}
	return t, nil
}

// CompleteTask moves a task into completed. Assignees may complete
// their own task without holding the update tier.
func (e Engine) CompleteTask(ctx context.Context, actor authz.Actor, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	f, err := e.Repo.GetFarm(ctx, t.FarmID)
	if err != nil {
		return domain.Task{}, err
	}
	if !authz.CanComplete(actor, membershipOf(f), t.AssignedTo) {
		return domain.Task{}, authz.DeniedError{Action: authz.ActionUpdate}
	}
	if t.Status == "completed" {
		return t, nil
	}
	if err := validTransition(t.Status, "completed"); err != nil {
		return domain.Task{}, err
	}
	now := e.timestamp()
	actorID := actor.ID
	t.Status = "completed"
	t.CompletedAt = &now
	t.CompletedBy = &actorID
	t.UpdatedAt = now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	e.recordCompletion(ctx, actor, t)
	return t, nil
}

// UncompleteTask reverts a completed task to pending, clearing the
// completion fields. The earlier task_completed ledger rows stay.
func (e Engine) UncompleteTask(ctx context.Context, actor authz.Actor, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	f, err := e.Repo.GetFarm(ctx, t.FarmID)
	if err != nil {
		return domain.Task{}, err
	}
	if !authz.CanComplete(actor, membershipOf(f), t.AssignedTo) {
		return domain.Task{}, authz.DeniedError{Action: authz.ActionUpdate}
	}
	if t.Status != "completed" {
		return domain.Task{}, errors.New("task is not completed")
	}
	t.Status = "pending"
	t.CompletedAt = nil
	t.CompletedBy = nil
	t.UpdatedAt = e.timestamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) DeleteTask(ctx context.Context, actor authz.Actor, id string) error {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	f, err := e.Repo.GetFarm(ctx, t.FarmID)
	if err != nil {
		return err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionDelete); err != nil {
		return err
	}
	return e.Repo.DeleteTask(ctx, id)
}

func (e Engine) recordCompletion(ctx context.Context, actor authz.Actor, t domain.Task) {
	e.Ledger.Record(ctx, domain.Activity{
		Type:        ledger.TypeTaskCompleted,
		Action:      "completed",
		Description: fmt.Sprintf("Task completed: %s", t.Title),
		EntityType:  "task",
		EntityID:    t.ID,
		EntityName:  t.Title,
		ActorID:     actor.ID,
		FarmID:      t.FarmID,
		Metadata:    map[string]any{"category": t.Category},
	})
}

// validTransition enforces the task status machine: cancelled is
// terminal, completed can only revert to pending.
func validTransition(from, to string) error {
	if from == to {
		return nil
	}
	allowed := map[string][]string{
		"pending":     {"in-progress", "completed", "cancelled"},
		"in-progress": {"pending", "completed", "cancelled"},
		"completed":   {"pending"},
		"cancelled":   {},
	}
	for _, s := range allowed[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid status transition %s to %s", from, to)
}
