package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"farmsavvy/internal/authz"
	"farmsavvy/internal/config"
	"farmsavvy/internal/db"
	"farmsavvy/internal/domain"
	"farmsavvy/internal/engine"
	"farmsavvy/internal/ledger"
	"farmsavvy/internal/migrate"
	"farmsavvy/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context

	Owner   authz.Actor
	Manager authz.Actor
	Worker  authz.Actor
	Admin   authz.Actor
	FarmID  string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Auth.BcryptCost = 4
	rec := ledger.New(conn, zerolog.Nop())
	eng := engine.New(conn, cfg, rec)
	eng.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	rec.Now = eng.Now
	ctx := context.Background()

	env := testEnv{Engine: eng, Ctx: ctx}
	register := func(name, email, role string) authz.Actor {
		u, err := eng.Register(ctx, engine.RegisterOptions{Name: name, Email: email, Password: "secret1", Role: role})
		if err != nil {
			t.Fatalf("register %s: %v", email, err)
		}
		return authz.Actor{ID: u.ID, Role: u.Role}
	}
	env.Owner = register("Olive Owner", "olive@farm.test", domain.RoleManager)
	env.Manager = register("Mandy Manager", "mandy@farm.test", domain.RoleManager)
	env.Worker = register("Wes Worker", "wes@farm.test", domain.RoleWorker)
	env.Admin = register("Ada Admin", "ada@farm.test", domain.RoleAdmin)

	f, err := eng.CreateFarm(ctx, env.Owner, engine.FarmCreateOptions{Name: "Green Acres", Address: "1 Pasture Ln"})
	if err != nil {
		t.Fatalf("create farm: %v", err)
	}
	env.FarmID = f.ID
	if _, err := eng.AddFarmMember(ctx, env.Owner, f.ID, env.Manager.ID, "manager"); err != nil {
		t.Fatalf("add manager: %v", err)
	}
	if _, err := eng.AddFarmMember(ctx, env.Owner, f.ID, env.Worker.ID, "worker"); err != nil {
		t.Fatalf("add worker: %v", err)
	}
	return env
}

func TestOwnerCreatesWorkerCannotDelete(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.Engine.CreateAnimal(env.Ctx, env.Owner, engine.AnimalCreateOptions{
		FarmID: env.FarmID, TagNumber: "TAG-001", Type: "cattle", Breed: "Angus", Gender: "female",
		DateOfBirth: "2023-03-01T00:00:00Z", WeightKg: 310,
	})
	if err != nil {
		t.Fatalf("owner create: %v", err)
	}
	err = env.Engine.DeleteAnimal(env.Ctx, env.Worker, a.ID)
	var denied authz.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("worker delete: want denial, got %v", err)
	}
	// Manager cannot delete either, only the owner or an admin may.
	err = env.Engine.DeleteAnimal(env.Ctx, env.Manager, a.ID)
	if !errors.As(err, &denied) {
		t.Fatalf("manager delete: want denial, got %v", err)
	}
	// Admin deletes without being a farm member.
	if err := env.Engine.DeleteAnimal(env.Ctx, env.Admin, a.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestManagerWeightUpdateLogsActivity(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.Engine.CreateAnimal(env.Ctx, env.Owner, engine.AnimalCreateOptions{
		FarmID: env.FarmID, TagNumber: "TAG-002", Type: "goat", Breed: "Boer", Gender: "male",
		DateOfBirth: "2024-01-15T00:00:00Z", WeightKg: 40,
	})
	if err != nil {
		t.Fatal(err)
	}
	w := 45.5
	if _, err := env.Engine.UpdateAnimal(env.Ctx, env.Manager, a.ID, repo.AnimalUpdate{WeightKg: &w}); err != nil {
		t.Fatalf("manager update: %v", err)
	}
	acts, _, err := env.Engine.ActivitiesByFarm(env.Ctx, env.Manager, env.FarmID, ledger.Page{})
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	var found bool
	for _, act := range acts {
		if act.Type == ledger.TypeAnimalUpdated && act.EntityID == a.ID {
			found = true
			if got, ok := act.Metadata["weight"].(float64); !ok || got != w {
				t.Fatalf("metadata weight = %v, want %v", act.Metadata["weight"], w)
			}
		}
	}
	if !found {
		t.Fatal("expected animal_updated activity")
	}
}

func TestDuplicateTagRejected(t *testing.T) {
	env := newTestEnv(t)
	opts := engine.AnimalCreateOptions{
		FarmID: env.FarmID, TagNumber: "TAG-DUP", Type: "sheep", Breed: "Merino", Gender: "female",
		DateOfBirth: "2024-02-01T00:00:00Z", WeightKg: 55,
	}
	first, err := env.Engine.CreateAnimal(env.Ctx, env.Owner, opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateAnimal(env.Ctx, env.Owner, opts); !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
	// First animal is untouched.
	if _, err := env.Engine.GetAnimal(env.Ctx, env.Owner, first.ID); err != nil {
		t.Fatalf("first animal gone: %v", err)
	}
}

func TestAssignedWorkerCompletesTask(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, env.Manager, engine.TaskCreateOptions{
		FarmID: env.FarmID, Title: "Clean barn", DueDate: "2025-06-02T00:00:00Z",
		Category: "cleaning", AssignedTo: []string{env.Worker.ID},
	})
	if err != nil {
		t.Fatal(err)
	}
	// The assignee completes without the update tier.
	done, err := env.Engine.CompleteTask(env.Ctx, env.Worker, task.ID)
	if err != nil {
		t.Fatalf("assignee complete: %v", err)
	}
	if done.Status != "completed" || done.CompletedBy == nil || *done.CompletedBy != env.Worker.ID {
		t.Fatalf("completion fields not set: %+v", done)
	}

	// A second, unassigned worker cannot.
	other, err := env.Engine.Register(env.Ctx, engine.RegisterOptions{
		Name: "Walt", Email: "walt@farm.test", Password: "secret1", Role: domain.RoleWorker,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AddFarmMember(env.Ctx, env.Owner, env.FarmID, other.ID, "worker"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UncompleteTask(env.Ctx, authz.Actor{ID: other.ID, Role: other.Role}, task.ID); err == nil {
		t.Fatal("expected denial for unassigned worker")
	}
}

func TestCompleteUncompleteRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, env.Owner, engine.TaskCreateOptions{
		FarmID: env.FarmID, Title: "Vaccinate herd", DueDate: "2025-06-03T00:00:00Z", Category: "health",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, env.Owner, task.ID); err != nil {
		t.Fatal(err)
	}
	reverted, err := env.Engine.UncompleteTask(env.Ctx, env.Owner, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reverted.Status != "pending" || reverted.CompletedAt != nil || reverted.CompletedBy != nil {
		t.Fatalf("completion fields not cleared: %+v", reverted)
	}
	// The task_completed ledger row survives the revert.
	acts, _, err := env.Engine.ActivitiesByFarm(env.Ctx, env.Owner, env.FarmID, ledger.Page{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, a := range acts {
		if a.Type == ledger.TypeTaskCompleted && a.EntityID == task.ID && a.Action == "completed" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected task_completed activity to remain")
	}
}

func TestCancelledIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, env.Owner, engine.TaskCreateOptions{
		FarmID: env.FarmID, Title: "Fix fence", DueDate: "2025-06-04T00:00:00Z", Category: "maintenance",
	})
	if err != nil {
		t.Fatal(err)
	}
	status := "cancelled"
	if _, err := env.Engine.UpdateTask(env.Ctx, env.Owner, task.ID, engine.TaskUpdateOptions{Status: &status}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	reopen := "pending"
	if _, err := env.Engine.UpdateTask(env.Ctx, env.Owner, task.ID, engine.TaskUpdateOptions{Status: &reopen}); err == nil {
		t.Fatal("expected transition error out of cancelled")
	}
}

func TestUnscopedAnimalListingAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.ListAnimals(env.Ctx, env.Owner, repo.AnimalFilters{}); !errors.Is(err, engine.ErrFarmScopeRequired) {
		t.Fatalf("want ErrFarmScopeRequired, got %v", err)
	}
	if _, err := env.Engine.ListAnimals(env.Ctx, env.Admin, repo.AnimalFilters{}); err != nil {
		t.Fatalf("admin unscoped: %v", err)
	}
}

func TestMissingFarmIsNotFoundNotDenial(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateAnimal(env.Ctx, env.Worker, engine.AnimalCreateOptions{
		FarmID: "no-such-farm", TagNumber: "TAG-404", Type: "pig", Breed: "x", Gender: "male",
		DateOfBirth: "2024-01-01T00:00:00Z",
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound before any authorization check, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Engine.Authenticate(env.Ctx, "olive@farm.test", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.LastLogin == nil {
		t.Fatal("expected last_login stamp")
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "olive@farm.test", "wrong"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "nobody@farm.test", "secret1"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestHealthRecordWithWeight(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.Engine.CreateAnimal(env.Ctx, env.Owner, engine.AnimalCreateOptions{
		FarmID: env.FarmID, TagNumber: "TAG-HR", Type: "cattle", Breed: "Hereford", Gender: "female",
		DateOfBirth: "2023-05-01T00:00:00Z", WeightKg: 280,
	})
	if err != nil {
		t.Fatal(err)
	}
	w := 295.0
	updated, err := env.Engine.AddHealthRecord(env.Ctx, env.Manager, a.ID, engine.HealthRecordOptions{
		Kind: "checkup", Description: "Quarterly checkup", WeightKg: &w,
	})
	if err != nil {
		t.Fatalf("health record: %v", err)
	}
	if updated.WeightKg != w {
		t.Fatalf("weight = %v, want %v", updated.WeightKg, w)
	}
	if len(updated.HealthRecords) != 1 {
		t.Fatalf("records = %d, want 1", len(updated.HealthRecords))
	}
	stats, err := env.Engine.ActivityStats(env.Ctx, env.Owner, env.FarmID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if stats[ledger.TypeHealthCheck] != 1 || stats[ledger.TypeWeightRecorded] != 1 {
		t.Fatalf("stats = %v", stats)
	}
}
