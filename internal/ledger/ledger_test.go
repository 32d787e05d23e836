package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"farmsavvy/internal/db"
	"farmsavvy/internal/domain"
	"farmsavvy/internal/migrate"
)

func newRecorder(t *testing.T) *Recorder {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(conn, zerolog.Nop())
}

func TestAppendAssignsSeq(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()

	a := domain.Activity{
		Type:        TypeAnimalAdded,
		Action:      "added",
		Description: "New cattle added: TAG-001",
		EntityType:  "animal",
		EntityID:    "animal-1",
		ActorID:     "user-1",
		FarmID:      "farm-1",
		Metadata:    map[string]any{"tag_number": "TAG-001"},
	}
	if err := r.Append(ctx, &a); err != nil {
		t.Fatalf("append: %v", err)
	}
	if a.Seq == 0 {
		t.Fatal("expected seq to be assigned")
	}
	if a.CreatedAt == "" {
		t.Fatal("expected created_at to be stamped")
	}
}

func TestQueryNewestFirstWithSeqTiebreak(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()

	// Same timestamp for all three rows; seq must break the tie so the
	// latest insert comes back first.
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return fixed }

	for _, id := range []string{"a1", "a2", "a3"} {
		a := domain.Activity{
			Type:        TypeAnimalAdded,
			Action:      "added",
			Description: "added " + id,
			EntityType:  "animal",
			EntityID:    id,
			ActorID:     "user-1",
			FarmID:      "farm-1",
		}
		if err := r.Append(ctx, &a); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	got, total, err := r.QueryByFarm(ctx, "farm-1", Page{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	want := []string{"a3", "a2", "a1"}
	for i, a := range got {
		if a.EntityID != want[i] {
			t.Errorf("row %d entity = %s, want %s", i, a.EntityID, want[i])
		}
	}
}

func TestQueryPagination(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		a := domain.Activity{
			Type:        TypeTaskCompleted,
			Action:      "completed",
			Description: "task done",
			EntityType:  "task",
			EntityID:    "task-1",
			ActorID:     "user-7",
			FarmID:      "farm-1",
		}
		if err := r.Append(ctx, &a); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, total, err := r.QueryByUser(ctx, "user-7", Page{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestRecordSwallowsFailures(t *testing.T) {
	r := newRecorder(t)
	r.DB.Close()

	// Must not panic or surface an error even with the store gone.
	r.Record(context.Background(), domain.Activity{
		Type:        TypeHealthCheck,
		Action:      "recorded",
		Description: "checkup",
		EntityType:  "health",
		EntityID:    "animal-1",
		ActorID:     "user-1",
		FarmID:      "farm-1",
	})
}

func TestStatsByTypeWindow(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return now }

	append := func(typ, createdAt string) {
		t.Helper()
		a := domain.Activity{
			Type:        typ,
			Action:      "x",
			Description: "x",
			EntityType:  "animal",
			EntityID:    "a",
			ActorID:     "u",
			FarmID:      "farm-1",
			CreatedAt:   createdAt,
		}
		if err := r.Append(ctx, &a); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	append(TypeAnimalAdded, now.AddDate(0, 0, -1).Format(time.RFC3339))
	append(TypeAnimalAdded, now.AddDate(0, 0, -2).Format(time.RFC3339))
	append(TypeWeightRecorded, now.AddDate(0, 0, -3).Format(time.RFC3339))
	// Outside the 7-day window, must not count.
	append(TypeAnimalAdded, now.AddDate(0, 0, -10).Format(time.RFC3339))

	stats, err := r.StatsByType(ctx, "farm-1", 0)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[TypeAnimalAdded] != 2 {
		t.Errorf("animal_added = %d, want 2", stats[TypeAnimalAdded])
	}
	if stats[TypeWeightRecorded] != 1 {
		t.Errorf("weight_recorded = %d, want 1", stats[TypeWeightRecorded])
	}
}
