// Package ledger records farm activity as an append-only stream.
// Rows are inserted and read, never updated or deleted. The sqlite
// autoincrement seq gives a total order even when two rows share a
// created_at timestamp.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"farmsavvy/internal/domain"
)

// Activity type tags.
const (
	TypeAnimalAdded    = "animal_added"
	TypeAnimalUpdated  = "animal_updated"
	TypeTaskCompleted  = "task_completed"
	TypeHealthCheck    = "health_check"
	TypeWeightRecorded = "weight_recorded"
	TypeFarmCreated    = "farm_created"
	TypeUserJoined     = "user_joined"
)

// Recorder writes and reads the activity stream.
type Recorder struct {
	DB  *sql.DB
	Log zerolog.Logger
	Now func() time.Time
}

func New(db *sql.DB, log zerolog.Logger) *Recorder {
	return &Recorder{DB: db, Log: log, Now: time.Now}
}

// Append inserts one activity row. CreatedAt is stamped from Now when
// empty. The assigned seq is written back into a.
func (r *Recorder) Append(ctx context.Context, a *domain.Activity) error {
	if a.CreatedAt == "" {
		a.CreatedAt = r.Now().UTC().Format(time.RFC3339)
	}
	var metadata any
	if len(a.Metadata) > 0 {
		b, err := json.Marshal(a.Metadata)
		if err != nil {
			return err
		}
		metadata = string(b)
	}
	var entityName any
	if a.EntityName != "" {
		entityName = a.EntityName
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO activities(type,action,description,entity_type,entity_id,entity_name,actor_id,farm_id,metadata_json,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.Type, a.Action, a.Description, a.EntityType, a.EntityID, entityName, a.ActorID, a.FarmID, metadata, a.CreatedAt)
	if err != nil {
		return err
	}
	a.Seq, _ = res.LastInsertId()
	return nil
}

// Record is the best-effort form of Append used after mutations: a
// ledger failure is logged and swallowed so it never rolls back or
// fails the operation that triggered it.
func (r *Recorder) Record(ctx context.Context, a domain.Activity) {
	if err := r.Append(ctx, &a); err != nil {
		r.Log.Error().Err(err).
			Str("type", a.Type).
			Str("entity_id", a.EntityID).
			Str("farm_id", a.FarmID).
			Msg("activity record failed")
	}
}

// Page bounds a ledger query. Limit defaults to 20, capped at 100.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) clamp() Page {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// QueryByFarm returns a farm's activities newest first plus the total
// row count for pagination.
func (r *Recorder) QueryByFarm(ctx context.Context, farmID string, page Page) ([]domain.Activity, int, error) {
	return r.query(ctx, `farm_id=?`, farmID, page)
}

// QueryByUser returns the activities a user performed, newest first.
func (r *Recorder) QueryByUser(ctx context.Context, userID string, page Page) ([]domain.Activity, int, error) {
	return r.query(ctx, `actor_id=?`, userID, page)
}

func (r *Recorder) query(ctx context.Context, where, arg string, page Page) ([]domain.Activity, int, error) {
	page = page.clamp()
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities WHERE `+where, arg).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT seq,type,action,description,entity_type,entity_id,entity_name,actor_id,farm_id,metadata_json,created_at
FROM activities WHERE `+where+` ORDER BY created_at DESC, seq DESC LIMIT ? OFFSET ?`, arg, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var entityName, metadata sql.NullString
		if err := rows.Scan(&a.Seq, &a.Type, &a.Action, &a.Description, &a.EntityType, &a.EntityID,
			&entityName, &a.ActorID, &a.FarmID, &metadata, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		if entityName.Valid {
			a.EntityName = entityName.String
		}
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &a.Metadata)
		}
		res = append(res, a)
	}
	return res, total, rows.Err()
}

// StatsByType counts a farm's activities per type over the trailing
// sinceDays days. Zero or negative sinceDays means 7.
func (r *Recorder) StatsByType(ctx context.Context, farmID string, sinceDays int) (map[string]int, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	since := r.Now().UTC().AddDate(0, 0, -sinceDays).Format(time.RFC3339)
	rows, err := r.DB.QueryContext(ctx, `SELECT type, COUNT(*) FROM activities WHERE farm_id=? AND created_at >= ? GROUP BY type`, farmID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := map[string]int{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		stats[typ] = n
	}
	return stats, rows.Err()
}
