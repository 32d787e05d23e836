package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"farmsavvy/internal/domain"
)

const animalColumns = `id,farm_id,tag_number,name,type,breed,gender,date_of_birth,weight_kg,status,created_at,updated_at`

func (r Repo) InsertAnimal(ctx context.Context, a domain.Animal) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO animals(`+animalColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.FarmID, a.TagNumber, nullable(a.Name), a.Type, a.Breed, a.Gender, a.DateOfBirth,
		a.WeightKg, a.Status, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("tag number %s: %w", a.TagNumber, ErrDuplicate)
	}
	return err
}

func scanAnimal(scan func(dest ...any) error) (domain.Animal, error) {
	var a domain.Animal
	var name sql.NullString
	err := scan(&a.ID, &a.FarmID, &a.TagNumber, &name, &a.Type, &a.Breed, &a.Gender,
		&a.DateOfBirth, &a.WeightKg, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if name.Valid {
		a.Name = name.String
	}
	return a, nil
}

func (r Repo) GetAnimal(ctx context.Context, id string) (domain.Animal, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+animalColumns+` FROM animals WHERE id=?`, id)
	a, err := scanAnimal(row.Scan)
	if err != nil {
		return a, err
	}
	a.HealthRecords, err = r.ListHealthRecords(ctx, a.ID)
	return a, err
}

type AnimalFilters struct {
	FarmID string
	Type   string
	Status string
}

func (r Repo) ListAnimals(ctx context.Context, f AnimalFilters) ([]domain.Animal, error) {
	var (
		clauses []string
		args    []any
	)
	if f.FarmID != "" {
		clauses = append(clauses, "farm_id=?")
		args = append(args, f.FarmID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + animalColumns + ` FROM animals`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Animal
	for rows.Next() {
		a, err := scanAnimal(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

type AnimalUpdate struct {
	TagNumber *string
	Name      *string
	Type      *string
	Breed     *string
	Gender    *string
	WeightKg  *float64
	Status    *string
}

func (r Repo) UpdateAnimal(ctx context.Context, id string, upd AnimalUpdate, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v any) {
		fields = append(fields, col+"=?")
		args = append(args, v)
	}
	if upd.TagNumber != nil {
		set("tag_number", *upd.TagNumber)
	}
	if upd.Name != nil {
		set("name", nullable(*upd.Name))
	}
	if upd.Type != nil {
		set("type", *upd.Type)
	}
	if upd.Breed != nil {
		set("breed", *upd.Breed)
	}
	if upd.Gender != nil {
		set("gender", *upd.Gender)
	}
	if upd.WeightKg != nil {
		set("weight_kg", *upd.WeightKg)
	}
	if upd.Status != nil {
		set("status", *upd.Status)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE animals SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("tag number: %w", ErrDuplicate)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteAnimal(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM animals WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertHealthRecord(ctx context.Context, rec domain.HealthRecord) (domain.HealthRecord, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO animal_health_records(animal_id,date,kind,description,veterinarian,next_due) VALUES (?,?,?,?,?,?)`,
		rec.AnimalID, rec.Date, rec.Kind, rec.Description, nullable(rec.Veterinarian), nullableStringPtr(rec.NextDue))
	if err != nil {
		return rec, err
	}
	rec.ID, _ = res.LastInsertId()
	return rec, nil
}

func (r Repo) ListHealthRecords(ctx context.Context, animalID string) ([]domain.HealthRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,animal_id,date,kind,description,veterinarian,next_due
FROM animal_health_records WHERE animal_id=? ORDER BY date DESC, id DESC`, animalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HealthRecord
	for rows.Next() {
		var rec domain.HealthRecord
		var vet, nextDue sql.NullString
		if err := rows.Scan(&rec.ID, &rec.AnimalID, &rec.Date, &rec.Kind, &rec.Description, &vet, &nextDue); err != nil {
			return nil, err
		}
		if vet.Valid {
			rec.Veterinarian = vet.String
		}
		if nextDue.Valid {
			rec.NextDue = &nextDue.String
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// AnimalStats summarizes a farm's herd for the dashboard.
type AnimalStats struct {
	Total      int            `json:"total"`
	Healthy    int            `json:"healthy"`
	Sick       int            `json:"sick"`
	Quarantine int            `json:"quarantine"`
	HealthRate int            `json:"health_rate"`
	ByType     map[string]int `json:"by_type"`
}

func (r Repo) AnimalStatsByFarm(ctx context.Context, farmID string) (AnimalStats, error) {
	stats := AnimalStats{ByType: map[string]int{}, HealthRate: 100}
	rows, err := r.DB.QueryContext(ctx, `SELECT type, status, COUNT(*) FROM animals WHERE farm_id=? GROUP BY type, status`, farmID)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var typ, status string
		var n int
		if err := rows.Scan(&typ, &status, &n); err != nil {
			return stats, err
		}
		stats.Total += n
		stats.ByType[typ] += n
		switch status {
		case "healthy":
			stats.Healthy += n
		case "sick":
			stats.Sick += n
		case "quarantine":
			stats.Quarantine += n
		}
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}
	if stats.Total > 0 {
		stats.HealthRate = int(float64(stats.Healthy)/float64(stats.Total)*100 + 0.5)
	}
	return stats, nil
}
