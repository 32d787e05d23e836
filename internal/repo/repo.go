package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"farmsavvy/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate value")
)

// isUniqueViolation detects the sqlite unique-index error so callers can
// surface duplicates (tag numbers, emails) as a conflict rather than a 500.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Users

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,name,email,password_hash,role,active,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		u.ID, u.Name, strings.ToLower(u.Email), u.PasswordHash, u.Role, boolToInt(u.Active), u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("email %s: %w", u.Email, ErrDuplicate)
	}
	return err
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var active int
	var lastLogin sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &active, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Active = active != 0
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.String
	}
	return u, nil
}

const userColumns = `id,name,email,password_hash,role,active,last_login,created_at,updated_at`

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
	if err != nil {
		return u, err
	}
	u.Farms, err = r.userFarmIDs(ctx, u.ID)
	return u, err
}

// userFarmIDs lists the farms a user owns or is a member of.
func (r Repo) userFarmIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM farms WHERE owner_id=?
UNION SELECT farm_id FROM farm_members WHERE user_id=?`, userID, userID)
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

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, strings.ToLower(email)))
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		var active int
		var lastLogin sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &active, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Active = active != 0
		if lastLogin.Valid {
			u.LastLogin = &lastLogin.String
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) UpdateUserDetails(ctx context.Context, id, name, email, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if name != "" {
		fields = append(fields, "name=?")
		args = append(args, name)
	}
	if email != "" {
		fields = append(fields, "email=?")
		args = append(args, strings.ToLower(email))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE users SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("email %s: %w", email, ErrDuplicate)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateUserPassword(ctx context.Context, id, passwordHash, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash=?, updated_at=? WHERE id=?`, passwordHash, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) TouchLastLogin(ctx context.Context, id, ts string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET last_login=? WHERE id=?`, ts, id)
	return err
}

// Farms

func (r Repo) InsertFarm(ctx context.Context, tx *sql.Tx, f domain.Farm) error {
	types, err := marshalStringSlice(f.Types)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO farms(id,name,owner_id,address,latitude,longitude,size_acres,types_json,active,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.Name, f.OwnerID, f.Location.Address, f.Location.Latitude, f.Location.Longitude,
		f.SizeAcres, nullableStringPtr(types), boolToInt(f.Active), f.CreatedAt, f.UpdatedAt)
	return err
}

func (r Repo) GetFarm(ctx context.Context, id string) (domain.Farm, error) {
	var f domain.Farm
	var types sql.NullString
	var active int
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,owner_id,address,latitude,longitude,size_acres,types_json,active,created_at,updated_at FROM farms WHERE id=?`, id).
		Scan(&f.ID, &f.Name, &f.OwnerID, &f.Location.Address, &f.Location.Latitude, &f.Location.Longitude,
			&f.SizeAcres, &types, &active, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	if err != nil {
		return f, err
	}
	f.Active = active != 0
	if types.Valid && types.String != "" {
		_ = json.Unmarshal([]byte(types.String), &f.Types)
	}
	f.Managers, f.Workers, err = r.farmMembers(ctx, f.ID)
	return f, err
}

func (r Repo) farmMembers(ctx context.Context, farmID string) (managers, workers []string, err error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id, role FROM farm_members WHERE farm_id=? ORDER BY user_id`, farmID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var userID, role string
		if err := rows.Scan(&userID, &role); err != nil {
			return nil, nil, err
		}
		switch role {
		case "manager":
			managers = append(managers, userID)
		case "worker":
			workers = append(workers, userID)
		}
	}
	return managers, workers, rows.Err()
}

// ListFarms returns every farm when userID is empty (admin listing),
// otherwise the farms the user owns or belongs to.
func (r Repo) ListFarms(ctx context.Context, userID string) ([]domain.Farm, error) {
	query := `SELECT id FROM farms ORDER BY created_at DESC`
	var args []any
	if userID != "" {
		query = `SELECT DISTINCT f.id FROM farms f
LEFT JOIN farm_members m ON m.farm_id = f.id
WHERE f.owner_id=? OR m.user_id=?
ORDER BY f.created_at DESC`
		args = []any{userID, userID}
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var res []domain.Farm
	for _, id := range ids {
		f, err := r.GetFarm(ctx, id)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, nil
}

type FarmUpdate struct {
	Name      *string
	Address   *string
	SizeAcres *float64
	Types     []string
	Active    *bool
}

func (r Repo) UpdateFarm(ctx context.Context, id string, upd FarmUpdate, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if upd.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *upd.Name)
	}
	if upd.Address != nil {
		fields = append(fields, "address=?")
		args = append(args, *upd.Address)
	}
	if upd.SizeAcres != nil {
		fields = append(fields, "size_acres=?")
		args = append(args, *upd.SizeAcres)
	}
	if upd.Types != nil {
		types, err := marshalStringSlice(upd.Types)
		if err != nil {
			return err
		}
		fields = append(fields, "types_json=?")
		args = append(args, nullableStringPtr(types))
	}
	if upd.Active != nil {
		fields = append(fields, "active=?")
		args = append(args, boolToInt(*upd.Active))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE farms SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) AddFarmMember(ctx context.Context, farmID, userID, role string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO farm_members(farm_id,user_id,role) VALUES (?,?,?)
ON CONFLICT(farm_id,user_id) DO UPDATE SET role=excluded.role`, farmID, userID, role)
	return err
}

func (r Repo) RemoveFarmMember(ctx context.Context, farmID, userID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM farm_members WHERE farm_id=? AND user_id=?`, farmID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalStringSlice(in []string) (*string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}
