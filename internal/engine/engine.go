// Package engine holds the domain operations behind the HTTP and CLI
// surfaces. Every farm-scoped mutation resolves the farm, runs the
// authz predicate, writes, then records the activity best-effort.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"farmsavvy/internal/authz"
	"farmsavvy/internal/config"
	"farmsavvy/internal/domain"
	"farmsavvy/internal/ledger"
	"farmsavvy/internal/repo"
)

// ErrInvalidCredentials is returned by Authenticate for a bad email or
// password, deliberately not distinguishing which.
var ErrInvalidCredentials = errors.New("invalid email or password")

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Ledger *ledger.Recorder
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, rec *ledger.Recorder) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Ledger: rec,
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) bcryptCost() int {
	if e.Config != nil && e.Config.Auth.BcryptCost > 0 {
		return e.Config.Auth.BcryptCost
	}
	return bcrypt.DefaultCost
}

func membershipOf(f domain.Farm) authz.Membership {
	return authz.Membership{OwnerID: f.OwnerID, Managers: f.Managers, Workers: f.Workers}
}

// Users

type RegisterOptions struct {
	Name     string
	Email    string
	Password string
	Role     string
}

func (e Engine) Register(ctx context.Context, opts RegisterOptions) (domain.User, error) {
	if opts.Name == "" {
		return domain.User{}, errors.New("name is required")
	}
	if !strings.Contains(opts.Email, "@") {
		return domain.User{}, errors.New("invalid email")
	}
	if len(opts.Password) < 6 {
		return domain.User{}, errors.New("password must be at least 6 characters")
	}
	if opts.Role == "" {
		opts.Role = domain.RoleWorker
	}
	switch opts.Role {
	case domain.RoleAdmin, domain.RoleManager, domain.RoleWorker:
	default:
		return domain.User{}, fmt.Errorf("invalid role %s", opts.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), e.bcryptCost())
	if err != nil {
		return domain.User{}, err
	}
	now := e.timestamp()
	u := domain.User{
		ID:           uuid.NewString(),
		Name:         opts.Name,
		Email:        strings.ToLower(opts.Email),
		PasswordHash: string(hash),
		Role:         opts.Role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.Repo.InsertUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Authenticate verifies credentials and stamps last_login.
func (e Engine) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	u, err := e.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if !u.Active {
		return domain.User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	ts := e.timestamp()
	if err := e.Repo.TouchLastLogin(ctx, u.ID, ts); err != nil {
		return domain.User{}, err
	}
	u.LastLogin = &ts
	return u, nil
}

func (e Engine) UpdateProfile(ctx context.Context, userID, name, email string) (domain.User, error) {
	if email != "" && !strings.Contains(email, "@") {
		return domain.User{}, errors.New("invalid email")
	}
	if err := e.Repo.UpdateUserDetails(ctx, userID, name, email, e.timestamp()); err != nil {
		return domain.User{}, err
	}
	return e.Repo.GetUser(ctx, userID)
}

func (e Engine) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), e.bcryptCost())
	if err != nil {
		return err
	}
	return e.Repo.UpdateUserPassword(ctx, userID, string(hash), e.timestamp())
}

// Farms

type FarmCreateOptions struct {
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
	SizeAcres float64
	Types     []string
}

// CreateFarm makes the actor the owner of the new farm.
func (e Engine) CreateFarm(ctx context.Context, actor authz.Actor, opts FarmCreateOptions) (domain.Farm, error) {
	if opts.Name == "" {
		return domain.Farm{}, errors.New("name is required")
	}
	if opts.Address == "" {
		return domain.Farm{}, errors.New("address is required")
	}
	now := e.timestamp()
	f := domain.Farm{
		ID:      uuid.NewString(),
		Name:    opts.Name,
		OwnerID: actor.ID,
		Location: domain.Location{
			Address:   opts.Address,
			Latitude:  opts.Latitude,
			Longitude: opts.Longitude,
		},
		SizeAcres: opts.SizeAcres,
		Types:     opts.Types,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Farm{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertFarm(ctx, tx, f); err != nil {
		return domain.Farm{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Farm{}, err
	}
	e.Ledger.Record(ctx, domain.Activity{
		Type:        ledger.TypeFarmCreated,
		Action:      "created",
		Description: fmt.Sprintf("New farm created: %s", f.Name),
		EntityType:  "farm",
		EntityID:    f.ID,
		EntityName:  f.Name,
		ActorID:     actor.ID,
		FarmID:      f.ID,
	})
	return f, nil
}

func (e Engine) GetFarm(ctx context.Context, actor authz.Actor, id string) (domain.Farm, error) {
	f, err := e.Repo.GetFarm(ctx, id)
	if err != nil {
		return domain.Farm{}, err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionView); err != nil {
		return domain.Farm{}, err
	}
	return f, nil
}

// ListFarms returns every farm for admins, otherwise the farms the
// actor owns or belongs to.
func (e Engine) ListFarms(ctx context.Context, actor authz.Actor) ([]domain.Farm, error) {
	if actor.Role == domain.RoleAdmin {
		return e.Repo.ListFarms(ctx, "")
	}
	return e.Repo.ListFarms(ctx, actor.ID)
}

// UpdateFarm edits the farm document itself. Unlike farm-scoped
// resources this is owner tier: managers run the farm, they do not
// reshape it.
func (e Engine) UpdateFarm(ctx context.Context, actor authz.Actor, id string, upd repo.FarmUpdate) (domain.Farm, error) {
	f, err := e.Repo.GetFarm(ctx, id)
	if err != nil {
		return domain.Farm{}, err
	}
	if !authz.Allowed(actor, membershipOf(f), authz.ActionDelete) {
		return domain.Farm{}, authz.DeniedError{Action: authz.ActionUpdate}
	}
	if err := e.Repo.UpdateFarm(ctx, id, upd, e.timestamp()); err != nil {
		return domain.Farm{}, err
	}
	return e.Repo.GetFarm(ctx, id)
}

// AddFarmMember attaches a user to a farm as manager or worker.
// Owner tier required: membership edits are a delete-grade privilege.
func (e Engine) AddFarmMember(ctx context.Context, actor authz.Actor, farmID, userID, role string) (domain.Farm, error) {
	if role != "manager" && role != "worker" {
		return domain.Farm{}, fmt.Errorf("invalid member role %s", role)
	}
	f, err := e.Repo.GetFarm(ctx, farmID)
	if err != nil {
		return domain.Farm{}, err
	}
	if !authz.Allowed(actor, membershipOf(f), authz.ActionDelete) {
		return domain.Farm{}, authz.DeniedError{Action: authz.ActionUpdate}
	}
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return domain.Farm{}, err
	}
	if err := e.Repo.AddFarmMember(ctx, farmID, userID, role); err != nil {
		return domain.Farm{}, err
	}
	e.Ledger.Record(ctx, domain.Activity{
		Type:        ledger.TypeUserJoined,
		Action:      "joined",
		Description: fmt.Sprintf("%s joined farm %s as %s", u.Name, f.Name, role),
		EntityType:  "user",
		EntityID:    u.ID,
		EntityName:  u.Name,
		ActorID:     actor.ID,
		FarmID:      farmID,
		Metadata:    map[string]any{"role": role},
	})
	return e.Repo.GetFarm(ctx, farmID)
}

func (e Engine) RemoveFarmMember(ctx context.Context, actor authz.Actor, farmID, userID string) (domain.Farm, error) {
	f, err := e.Repo.GetFarm(ctx, farmID)
	if err != nil {
		return domain.Farm{}, err
	}
	if !authz.Allowed(actor, membershipOf(f), authz.ActionDelete) {
		return domain.Farm{}, authz.DeniedError{Action: authz.ActionUpdate}
	}
	if err := e.Repo.RemoveFarmMember(ctx, farmID, userID); err != nil {
		return domain.Farm{}, err
	}
	return e.Repo.GetFarm(ctx, farmID)
}

// ActivitiesByFarm pages a farm's ledger, view tier required.
func (e Engine) ActivitiesByFarm(ctx context.Context, actor authz.Actor, farmID string, page ledger.Page) ([]domain.Activity, int, error) {
	f, err := e.Repo.GetFarm(ctx, farmID)
	if err != nil {
		return nil, 0, err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionView); err != nil {
		return nil, 0, err
	}
	return e.Ledger.QueryByFarm(ctx, farmID, page)
}

// ActivitiesByUser pages the actor's own ledger entries.
func (e Engine) ActivitiesByUser(ctx context.Context, actor authz.Actor, page ledger.Page) ([]domain.Activity, int, error) {
	return e.Ledger.QueryByUser(ctx, actor.ID, page)
}

func (e Engine) ActivityStats(ctx context.Context, actor authz.Actor, farmID string, sinceDays int) (map[string]int, error) {
	f, err := e.Repo.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionView); err != nil {
		return nil, err
	}
	if sinceDays <= 0 && e.Config != nil {
		sinceDays = e.Config.Activity.StatsWindowDays
	}
	return e.Ledger.StatsByType(ctx, farmID, sinceDays)
}
