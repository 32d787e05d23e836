package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"farmsavvy/internal/authz"
	"farmsavvy/internal/domain"
	"farmsavvy/internal/ledger"
	"farmsavvy/internal/repo"
)

// ErrFarmScopeRequired is returned when a non-admin lists animals
// without a farm filter. Only admins get the unscoped view.
var ErrFarmScopeRequired = errors.New("farm id is required")

type AnimalCreateOptions struct {
	FarmID      string
	TagNumber   string
	Name        string
	Type        string
	Breed       string
	Gender      string
	DateOfBirth string
	WeightKg    float64
	Status      string
}

func (e Engine) CreateAnimal(ctx context.Context, actor authz.Actor, opts AnimalCreateOptions) (domain.Animal, error) {
	if opts.FarmID == "" {
		return domain.Animal{}, errors.New("farm id is required")
	}
	if opts.TagNumber == "" {
		return domain.Animal{}, errors.New("tag number is required")
	}
	if opts.Type == "" {
		return domain.Animal{}, errors.New("type is required")
	}
	f, err := e.Repo.GetFarm(ctx, opts.FarmID)
	if err != nil {
		return domain.Animal{}, err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionCreate); err != nil {
		return domain.Animal{}, err
	}
	if opts.Status == "" {
		opts.Status = "healthy"
	}
	now := e.timestamp()
	a := domain.Animal{
		ID:          uuid.NewString(),
		FarmID:      opts.FarmID,
		TagNumber:   opts.TagNumber,
		Name:        opts.Name,
		Type:        opts.Type,
		Breed:       opts.Breed,
		Gender:      opts.Gender,
		DateOfBirth: opts.DateOfBirth,
		WeightKg:    opts.WeightKg,
		Status:      opts.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertAnimal(ctx, a); err != nil {
		return domain.Animal{}, err
	}
	e.Ledger.Record(ctx, domain.Activity{
		Type:        ledger.TypeAnimalAdded,
		Action:      "added",
		Description: fmt.Sprintf("New %s added: %s", a.Type, a.TagNumber),
		EntityType:  "animal",
		EntityID:    a.ID,
		EntityName:  a.TagNumber,
		ActorID:     actor.ID,
		FarmID:      a.FarmID,
		Metadata:    map[string]any{"tag_number": a.TagNumber, "type": a.Type},
	})
	return a, nil
}

func (e Engine) GetAnimal(ctx context.Context, actor authz.Actor, id string) (domain.Animal, error) {
	a, err := e.Repo.GetAnimal(ctx, id)
	if err != nil {
		return domain.Animal{}, err
	}
	f, err := e.Repo.GetFarm(ctx, a.FarmID)
	if err != nil {
		return domain.Animal{}, err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionView); err != nil {
		return domain.Animal{}, err
	}
	return a, nil
}

// ListAnimals requires a farm scope for everyone but admins.
func (e Engine) ListAnimals(ctx context.Context, actor authz.Actor, f repo.AnimalFilters) ([]domain.Animal, error) {
	if f.FarmID == "" {
		if actor.Role != domain.RoleAdmin {
			return nil, ErrFarmScopeRequired
		}
		return e.Repo.ListAnimals(ctx, f)
	}
	farm, err := e.Repo.GetFarm(ctx, f.FarmID)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, membershipOf(farm), authz.ActionView); err != nil {
		return nil, err
	}
	return e.Repo.ListAnimals(ctx, f)
}

// UpdateAnimal applies field edits. The farm reference is immutable:
// callers cannot move an animal between farms, so no farm field exists
// on the update set.
func (e Engine) UpdateAnimal(ctx context.Context, actor authz.Actor, id string, upd repo.AnimalUpdate) (domain.Animal, error) {
	a, err := e.Repo.GetAnimal(ctx, id)
	if err != nil {
		return domain.Animal{}, err
	}
	f, err := e.Repo.GetFarm(ctx, a.FarmID)
	if err != nil {
		return domain.Animal{}, err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionUpdate); err != nil {
		return domain.Animal{}, err
	}
	if err := e.Repo.UpdateAnimal(ctx, id, upd, e.timestamp()); err != nil {
		return domain.Animal{}, err
	}
	updated, err := e.Repo.GetAnimal(ctx, id)
	if err != nil {
		return domain.Animal{}, err
	}
	metadata := map[string]any{}
	if upd.WeightKg != nil {
		metadata["weight"] = *upd.WeightKg
	}
	if upd.Status != nil {
		metadata["status"] = *upd.Status
	}
	e.Ledger.Record(ctx, domain.Activity{
		Type:        ledger.TypeAnimalUpdated,
		Action:      "updated",
		Description: fmt.Sprintf("%s updated: %s", updated.Type, updated.TagNumber),
		EntityType:  "animal",
		EntityID:    updated.ID,
		EntityName:  updated.TagNumber,
		ActorID:     actor.ID,
		FarmID:      updated.FarmID,
		Metadata:    metadata,
	})
	return updated, nil
}

func (e Engine) DeleteAnimal(ctx context.Context, actor authz.Actor, id string) error {
	a, err := e.Repo.GetAnimal(ctx, id)
	if err != nil {
		return err
	}
	f, err := e.Repo.GetFarm(ctx, a.FarmID)
	if err != nil {
		return err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionDelete); err != nil {
		return err
	}
	return e.Repo.DeleteAnimal(ctx, id)
}

type HealthRecordOptions struct {
	Date         string
	Kind         string
	Description  string
	Veterinarian string
	NextDue      *string
	WeightKg     *float64
}

// AddHealthRecord appends a health record and logs a health_check
// activity; when the visit also captured a weight it updates the
// animal and logs weight_recorded alongside.
func (e Engine) AddHealthRecord(ctx context.Context, actor authz.Actor, animalID string, opts HealthRecordOptions) (domain.Animal, error) {
	if opts.Kind == "" {
		return domain.Animal{}, errors.New("kind is required")
	}
	if opts.Description == "" {
		return domain.Animal{}, errors.New("description is required")
	}
	a, err := e.Repo.GetAnimal(ctx, animalID)
	if err != nil {
		return domain.Animal{}, err
	}
	f, err := e.Repo.GetFarm(ctx, a.FarmID)
	if err != nil {
		return domain.Animal{}, err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionUpdate); err != nil {
		return domain.Animal{}, err
	}
	if opts.Date == "" {
		opts.Date = e.timestamp()
	}
	rec := domain.HealthRecord{
		AnimalID:     animalID,
		Date:         opts.Date,
		Kind:         opts.Kind,
		Description:  opts.Description,
		Veterinarian: opts.Veterinarian,
		NextDue:      opts.NextDue,
	}
	if _, err := e.Repo.InsertHealthRecord(ctx, rec); err != nil {
		return domain.Animal{}, err
	}
	e.Ledger.Record(ctx, domain.Activity{
		Type:        ledger.TypeHealthCheck,
		Action:      opts.Kind,
		Description: fmt.Sprintf("Health record for %s: %s", a.TagNumber, opts.Description),
		EntityType:  "health",
		EntityID:    a.ID,
		EntityName:  a.TagNumber,
		ActorID:     actor.ID,
		FarmID:      a.FarmID,
		Metadata:    map[string]any{"kind": opts.Kind},
	})
	if opts.WeightKg != nil {
		if err := e.Repo.UpdateAnimal(ctx, animalID, repo.AnimalUpdate{WeightKg: opts.WeightKg}, e.timestamp()); err != nil {
			return domain.Animal{}, err
		}
		e.Ledger.Record(ctx, domain.Activity{
			Type:        ledger.TypeWeightRecorded,
			Action:      "weighed",
			Description: fmt.Sprintf("Weight recorded for %s: %.1f kg", a.TagNumber, *opts.WeightKg),
			EntityType:  "weight",
			EntityID:    a.ID,
			EntityName:  a.TagNumber,
			ActorID:     actor.ID,
			FarmID:      a.FarmID,
			Metadata:    map[string]any{"weight": *opts.WeightKg},
		})
	}
	return e.Repo.GetAnimal(ctx, animalID)
}

func (e Engine) AnimalStats(ctx context.Context, actor authz.Actor, farmID string) (repo.AnimalStats, error) {
	f, err := e.Repo.GetFarm(ctx, farmID)
	if err != nil {
		return repo.AnimalStats{}, err
	}
	if err := authz.Require(actor, membershipOf(f), authz.ActionView); err != nil {
		return repo.AnimalStats{}, err
	}
	return e.Repo.AnimalStatsByFarm(ctx, farmID)
}
