package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"farmsavvy/internal/domain"
	"farmsavvy/internal/engine"
	"farmsavvy/internal/ledger"
	"farmsavvy/internal/repo"
)

type userBody struct {
	Body domain.User `json:"body"`
}

func newUserBody(u domain.User) *userBody { return &userBody{Body: u} }

type farmBody struct {
	Body domain.Farm `json:"body"`
}

func newFarmBody(f domain.Farm) *farmBody { return &farmBody{Body: f} }

type animalBody struct {
	Body domain.Animal `json:"body"`
}

func newAnimalBody(a domain.Animal) *animalBody { return &animalBody{Body: a} }

type taskBody struct {
	Body domain.Task `json:"body"`
}

func newTaskBody(t domain.Task) *taskBody { return &taskBody{Body: t} }

func registerFarms(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-farm",
		Method:        http.MethodPost,
		Path:          "/farms",
		Summary:       "Create farm",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateFarmRequest `json:"body"`
	}) (*farmBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.CreateFarm(ctx, actor, engine.FarmCreateOptions{
			Name:      input.Body.Name,
			Address:   input.Body.Address,
			Latitude:  input.Body.Latitude,
			Longitude: input.Body.Longitude,
			SizeAcres: input.Body.SizeAcres,
			Types:     input.Body.Types,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return newFarmBody(f), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-farms",
		Method:      http.MethodGet,
		Path:        "/farms",
		Summary:     "List farms visible to the caller",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Farm `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListFarms(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Farm `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-farm",
		Method:      http.MethodGet,
		Path:        "/farms/{farm_id}",
		Summary:     "Get farm",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FarmID string `path:"farm_id"`
	}) (*farmBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.GetFarm(ctx, actor, input.FarmID)
		if err != nil {
			return nil, handleError(err)
		}
		return newFarmBody(f), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-farm",
		Method:      http.MethodPatch,
		Path:        "/farms/{farm_id}",
		Summary:     "Update farm",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FarmID string            `path:"farm_id"`
		Body   UpdateFarmRequest `json:"body"`
	}) (*farmBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.UpdateFarm(ctx, actor, input.FarmID, repo.FarmUpdate{
			Name:      input.Body.Name,
			Address:   input.Body.Address,
			SizeAcres: input.Body.SizeAcres,
			Types:     input.Body.Types,
			Active:    input.Body.Active,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return newFarmBody(f), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-farm-member",
		Method:        http.MethodPost,
		Path:          "/farms/{farm_id}/members",
		Summary:       "Add a manager or worker to a farm",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FarmID string           `path:"farm_id"`
		Body   AddMemberRequest `json:"body"`
	}) (*farmBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.AddFarmMember(ctx, actor, input.FarmID, input.Body.UserID, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return newFarmBody(f), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-farm-member",
		Method:      http.MethodDelete,
		Path:        "/farms/{farm_id}/members/{user_id}",
		Summary:     "Remove a member from a farm",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FarmID string `path:"farm_id"`
		UserID string `path:"user_id"`
	}) (*farmBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.RemoveFarmMember(ctx, actor, input.FarmID, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return newFarmBody(f), nil
	})
}

func registerAnimals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-animal",
		Method:        http.MethodPost,
		Path:          "/animals",
		Summary:       "Add an animal to a farm",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateAnimalRequest `json:"body"`
	}) (*animalBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateAnimal(ctx, actor, engine.AnimalCreateOptions{
			FarmID:      input.Body.FarmID,
			TagNumber:   input.Body.TagNumber,
			Name:        input.Body.Name,
			Type:        input.Body.Type,
			Breed:       input.Body.Breed,
			Gender:      input.Body.Gender,
			DateOfBirth: input.Body.DateOfBirth,
			WeightKg:    input.Body.WeightKg,
			Status:      input.Body.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return newAnimalBody(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-animals",
		Method:      http.MethodGet,
		Path:        "/animals",
		Summary:     "List animals, scoped to a farm unless admin",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FarmID string `query:"farm_id"`
		Type   string `query:"type"`
		Status string `query:"status"`
	}) (*struct {
		Body []domain.Animal `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListAnimals(ctx, actor, repo.AnimalFilters{
			FarmID: input.FarmID,
			Type:   input.Type,
			Status: input.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Animal `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-animal",
		Method:      http.MethodGet,
		Path:        "/animals/{animal_id}",
		Summary:     "Get animal",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AnimalID string `path:"animal_id"`
	}) (*animalBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.GetAnimal(ctx, actor, input.AnimalID)
		if err != nil {
			return nil, handleError(err)
		}
		return newAnimalBody(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-animal",
		Method:      http.MethodPut,
		Path:        "/animals/{animal_id}",
		Summary:     "Update animal fields",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AnimalID string              `path:"animal_id"`
		Body     UpdateAnimalRequest `json:"body"`
	}) (*animalBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.UpdateAnimal(ctx, actor, input.AnimalID, repo.AnimalUpdate{
			TagNumber: input.Body.TagNumber,
			Name:      input.Body.Name,
			Type:      input.Body.Type,
			Breed:     input.Body.Breed,
			Gender:    input.Body.Gender,
			WeightKg:  input.Body.WeightKg,
			Status:    input.Body.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return newAnimalBody(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-animal",
		Method:      http.MethodDelete,
		Path:        "/animals/{animal_id}",
		Summary:     "Delete animal",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AnimalID string `path:"animal_id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAnimal(ctx, actor, input.AnimalID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-health-record",
		Method:        http.MethodPost,
		Path:          "/animals/{animal_id}/health-records",
		Summary:       "Append a health record",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AnimalID string              `path:"animal_id"`
		Body     HealthRecordRequest `json:"body"`
	}) (*animalBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.AddHealthRecord(ctx, actor, input.AnimalID, engine.HealthRecordOptions{
			Date:         input.Body.Date,
			Kind:         input.Body.Kind,
			Description:  input.Body.Description,
			Veterinarian: input.Body.Veterinarian,
			NextDue:      input.Body.NextDue,
			WeightKg:     input.Body.WeightKg,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return newAnimalBody(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "animal-stats",
		Method:      http.MethodGet,
		Path:        "/farms/{farm_id}/animals/stats",
		Summary:     "Herd stats for a farm",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FarmID string `path:"farm_id"`
	}) (*struct {
		Body repo.AnimalStats `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		stats, err := e.AnimalStats(ctx, actor, input.FarmID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body repo.AnimalStats `json:"body"`
		}{Body: stats}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*taskBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, actor, engine.TaskCreateOptions{
			FarmID:      input.Body.FarmID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Category:    input.Body.Category,
			Priority:    input.Body.Priority,
			DueDate:     input.Body.DueDate,
			AssignedTo:  input.Body.AssignedTo,
			Notes:       input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return newTaskBody(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-farm-tasks",
		Method:      http.MethodGet,
		Path:        "/farms/{farm_id}/tasks",
		Summary:     "List a farm's tasks",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FarmID     string `path:"farm_id"`
		Status     string `query:"status"`
		Category   string `query:"category"`
		Priority   string `query:"priority"`
		AssignedTo string `query:"assigned_to"`
		DueFrom    string `query:"due_from"`
		DueTo      string `query:"due_to"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListTasks(ctx, actor, repo.TaskFilters{
			FarmID:     input.FarmID,
			Status:     input.Status,
			Category:   input.Category,
			Priority:   input.Priority,
			AssignedTo: input.AssignedTo,
			DueFrom:    input.DueFrom,
			DueTo:      input.DueTo,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "today-tasks",
		Method:      http.MethodGet,
		Path:        "/farms/{farm_id}/tasks/today",
		Summary:     "Tasks due today",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FarmID string `path:"farm_id"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.TodayTasks(ctx, actor, input.FarmID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-stats",
		Method:      http.MethodGet,
		Path:        "/farms/{farm_id}/tasks/stats",
		Summary:     "Today's task counts",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FarmID string `path:"farm_id"`
	}) (*struct {
		Body repo.TaskStats `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		stats, err := e.TaskStats(ctx, actor, input.FarmID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body repo.TaskStats `json:"body"`
		}{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*taskBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTask(ctx, actor, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return newTaskBody(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task fields",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*taskBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTask(ctx, actor, input.TaskID, engine.TaskUpdateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Category:    input.Body.Category,
			Priority:    input.Body.Priority,
			Status:      input.Body.Status,
			DueDate:     input.Body.DueDate,
			Notes:       input.Body.Notes,
			AssignedTo:  input.Body.AssignedTo,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return newTaskBody(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}/complete",
		Summary:     "Mark task completed",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*taskBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CompleteTask(ctx, actor, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return newTaskBody(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "uncomplete-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}/uncomplete",
		Summary:     "Revert a completed task to pending",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*taskBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UncompleteTask(ctx, actor, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return newTaskBody(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, actor, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerActivities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "farm-activities",
		Method:      http.MethodGet,
		Path:        "/farms/{farm_id}/activities",
		Summary:     "A farm's activity ledger, newest first",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FarmID string `path:"farm_id"`
		Limit  int    `query:"limit" minimum:"1" maximum:"100"`
		Offset int    `query:"offset" minimum:"0"`
	}) (*struct {
		Body ActivityPageResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		page := ledger.Page{Limit: input.Limit, Offset: input.Offset}
		items, total, err := e.ActivitiesByFarm(ctx, actor, input.FarmID, page)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActivityPageResponse `json:"body"`
		}{Body: activityPage(items, total, page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-activities",
		Method:      http.MethodGet,
		Path:        "/users/me/activities",
		Summary:     "The caller's activity ledger, newest first",
	}, func(ctx context.Context, input *struct {
		Limit  int `query:"limit" minimum:"1" maximum:"100"`
		Offset int `query:"offset" minimum:"0"`
	}) (*struct {
		Body ActivityPageResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		page := ledger.Page{Limit: input.Limit, Offset: input.Offset}
		items, total, err := e.ActivitiesByUser(ctx, actor, page)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActivityPageResponse `json:"body"`
		}{Body: activityPage(items, total, page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activity-stats",
		Method:      http.MethodGet,
		Path:        "/farms/{farm_id}/activities/stats",
		Summary:     "Activity counts by type over a trailing window",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FarmID string `path:"farm_id"`
		Days   int    `query:"days" minimum:"0" maximum:"365"`
	}) (*struct {
		Body map[string]int `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		stats, err := e.ActivityStats(ctx, actor, input.FarmID, input.Days)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int `json:"body"`
		}{Body: stats}, nil
	})
}

func activityPage(items []domain.Activity, total int, page ledger.Page) ActivityPageResponse {
	if page.Limit <= 0 {
		page.Limit = 20
	}
	if items == nil {
		items = []domain.Activity{}
	}
	return ActivityPageResponse{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create an API key for the caller",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyCreatedResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		raw := uuid.NewString() + uuid.NewString()
		k := domain.APIKey{
			ID:        uuid.NewString(),
			UserID:    actor.ID,
			Name:      input.Body.Name,
			KeyHash:   repo.HashAPIKey(raw),
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertAPIKey(ctx, k); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyCreatedResponse `json:"body"`
		}{Body: APIKeyCreatedResponse{ID: k.ID, Name: k.Name, Key: raw, CreatedAt: k.CreatedAt}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List the caller's API keys",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.APIKey `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListAPIKeys(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.APIKey `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{key_id}",
		Summary:     "Delete one of the caller's API keys",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.KeyID, actor.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
