package server

import "farmsavvy/internal/domain"

type RegisterRequest struct {
	Name     string `json:"name" example:"Jane Doe"`
	Email    string `json:"email" format:"email"`
	Password string `json:"password" minLength:"6"`
	Role     string `json:"role,omitempty" enum:"admin,manager,worker"`
}

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type UpdateProfileRequest struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty" format:"email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" minLength:"6"`
}

type CreateFarmRequest struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  float64  `json:"latitude,omitempty"`
	Longitude float64  `json:"longitude,omitempty"`
	SizeAcres float64  `json:"size_acres,omitempty"`
	Types     []string `json:"types,omitempty"`
}

type UpdateFarmRequest struct {
	Name      *string  `json:"name,omitempty"`
	Address   *string  `json:"address,omitempty"`
	SizeAcres *float64 `json:"size_acres,omitempty"`
	Types     []string `json:"types,omitempty"`
	Active    *bool    `json:"active,omitempty"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role" enum:"manager,worker"`
}

type CreateAnimalRequest struct {
	FarmID      string  `json:"farm_id"`
	TagNumber   string  `json:"tag_number"`
	Name        string  `json:"name,omitempty"`
	Type        string  `json:"type" enum:"cattle,sheep,goat,pig,chicken,duck,turkey,other"`
	Breed       string  `json:"breed"`
	Gender      string  `json:"gender" enum:"male,female"`
	DateOfBirth string  `json:"date_of_birth" format:"date-time"`
	WeightKg    float64 `json:"weight_kg,omitempty"`
	Status      string  `json:"status,omitempty" enum:"healthy,sick,quarantine,sold,deceased"`
}

type UpdateAnimalRequest struct {
	TagNumber *string  `json:"tag_number,omitempty"`
	Name      *string  `json:"name,omitempty"`
	Type      *string  `json:"type,omitempty" enum:"cattle,sheep,goat,pig,chicken,duck,turkey,other"`
	Breed     *string  `json:"breed,omitempty"`
	Gender    *string  `json:"gender,omitempty" enum:"male,female"`
	WeightKg  *float64 `json:"weight_kg,omitempty"`
	Status    *string  `json:"status,omitempty" enum:"healthy,sick,quarantine,sold,deceased"`
}

type HealthRecordRequest struct {
	Date         string   `json:"date,omitempty" format:"date-time"`
	Kind         string   `json:"kind" enum:"vaccination,treatment,checkup"`
	Description  string   `json:"description"`
	Veterinarian string   `json:"veterinarian,omitempty"`
	NextDue      *string  `json:"next_due,omitempty" format:"date-time"`
	WeightKg     *float64 `json:"weight_kg,omitempty"`
}

type CreateTaskRequest struct {
	FarmID      string   `json:"farm_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty" enum:"feeding,cleaning,health,maintenance,harvest,other"`
	Priority    string   `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	DueDate     string   `json:"due_date" format:"date-time"`
	AssignedTo  []string `json:"assigned_to,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty" enum:"feeding,cleaning,health,maintenance,harvest,other"`
	Priority    *string  `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	Status      *string  `json:"status,omitempty" enum:"pending,in-progress,completed,cancelled"`
	DueDate     *string  `json:"due_date,omitempty" format:"date-time"`
	Notes       *string  `json:"notes,omitempty"`
	AssignedTo  []string `json:"assigned_to,omitempty"`
}

type ActivityPageResponse struct {
	Items  []domain.Activity `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

// APIKeyCreatedResponse carries the raw key exactly once.
type APIKeyCreatedResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key"`
	CreatedAt string `json:"created_at"`
}
