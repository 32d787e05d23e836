package domain

// Role of a user account.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleWorker  = "worker"
)

type User struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"-"`
	Role         string   `json:"role" enum:"admin,manager,worker"`
	Farms        []string `json:"farms,omitempty"`
	Active       bool     `json:"active"`
	LastLogin    *string  `json:"last_login,omitempty" format:"date-time"`
	CreatedAt    string   `json:"created_at" format:"date-time"`
	UpdatedAt    string   `json:"updated_at" format:"date-time"`
}

type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Farm struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	OwnerID   string   `json:"owner_id"`
	Managers  []string `json:"managers"`
	Workers   []string `json:"workers"`
	Location  Location `json:"location"`
	SizeAcres float64  `json:"size_acres"`
	Types     []string `json:"types,omitempty"`
	Active    bool     `json:"active"`
	CreatedAt string   `json:"created_at" format:"date-time"`
	UpdatedAt string   `json:"updated_at" format:"date-time"`
}

type HealthRecord struct {
	ID           int64   `json:"id"`
	AnimalID     string  `json:"animal_id"`
	Date         string  `json:"date" format:"date-time"`
	Kind         string  `json:"kind" enum:"vaccination,treatment,checkup"`
	Description  string  `json:"description"`
	Veterinarian string  `json:"veterinarian,omitempty"`
	NextDue      *string `json:"next_due,omitempty" format:"date-time"`
}

type Animal struct {
	ID            string         `json:"id"`
	FarmID        string         `json:"farm_id"`
	TagNumber     string         `json:"tag_number"`
	Name          string         `json:"name,omitempty"`
	Type          string         `json:"type" enum:"cattle,sheep,goat,pig,chicken,duck,turkey,other"`
	Breed         string         `json:"breed"`
	Gender        string         `json:"gender" enum:"male,female"`
	DateOfBirth   string         `json:"date_of_birth" format:"date-time"`
	WeightKg      float64        `json:"weight_kg"`
	Status        string         `json:"status" enum:"healthy,sick,quarantine,sold,deceased"`
	HealthRecords []HealthRecord `json:"health_records,omitempty"`
	CreatedAt     string         `json:"created_at" format:"date-time"`
	UpdatedAt     string         `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID          string   `json:"id"`
	FarmID      string   `json:"farm_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category" enum:"feeding,cleaning,health,maintenance,harvest,other"`
	Priority    string   `json:"priority" enum:"low,medium,high,urgent"`
	Status      string   `json:"status" enum:"pending,in-progress,completed,cancelled"`
	AssignedTo  []string `json:"assigned_to"`
	DueDate     string   `json:"due_date" format:"date-time"`
	Notes       string   `json:"notes,omitempty"`
	CompletedAt *string  `json:"completed_at,omitempty" format:"date-time"`
	CompletedBy *string  `json:"completed_by,omitempty"`
	CreatedBy   string   `json:"created_by"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

// Activity is one row of the append-only audit ledger. Rows are never
// updated or deleted; Seq is assigned by the store and breaks ordering
// ties between rows created in the same instant.
type Activity struct {
	Seq         int64          `json:"seq"`
	Type        string         `json:"type" enum:"animal_added,animal_updated,task_completed,health_check,weight_recorded,farm_created,user_joined"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	EntityType  string         `json:"entity_type" enum:"animal,task,farm,user,health,weight"`
	EntityID    string         `json:"entity_id"`
	EntityName  string         `json:"entity_name,omitempty"`
	ActorID     string         `json:"actor_id"`
	FarmID      string         `json:"farm_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
