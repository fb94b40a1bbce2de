package types

import "time"

// Role represents the different actor roles in the organizational hierarchy
type Role string

const (
	RoleMedicalStaff      Role = "medical_staff"
	RoleOfficeAdmin       Role = "office_admin"
	RoleDoctor            Role = "doctor"
	RoleSales             Role = "sales"
	RoleDistributor       Role = "distributor"
	RoleMasterDistributor Role = "master_distributor"
	RoleCHPAdmin          Role = "chp_admin"
	RoleAdmin             Role = "admin"
)

// Actor represents a participant in the organizational hierarchy
type Actor struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	ParentID  string    `json:"parent_id,omitempty" db:"parent_id"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ActorClaims represents JWT token claims carried by authenticated requests
type ActorClaims struct {
	ActorID  string `json:"actor_id"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	ParentID string `json:"parent_id,omitempty"`
}

// ActorRegistrationRequest represents actor registration data
type ActorRegistrationRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Role     Role   `json:"role" validate:"required"`
	ParentID string `json:"parent_id,omitempty"`
}

// ActorUpdates represents updates to actor information
type ActorUpdates struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// ActorSearchCriteria represents search criteria for actors
type ActorSearchCriteria struct {
	Name     string `json:"name,omitempty"`
	Role     Role   `json:"role,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
