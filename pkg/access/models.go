package access

import (
	"time"

	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// ViewPermissionMode represents the two states a wrapped view can take
type ViewPermissionMode string

const (
	ModeFullAccess ViewPermissionMode = "FULL_ACCESS"
	ModeReadOnly   ViewPermissionMode = "READ_ONLY"
)

// ControlCategory classifies interactive controls for the read-only
// allow-list. Categories outside this set are disabled under READ_ONLY.
type ControlCategory string

const (
	ControlCommunication ControlCategory = "communication"
	ControlNavigation    ControlCategory = "navigation"
	ControlSearch        ControlCategory = "search"
	ControlFilter        ControlCategory = "filter"
	ControlPagination    ControlCategory = "pagination"
	ControlSort          ControlCategory = "sort"
)

// AllowedControlCategories is the positive allow-list of categories that
// stay interactive under READ_ONLY. Untagged controls are never allowed.
var AllowedControlCategories = map[ControlCategory]bool{
	ControlCommunication: true,
	ControlNavigation:    true,
	ControlSearch:        true,
	ControlFilter:        true,
	ControlPagination:    true,
	ControlSort:          true,
}

// Control declares an interactive element of a wrapped view together with
// the capability category it opted into. An empty category means the
// control is untagged and stays read-only by default.
type Control struct {
	ID       string          `json:"id"`
	Category ControlCategory `json:"category,omitempty"`
}

// AccessDecision represents the ephemeral outcome of a visibility check
// for a single record. It is recomputed on every read and never persisted.
type AccessDecision struct {
	Visible          bool     `json:"visible"`
	AllowedDoctorIDs []string `json:"allowed_doctor_ids,omitempty"`
	Reason           string   `json:"reason"`
}

// FilterResult represents the outcome of filtering a record collection
type FilterResult struct {
	Visible          []*types.WorkflowRecord `json:"visible"`
	AllowedDoctorIDs []string                `json:"allowed_doctor_ids"`
	Dropped          int                     `json:"dropped"`
}

// GrantRequest represents a view declaring itself for access-mode wrapping.
// Controls is the complete manifest of the view's interactive elements.
type GrantRequest struct {
	Resource      string     `json:"resource"`
	TargetRole    types.Role `json:"target_role"`
	Controls      []Control  `json:"controls,omitempty"`
	SpecificActor string     `json:"specific_actor,omitempty"`
}

// ViewGrant represents the computed access mode for one view. The grant is
// computed once on first render and held fixed for the view's lifetime; a
// change of the acting role requires a fresh activation.
type ViewGrant struct {
	Mode        ViewPermissionMode `json:"mode"`
	Resource    string             `json:"resource"`
	ActorRole   types.Role         `json:"actor_role"`
	TargetRole  types.Role         `json:"target_role"`
	OnBehalfOf  string             `json:"on_behalf_of,omitempty"`
	Banner      string             `json:"banner,omitempty"`
	Controls    map[string]bool    `json:"controls,omitempty"`
	ActivatedAt time.Time          `json:"activated_at"`
}

// IsControlEnabled reports whether the named control stays interactive
// under this grant. Under READ_ONLY, controls absent from the manifest are
// disabled; under FULL_ACCESS every control is enabled.
func (g *ViewGrant) IsControlEnabled(controlID string) bool {
	if g.Mode == ModeFullAccess {
		return true
	}
	return g.Controls[controlID]
}

// AuditEntry represents one append-only audit record. Entries are immutable
// once written.
type AuditEntry struct {
	ID         string                 `json:"id"`
	ActorID    string                 `json:"actor_id"`
	ActorRole  types.Role             `json:"actor_role"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	TargetRole types.Role             `json:"target_role,omitempty"`
	OnBehalfOf string                 `json:"on_behalf_of,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// AuditFilter represents filters for audit log queries
type AuditFilter struct {
	ActorID    string    `json:"actor_id,omitempty"`
	Action     string    `json:"action,omitempty"`
	Resource   string    `json:"resource,omitempty"`
	TargetRole string    `json:"target_role,omitempty"`
	StartTime  time.Time `json:"start_time,omitempty"`
	EndTime    time.Time `json:"end_time,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	Offset     int       `json:"offset,omitempty"`
}

// CacheStatistics tracks downline cache effectiveness
type CacheStatistics struct {
	Entries       int       `json:"entries"`
	Hits          uint64    `json:"hits"`
	Misses        uint64    `json:"misses"`
	Invalidations uint64    `json:"invalidations"`
	LastSwap      time.Time `json:"last_swap,omitempty"`
}
