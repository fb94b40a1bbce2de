package access

import "github.com/mwpdesign/PP2-sub001/pkg/types"

// SeniorityOrder lists every known role from most junior to most senior.
// The order is fixed at deploy time and never mutated at runtime.
var SeniorityOrder = []types.Role{
	types.RoleMedicalStaff,
	types.RoleOfficeAdmin,
	types.RoleDoctor,
	types.RoleSales,
	types.RoleDistributor,
	types.RoleMasterDistributor,
	types.RoleCHPAdmin,
	types.RoleAdmin,
}

// RoleRanks maps each role to its seniority rank (higher number = more senior)
var RoleRanks = map[types.Role]int{
	types.RoleMedicalStaff:      1,
	types.RoleOfficeAdmin:       2,
	types.RoleDoctor:            3,
	types.RoleSales:             4,
	types.RoleDistributor:       5,
	types.RoleMasterDistributor: 6,
	types.RoleCHPAdmin:          7,
	types.RoleAdmin:             8,
}

// GlobalRoles have organization-wide oversight and bypass the visibility filter
var GlobalRoles = map[types.Role]bool{
	types.RoleAdmin:    true,
	types.RoleCHPAdmin: true,
}

// Audit action types
const (
	ActionReadOnlyView     = "read_only_view"
	ActionVisibilityFilter = "visibility_filter"
	ActionDownlineResolve  = "downline_resolve"
)

// Error codes for access control operations
const (
	ErrorCodeUnknownRole          = "ACCESS_001"
	ErrorCodeUnknownActor         = "ACCESS_002"
	ErrorCodeHierarchyCycle       = "ACCESS_003"
	ErrorCodeDirectoryFailure     = "ACCESS_004"
	ErrorCodeResolutionTimeout    = "ACCESS_005"
	ErrorCodeMissingOwnership     = "ACCESS_006"
	ErrorCodeAuditWriteFailed     = "ACCESS_007"
	ErrorCodeInvalidConfiguration = "ACCESS_008"
	ErrorCodeSystemError          = "ACCESS_009"
)

// Default configuration values
const (
	DefaultDownlineCacheTTL    = 300 // 5 minutes in seconds
	DefaultResolveTimeout      = 2   // seconds
	DefaultAuditBufferSize     = 1000
	DefaultAlertBufferSize     = 500
	DefaultAuditRetryDelayMs   = 250
	DefaultAuditQueryLimit     = 50
	MaxAuditQueryLimit         = 500
	DefaultRecordFetchLimit    = 1000
	DefaultRecordPageSize      = 50
	MaxRecordPageSize          = 200
)
