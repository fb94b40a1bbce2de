package access

import "github.com/mwpdesign/PP2-sub001/pkg/types"

// Rank returns the seniority rank of a role. Unknown roles rank 0, below
// every known role, so they never gain privilege through comparison.
func Rank(role types.Role) int {
	return RoleRanks[role]
}

// KnownRole reports whether the role belongs to the fixed hierarchy
func KnownRole(role types.Role) bool {
	_, ok := RoleRanks[role]
	return ok
}

// IsSenior reports whether role a strictly outranks role b. Comparisons
// involving an unknown role return false (fail closed).
func IsSenior(a, b types.Role) bool {
	if !KnownRole(a) || !KnownRole(b) {
		return false
	}
	return RoleRanks[a] > RoleRanks[b]
}

// IsSameOrSenior reports whether role a ranks at least as high as role b.
// Comparisons involving an unknown role return false (fail closed).
func IsSameOrSenior(a, b types.Role) bool {
	if !KnownRole(a) || !KnownRole(b) {
		return false
	}
	return RoleRanks[a] >= RoleRanks[b]
}

// IsGlobalRole reports whether the role carries organization-wide oversight
func IsGlobalRole(role types.Role) bool {
	return GlobalRoles[role]
}
