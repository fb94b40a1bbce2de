package access

import (
	"fmt"

	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// onBehalfOfPhrases holds the role-keyed default phrase used when no
// specific actor name is supplied for a read-only view
var onBehalfOfPhrases = map[types.Role]string{
	types.RoleMedicalStaff:      "medical staff",
	types.RoleOfficeAdmin:       "office administrators",
	types.RoleDoctor:            "healthcare providers",
	types.RoleSales:             "sales representatives",
	types.RoleDistributor:       "regional distributors",
	types.RoleMasterDistributor: "master distributors",
	types.RoleCHPAdmin:          "CHP administrators",
	types.RoleAdmin:             "administrators",
}

// IsUpperRole reports whether the viewing role sits strictly above the role
// a page was built for
func IsUpperRole(userRole, targetRole types.Role) bool {
	return IsSenior(userRole, targetRole)
}

// ShouldApplyReadOnly reports whether a view built for targetRole must be
// rendered read-only for an actor holding userRole. Pure and stateless:
// identical inputs always yield identical outputs.
func ShouldApplyReadOnly(userRole, targetRole types.Role) bool {
	return IsUpperRole(userRole, targetRole)
}

// OnBehalfOfText returns the human-readable annotation for a senior actor
// operating inside a junior role's context. A supplied specificActor is
// returned verbatim; otherwise a role-keyed default phrase is used.
func OnBehalfOfText(userRole, targetRole types.Role, specificActor string) string {
	if specificActor != "" {
		return specificActor
	}
	if phrase, ok := onBehalfOfPhrases[targetRole]; ok {
		return phrase
	}
	return "team members"
}

// BannerText returns the banner copy shown on a read-only page
func BannerText(userRole, targetRole types.Role, specificActor string) string {
	return fmt.Sprintf("You are viewing this page in read-only mode on behalf of %s.",
		OnBehalfOfText(userRole, targetRole, specificActor))
}
