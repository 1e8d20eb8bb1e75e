package middleware

import (
	"net/http"
	"slices"

	"github.com/MrEthical07/adminauth"
)

// RequireRole returns a guard that also answers 403 unless the identity has one of roles.
func RequireRole(validator SessionValidator, roles ...adminauth.Role) func(http.Handler) http.Handler {
	return guard(validator, func(id adminauth.Identity) bool {
		return slices.Contains(roles, id.Role)
	})
}

// RequireSuperAdmin restricts the route to super_admin sessions.
func RequireSuperAdmin(validator SessionValidator) func(http.Handler) http.Handler {
	return RequireRole(validator, adminauth.RoleSuperAdmin)
}
