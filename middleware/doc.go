// Package middleware exposes net/http guards that authenticate admin requests through
// adminauth.Engine session validation.
//
// # Guards
//
//   - [Guard] validates the session token and injects the [adminauth.Identity].
//   - [RequireRole] additionally restricts the route to the given roles.
//   - [RequireSuperAdmin] is RequireRole for super_admin only.
//
// The token is read from the Authorization bearer header, then from the [CookieName]
// cookie.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the engine).
//   - Tell the client why a token was rejected.
package middleware
