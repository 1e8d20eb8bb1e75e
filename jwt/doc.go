// Package jwt issues and validates stateless HS256 session tokens for administrators.
//
// A [Manager] is bound to one signing secret for its whole lifetime. Rotating the secret
// means building a new Manager; every token signed by the old one then fails validation,
// which is the only way to revoke outstanding sessions.
//
// Time is always passed in explicitly so expiry can be checked against any clock.
package jwt
