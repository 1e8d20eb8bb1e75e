package password

import "errors"

var (
	// ErrWeakPassword is returned by Hash when the plaintext is shorter than the minimum length.
	ErrWeakPassword = errors.New("password: below minimum length")
	// ErrPasswordTooLong is returned by Hash when the plaintext exceeds what the hasher can
	// distinguish (72 bytes for bcrypt).
	ErrPasswordTooLong = errors.New("password: too long")
	// ErrMalformedHash is returned when a stored hash cannot be parsed.
	ErrMalformedHash = errors.New("password: malformed hash")
	// ErrUnsupportedHash is returned when no configured hasher recognizes a stored hash.
	ErrUnsupportedHash = errors.New("password: unsupported hash format")
)
