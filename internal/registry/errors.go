package registry

import "errors"

// Domain errors for the registry package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, registry.ErrInvalidMAC) {
//	    // reject the request
//	}
var (
	// ErrInvalidMAC is returned when a MAC address is empty after
	// normalisation.
	ErrInvalidMAC = errors.New("registry: invalid mac address")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("registry: invalid status")

	// ErrInvalidSensitivity is returned when a sensitivity value is not
	// recognised.
	ErrInvalidSensitivity = errors.New("registry: invalid sensitivity")

	// ErrPersist is returned when the store file could not be rewritten.
	// The in-memory record is still updated; callers decide whether to
	// surface the failure.
	ErrPersist = errors.New("registry: persist failed")
)
