/**
 * @description
 * Authorization primitives shared by every service in this package. An
 * Identity is the authenticated caller extracted from a validated JWT; the
 * guard helpers enforce the ownership policy: a caller may act on their own
 * resources, an admin may act on anyone's.
 */

package app

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrUnauthenticated means no valid identity accompanied the request.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden means the identity is valid but not allowed to touch the
	// target resource.
	ErrForbidden = errors.New("access denied")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Admin  bool
}

// RequireAdmin allows only administrators through.
func RequireAdmin(caller Identity) error {
	if !caller.Admin {
		return ErrForbidden
	}
	return nil
}

// RequireOwnerOrAdmin allows the resource owner and administrators through.
func RequireOwnerOrAdmin(caller Identity, ownerID uuid.UUID) error {
	if caller.Admin || caller.UserID == ownerID {
		return nil
	}
	return ErrForbidden
}
