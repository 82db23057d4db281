// Package access provides the owner/poster predicates consulted by every mutating call.
package access

import "errors"

// ErrUnauthorized indicates that the caller lacks the required role.
var ErrUnauthorized = errors.New("unauthorized")
