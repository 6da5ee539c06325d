// Package access contains the file access decision engine. Decide is a pure
// function over an already-loaded file and an already-resolved caller id; it
// performs no I/O and mutates nothing.
package access

import (
	"net/http"

	"fileshare/internal/model"
)

// Decision is the outcome of an access check.
type Decision int

const (
	Allow Decision = iota
	DenyNotOwner
	DenyUnauthenticated
	DenyBlocked
	DenyNotInvited
)

// Anonymous is the caller id of an unauthenticated request.
const Anonymous = ""

// Decide evaluates whether callerID may act on f. requireOwner marks
// operations (delete, metadata updates) that only the owner may perform.
//
// The order encodes the policy: ownership always wins; ownership-required
// actions never distinguish anonymous from wrong user; public files need no
// identity; restricted files admit any authenticated non-blocked user;
// private files admit only invited users.
func Decide(f *model.File, callerID string, requireOwner bool) Decision {
	if callerID != Anonymous && callerID == f.Owner {
		return Allow
	}
	if requireOwner {
		return DenyNotOwner
	}
	switch f.Privacy {
	case model.PrivacyPublic:
		return Allow
	case model.PrivacyRestricted:
		if callerID == Anonymous {
			return DenyUnauthenticated
		}
		if f.IsBlocked(callerID) {
			return DenyBlocked
		}
		return Allow
	case model.PrivacyPrivate:
		if callerID == Anonymous {
			return DenyUnauthenticated
		}
		if f.IsInvited(callerID) {
			return Allow
		}
		return DenyNotInvited
	default:
		// Unknown tier in storage: fail closed.
		return DenyNotInvited
	}
}

// Allowed reports whether the decision grants access.
func (d Decision) Allowed() bool { return d == Allow }

// Status maps a denial to its HTTP status code.
func (d Decision) Status() int {
	if d == DenyUnauthenticated {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

// Reason is the client-safe denial reason.
func (d Decision) Reason() string {
	switch d {
	case Allow:
		return "granted"
	case DenyNotOwner:
		return "user is not the owner of this file"
	case DenyUnauthenticated:
		return "user is not authenticated"
	case DenyBlocked:
		return "user is in the block list of this file"
	case DenyNotInvited:
		return "user is not in the invited list of this file"
	default:
		return "access denied"
	}
}

// RoleAllowed reports whether role is in the allowed set. An empty set
// defaults to admin only.
func RoleAllowed(role model.Role, allowed ...model.Role) bool {
	if len(allowed) == 0 {
		allowed = []model.Role{model.RoleAdmin}
	}
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}
