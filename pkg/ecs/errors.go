package ecs

import "github.com/rotisserie/eris"

var (
	// ErrStaleReference is returned when a reference's version no longer matches the slot it points
	// to, i.e. the entity it named has been removed.
	ErrStaleReference = eris.New("stale entity reference")

	// ErrInvalidReference is returned when InvalidReference is used where a live reference is
	// required.
	ErrInvalidReference = eris.New("invalid entity reference")

	// ErrEntityNotFound is returned when an EGID does not name a live row.
	ErrEntityNotFound = eris.New("entity does not exist")

	// ErrGroupNotFound is returned when operating on a group id that was never created.
	ErrGroupNotFound = eris.New("group does not exist")

	// ErrDuplicateGroup is returned when creating a group whose name is already taken.
	ErrDuplicateGroup = eris.New("group already exists")

	// ErrComponentNameConflict is returned when two component types share a name.
	ErrComponentNameConflict = eris.New("component name already used by another type")

	// ErrComponentNotFound is returned when a group does not carry the requested component.
	ErrComponentNotFound = eris.New("component not found")

	// ErrSlotOutOfRange is returned when enqueueing into a slot the queue doesn't have.
	ErrSlotOutOfRange = eris.New("queue slot out of range")

	// ErrInvariantViolation is returned in strict mode when the reverse map and group storage
	// disagree about which reference lives at a row.
	ErrInvariantViolation = eris.New("reference map invariant violation")

	// ErrReferencesExhausted is returned when every unique id has been handed out.
	ErrReferencesExhausted = eris.New("entity reference space exhausted")
)
