package ecs

import "fmt"

// GroupID identifies an exclusive group. Every entity lives in exactly one group at a time.
type GroupID uint32

// EntityID is the row index of an entity inside its group. It changes whenever another row is
// compacted into its place or the entity moves to another group.
type EntityID uint32

// EGID is the physical location of an entity. It is only valid until the next drain.
type EGID struct {
	EntityID EntityID
	GroupID  GroupID
}

func (e EGID) String() string {
	return fmt.Sprintf("%d@%d", e.EntityID, e.GroupID)
}

// EntityReference is the stable handle of an entity. It stays valid across group transfers and
// compaction until the entity is removed, after which it resolves to nothing.
//
// UniqueID 0 is never handed out, so the zero value is InvalidReference and zeroed components
// holding a reference don't point at any entity.
type EntityReference struct {
	UniqueID uint32
	Version  uint32
}

// InvalidReference never resolves.
var InvalidReference = EntityReference{} //nolint:gochecknoglobals // sentinel

// IsValid reports whether r has a UniqueID that can be handed out. A valid reference may still be
// stale.
func (r EntityReference) IsValid() bool {
	return r.UniqueID != 0
}

func (r EntityReference) String() string {
	if !r.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%d:v%d", r.UniqueID, r.Version)
}
