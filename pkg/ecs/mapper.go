package ecs

import (
	"github.com/rotisserie/eris"
)

// Mapper gives random access to component T of one group. Like query buffers it aliases storage
// and is invalidated by the next drain or build.
type Mapper[T Component] struct {
	group GroupID
	col   *column[T]
}

// MapperFor returns a mapper of T over g. It reports false if g doesn't exist or doesn't carry T.
func MapperFor[T Component](db *Database, g GroupID) (Mapper[T], bool) {
	grp, ok := db.group(g)
	if !ok {
		return Mapper[T]{}, false
	}
	col, ok := columnOf[T](db, grp)
	if !ok {
		return Mapper[T]{}, false
	}
	return Mapper[T]{group: g, col: col}, true
}

// Get returns the component of the entity at row id.
func (m Mapper[T]) Get(id EntityID) (*T, bool) {
	if m.col == nil || int(id) >= len(m.col.components) {
		return nil, false
	}
	return &m.col.components[id], true
}

// GetEGID returns the component of the entity at egid. It reports false when egid is outside the
// mapper's group.
func (m Mapper[T]) GetEGID(egid EGID) (*T, bool) {
	if egid.GroupID != m.group {
		return nil, false
	}
	return m.Get(egid.EntityID)
}

// Len returns the number of entities in the mapped group.
func (m Mapper[T]) Len() int {
	if m.col == nil {
		return 0
	}
	return len(m.col.components)
}

// ReferenceMapper resolves references to component T across every group carrying it.
type ReferenceMapper[T Component] struct {
	db *Database
}

// ReferenceMapperFor returns a reference mapper of T.
func ReferenceMapperFor[T Component](db *Database) ReferenceMapper[T] {
	return ReferenceMapper[T]{db: db}
}

// Get returns the component of the entity named by ref. It reports false for stale references and
// for entities whose group doesn't carry T.
func (m ReferenceMapper[T]) Get(ref EntityReference) (*T, bool) {
	egid, ok := m.db.refs.Resolve(ref)
	if !ok {
		return nil, false
	}
	grp, ok := m.db.group(egid.GroupID)
	if !ok {
		return nil, false
	}
	col, ok := columnOf[T](m.db, grp)
	if !ok || int(egid.EntityID) >= len(col.components) {
		return nil, false
	}
	return &col.components[egid.EntityID], true
}

// Get returns a copy of component T of the entity named by ref.
func Get[T Component](db *Database, ref EntityReference) (T, error) {
	var zero T
	ptr, err := lookup[T](db, ref)
	if err != nil {
		return zero, eris.Wrapf(err, "failed to get %s", zero.Name())
	}
	return *ptr, nil
}

// Set overwrites component T of the entity named by ref.
func Set[T Component](db *Database, ref EntityReference, value T) error {
	ptr, err := lookup[T](db, ref)
	if err != nil {
		return eris.Wrapf(err, "failed to set %s", value.Name())
	}
	*ptr = value
	return nil
}

func lookup[T Component](db *Database, ref EntityReference) (*T, error) {
	egid, err := db.refs.MustResolve(ref)
	if err != nil {
		return nil, err
	}
	grp, ok := db.group(egid.GroupID)
	if !ok {
		return nil, eris.Wrapf(ErrGroupNotFound, "group %d", egid.GroupID)
	}
	col, ok := columnOf[T](db, grp)
	if !ok {
		var zero T
		return nil, eris.Wrapf(ErrComponentNotFound, "%s in group %s", zero.Name(), grp.name)
	}
	return &col.components[egid.EntityID], nil
}
