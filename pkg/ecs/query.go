package ecs

import "iter"

// Buffers1 holds the component buffers of one group. Buffers alias group storage: writes go
// straight to the entities, and the buffers are invalidated by the next drain or build.
type Buffers1[A Component] struct {
	First []A
}

// Len returns the number of entities in the buffers.
func (b Buffers1[A]) Len() int { return len(b.First) }

// Buffers2 holds the component buffers of one group, index aligned.
type Buffers2[A, B Component] struct {
	First  []A
	Second []B
}

// Len returns the number of entities in the buffers.
func (b Buffers2[A, B]) Len() int { return len(b.First) }

// Buffers3 holds the component buffers of one group, index aligned.
type Buffers3[A, B, C Component] struct {
	First  []A
	Second []B
	Third  []C
}

// Len returns the number of entities in the buffers.
func (b Buffers3[A, B, C]) Len() int { return len(b.First) }

// Buffers4 holds the component buffers of one group, index aligned.
type Buffers4[A, B, C, D Component] struct {
	First  []A
	Second []B
	Third  []C
	Fourth []D
}

// Len returns the number of entities in the buffers.
func (b Buffers4[A, B, C, D]) Len() int { return len(b.First) }

// Query1 returns the buffers of A in group g. It reports false if g doesn't exist or doesn't carry
// A. An existing empty group yields empty buffers and true.
func Query1[A Component](db *Database, g GroupID) (Buffers1[A], bool) {
	grp, ok := db.group(g)
	if !ok {
		return Buffers1[A]{}, false
	}
	a, ok := columnOf[A](db, grp)
	if !ok {
		return Buffers1[A]{}, false
	}
	return Buffers1[A]{First: a.components}, true
}

// Query2 is Query1 for two components.
func Query2[A, B Component](db *Database, g GroupID) (Buffers2[A, B], bool) {
	grp, ok := db.group(g)
	if !ok {
		return Buffers2[A, B]{}, false
	}
	a, okA := columnOf[A](db, grp)
	b, okB := columnOf[B](db, grp)
	if !okA || !okB {
		return Buffers2[A, B]{}, false
	}
	return Buffers2[A, B]{First: a.components, Second: b.components}, true
}

// Query3 is Query1 for three components.
func Query3[A, B, C Component](db *Database, g GroupID) (Buffers3[A, B, C], bool) {
	grp, ok := db.group(g)
	if !ok {
		return Buffers3[A, B, C]{}, false
	}
	a, okA := columnOf[A](db, grp)
	b, okB := columnOf[B](db, grp)
	c, okC := columnOf[C](db, grp)
	if !okA || !okB || !okC {
		return Buffers3[A, B, C]{}, false
	}
	return Buffers3[A, B, C]{First: a.components, Second: b.components, Third: c.components}, true
}

// Query4 is Query1 for four components.
func Query4[A, B, C, D Component](db *Database, g GroupID) (Buffers4[A, B, C, D], bool) {
	grp, ok := db.group(g)
	if !ok {
		return Buffers4[A, B, C, D]{}, false
	}
	a, okA := columnOf[A](db, grp)
	b, okB := columnOf[B](db, grp)
	c, okC := columnOf[C](db, grp)
	d, okD := columnOf[D](db, grp)
	if !okA || !okB || !okC || !okD {
		return Buffers4[A, B, C, D]{}, false
	}
	return Buffers4[A, B, C, D]{
		First:  a.components,
		Second: b.components,
		Third:  c.components,
		Fourth: d.components,
	}, true
}

// QueryGroups1 yields the buffers of every group in set that carries A, in ascending group order.
func QueryGroups1[A Component](db *Database, set GroupSet) iter.Seq2[GroupID, Buffers1[A]] {
	return queryGroups(db, set, Query1[A])
}

// QueryGroups2 is QueryGroups1 for two components.
func QueryGroups2[A, B Component](db *Database, set GroupSet) iter.Seq2[GroupID, Buffers2[A, B]] {
	return queryGroups(db, set, Query2[A, B])
}

// QueryGroups3 is QueryGroups1 for three components.
func QueryGroups3[A, B, C Component](db *Database, set GroupSet) iter.Seq2[GroupID, Buffers3[A, B, C]] {
	return queryGroups(db, set, Query3[A, B, C])
}

// QueryGroups4 is QueryGroups1 for four components.
func QueryGroups4[A, B, C, D Component](
	db *Database, set GroupSet,
) iter.Seq2[GroupID, Buffers4[A, B, C, D]] {
	return queryGroups(db, set, Query4[A, B, C, D])
}

func queryGroups[T any](db *Database, set GroupSet, query func(*Database, GroupID) (T, bool)) iter.Seq2[GroupID, T] {
	return func(yield func(GroupID, T) bool) {
		for g := range set.All() {
			buffers, ok := query(db, g)
			if !ok {
				continue
			}
			if !yield(g, buffers) {
				return
			}
		}
	}
}

// columnOf returns the typed column of T in grp.
func columnOf[T Component](db *Database, grp *group) (*column[T], bool) {
	cid, ok := componentIDOf[T](&db.components)
	if !ok {
		return nil, false
	}
	col, ok := grp.column(cid)
	if !ok {
		return nil, false
	}
	typed, ok := col.(*column[T])
	return typed, ok
}
