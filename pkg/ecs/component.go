package ecs

import (
	"reflect"

	"github.com/argus-labs/gecs/pkg/assert"
	"github.com/rotisserie/eris"
)

// Component is the interface that all components must implement.
// Components are pure data containers stored column-wise inside groups.
type Component interface { //nolint:iface // We may add more methods in the future.
	// Name returns a unique string identifier for the component type.
	Name() string
}

// ComponentKind describes a component type for CreateGroup. Obtain one with Kind.
type ComponentKind struct {
	name    string
	typ     reflect.Type
	factory columnFactory
}

// Kind returns the ComponentKind of T.
func Kind[T Component]() ComponentKind {
	var zero T
	return ComponentKind{name: zero.Name(), typ: reflect.TypeFor[T](), factory: newColumnFactory[T]()}
}

// Name returns the component name.
func (k ComponentKind) Name() string {
	return k.name
}

// componentID is a unique identifier for a component type within a database.
type componentID = uint32

// componentManager manages component type registration and lookup.
type componentManager struct {
	nextID    componentID            // The next available component ID
	catalog   map[string]componentID // Component name -> component ID
	factories []columnFactory        // Component ID -> column factory
	types     []reflect.Type         // Component ID -> Go type
}

func newComponentManager() componentManager {
	return componentManager{
		nextID:    0,
		catalog:   make(map[string]componentID),
		factories: make([]columnFactory, 0),
		types:     make([]reflect.Type, 0),
	}
}

// register registers a component kind and returns its ID. Registering the same type twice is a
// no-op. A name already taken by another type is ErrComponentNameConflict.
func (cm *componentManager) register(kind ComponentKind) (componentID, error) {
	if kind.name == "" {
		return 0, eris.New("component name cannot be empty")
	}
	if kind.factory == nil || kind.typ == nil {
		return 0, eris.Errorf("component %s has no column factory, use ecs.Kind", kind.name)
	}

	if cid, exists := cm.catalog[kind.name]; exists {
		if cm.types[cid] != kind.typ {
			return 0, eris.Wrapf(ErrComponentNameConflict, "%s is registered by %s, not %s",
				kind.name, cm.types[cid], kind.typ)
		}
		return cid, nil
	}

	cm.catalog[kind.name] = cm.nextID
	cm.factories = append(cm.factories, kind.factory)
	cm.types = append(cm.types, kind.typ)
	cm.nextID++
	assert.That(int(cm.nextID) == len(cm.factories), "component id doesn't match number of components")

	return cm.nextID - 1, nil
}

// lookup returns a component's ID given a name.
func (cm *componentManager) lookup(name string) (componentID, bool) {
	cid, exists := cm.catalog[name]
	return cid, exists
}

// componentIDOf returns the ID of T if T has been registered by any group.
func componentIDOf[T Component](cm *componentManager) (componentID, bool) {
	var zero T
	cid, ok := cm.lookup(zero.Name())
	if !ok || cm.types[cid] != reflect.TypeFor[T]() {
		return 0, false
	}
	return cid, true
}
