// This file contains the implementation of a dependency injector using
// reflection.

package node

import (
	"reflect"

	"golang.org/x/xerrors"
)

// reflectInjector is a dependency injector that uses reflection to resolve
// specific interfaces.
//
// - implements node.Injector
type reflectInjector struct {
	mapper map[reflect.Type]interface{}

	// order keeps the types in injection order so that the resolution of an
	// interface implemented by several dependencies is deterministic.
	order []reflect.Type
}

// NewInjector returns a empty injector.
func NewInjector() Injector {
	return &reflectInjector{
		mapper: make(map[reflect.Type]interface{}),
	}
}

// Resolve implements node.Injector. It populates the given interface with the
// first compatible dependency, in injection order.
func (inj *reflectInjector) Resolve(v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		return xerrors.New("expect a pointer")
	}

	if !rv.Elem().IsValid() {
		return xerrors.Errorf("reflect value '%v' is invalid", rv)
	}

	for _, typ := range inj.order {
		if typ.AssignableTo(rv.Elem().Type()) {
			rv.Elem().Set(reflect.ValueOf(inj.mapper[typ]))
			return nil
		}
	}

	return xerrors.Errorf("couldn't find dependency for '%v'", rv.Elem().Type())
}

// Inject implements node.Injector. It injects the dependency to be available
// later on. A dependency of the same type replaces the previous one.
func (inj *reflectInjector) Inject(v interface{}) {
	key := reflect.TypeOf(v)

	_, found := inj.mapper[key]
	if !found {
		inj.order = append(inj.order, key)
	}

	inj.mapper[key] = v
}
