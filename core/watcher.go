// Package core defines the primitives shared by the components of the host.
package core

import (
	"fmt"
	"reflect"
	"sync"
)

// Observer is the interface to implement to receive the events of an
// observable.
type Observer interface {
	NotifyCallback(event interface{})
}

// Observable is the interface of a source of events.
type Observable interface {
	// Add registers the observer. Adding the same observer twice has no
	// effect. Observers are identified with ==, so the dynamic type of an
	// observer must be comparable, a pointer for instance.
	Add(observer Observer)

	// Remove unregisters the observer.
	Remove(observer Observer)

	// Notify forwards the event to every observer.
	Notify(event interface{})
}

// Watcher notifies the observers in the order they were added.
//
// - implements core.Observable
type Watcher struct {
	sync.RWMutex

	observers []Observer
}

// NewWatcher creates a new watcher without observers.
func NewWatcher() *Watcher {
	return &Watcher{}
}

// Add implements core.Observable. It panics if the observer is nil or if its
// type is not comparable.
func (w *Watcher) Add(observer Observer) {
	typ := reflect.TypeOf(observer)
	if typ == nil || !typ.Comparable() {
		panic(fmt.Sprintf("observer '%T' is not comparable", observer))
	}

	w.Lock()
	defer w.Unlock()

	if w.indexOf(observer) >= 0 {
		return
	}

	w.observers = append(w.observers, observer)
}

// Remove implements core.Observable. An observer that was never added is
// ignored.
func (w *Watcher) Remove(observer Observer) {
	w.Lock()
	defer w.Unlock()

	i := w.indexOf(observer)
	if i < 0 {
		return
	}

	w.observers = append(w.observers[:i], w.observers[i+1:]...)
}

// Notify implements core.Observable. The observers are called synchronously.
func (w *Watcher) Notify(event interface{}) {
	w.RLock()
	defer w.RUnlock()

	for _, obs := range w.observers {
		obs.NotifyCallback(event)
	}
}

// Len returns the number of observers.
func (w *Watcher) Len() int {
	w.RLock()
	defer w.RUnlock()

	return len(w.observers)
}

// indexOf only compares comparable values: the stored observers are checked
// by Add, and interfaces with different dynamic types are never equal.
func (w *Watcher) indexOf(observer Observer) int {
	for i, obs := range w.observers {
		if obs == observer {
			return i
		}
	}

	return -1
}
