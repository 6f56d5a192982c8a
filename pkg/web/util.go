package web

import (
	"reflect"
	"runtime"
	"sync"
)

func nameOfFunction(f interface{}) string {
	return runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
}

// busySet allows one in-flight submission per session
type busySet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newBusySet() *busySet {
	return &busySet{ids: make(map[string]struct{})}
}

func (b *busySet) acquire(id string) (release func(), ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, busy := b.ids[id]; busy {
		return nil, false
	}
	b.ids[id] = struct{}{}
	return func() {
		b.mu.Lock()
		delete(b.ids, id)
		b.mu.Unlock()
	}, true
}
