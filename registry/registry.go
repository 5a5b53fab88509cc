// Package registry owns the authoritative mapping from live connections to
// their chosen display name and current room. All other components derive
// read-only views from it. State lives for the process lifetime only.
package registry

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidJoin is returned when a join carries an empty or whitespace-only
// room or display name. The registry is left untouched.
var ErrInvalidJoin = errors.New("registry: room and display name must be non-empty")

type entry struct {
	name string
	room string
	seq  uint64 // registration order, for deterministic iteration and tie-breaks
}

// Registry is safe for concurrent use. A single mutex serializes every
// mutation so reads always observe a consistent snapshot.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]*entry
	nextSeq uint64
}

func New() *Registry {
	return &Registry{conns: make(map[string]*entry)}
}

// Register creates an unpopulated entry for a connection. Calling it again
// for the same id is a no-op.
func (r *Registry) Register(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure(id)
}

func (r *Registry) ensure(id string) *entry {
	e, ok := r.conns[id]
	if !ok {
		r.nextSeq++
		e = &entry{seq: r.nextSeq}
		r.conns[id] = e
	}
	return e
}

// Join records (room, name) for a connection, registering it if needed, and
// returns the room the connection previously occupied ("" if none) so the
// caller can notify the old room of the departure.
func (r *Registry) Join(id, room, name string) (prevRoom string, err error) {
	if strings.TrimSpace(room) == "" || strings.TrimSpace(name) == "" {
		return "", ErrInvalidJoin
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.ensure(id)
	prevRoom = e.room
	e.room = room
	e.name = name
	return prevRoom, nil
}

// Deregister removes a connection and reports the (room, name) it held.
// ok is false when the connection was unknown or had never joined a room.
func (r *Registry) Deregister(id string) (room, name string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.conns[id]
	if !exists {
		return "", "", false
	}
	delete(r.conns, id)
	if e.room == "" {
		return "", "", false
	}
	return e.room, e.name, true
}

// MembersOf returns the display names currently in a room, in registration
// order. Unknown or empty rooms yield an empty slice; rooms exist only as
// this derived view.
func (r *Registry) MembersOf(room string) []string {
	if room == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type member struct {
		name string
		seq  uint64
	}
	var members []member
	for _, e := range r.conns {
		if e.room == room {
			members = append(members, member{e.name, e.seq})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].seq < members[j].seq })

	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.name
	}
	return names
}

// FindByName resolves a display name to a connection id, scanning every
// room. Display names are not unique; when several connections share one,
// the earliest-registered connection wins.
func (r *Registry) FindByName(name string) (id string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bestSeq uint64
	for connID, e := range r.conns {
		if e.name != name || e.room == "" {
			continue
		}
		if !ok || e.seq < bestSeq {
			id = connID
			bestSeq = e.seq
			ok = true
		}
	}
	return id, ok
}

// Len reports the number of tracked connections, joined or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
