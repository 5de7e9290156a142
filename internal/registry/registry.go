// Package registry holds the process-wide set of logged-in Users and
// pending P2P Offers. It is the sole owner of both collections; every
// mutation goes through one of its exported methods, each of which is
// atomic with respect to all the others.
package registry

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrAlreadyPresent is returned by AddUser when addr is already logged in.
var ErrAlreadyPresent = errors.New("already present")

// Registry is the single source of truth for presence and rendezvous state.
type Registry struct {
	mu sync.Mutex

	usersByAddr map[string]*User
	usersByID   map[string]*User
	offers      map[string]*Offer
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		usersByAddr: make(map[string]*User),
		usersByID:   make(map[string]*User),
		offers:      make(map[string]*Offer),
	}
}

// AddUser assigns a fresh id and inserts a User for addr. It fails with
// ErrAlreadyPresent if addr is already logged in.
func (r *Registry) AddUser(addr, name string, sink *Sink) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.usersByAddr[addr]; ok {
		return User{}, ErrAlreadyPresent
	}

	u := &User{
		ID:   uuid.NewString(),
		Name: name,
		Addr: addr,
		Sink: sink,
	}
	r.usersByAddr[addr] = u
	r.usersByID[u.ID] = u
	return *u, nil
}

// RemoveUser removes the User at addr, if any, and atomically purges every
// Offer whose origin or target equals that User's id. It returns the
// removed User so the caller can broadcast a leave event.
func (r *Registry) RemoveUser(addr string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.usersByAddr[addr]
	if !ok {
		return User{}, false
	}

	delete(r.usersByAddr, addr)
	delete(r.usersByID, u.ID)

	for id, o := range r.offers {
		if o.Origin == u.ID || o.Target == u.ID {
			delete(r.offers, id)
		}
	}

	return *u, true
}

// GetByAddr looks up a User by its connection address.
func (r *Registry) GetByAddr(addr string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.usersByAddr[addr]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// GetByID looks up a User by its assigned id.
func (r *Registry) GetByID(id string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.usersByID[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// SnapshotUsers returns every logged-in user's (id, name), excluding
// excludeAddr (pass "" to include everyone). Used to build the initial
// roster sent to a newly logged-in client.
func (r *Registry) SnapshotUsers(excludeAddr string) []User {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]User, 0, len(r.usersByAddr))
	for addr, u := range r.usersByAddr {
		if addr == excludeAddr {
			continue
		}
		out = append(out, *u)
	}
	return out
}

// SnapshotSinks returns every logged-in user except excludeAddr, carrying
// identity alongside its Sink so a dropped write can still be logged
// against someone. The Registry lock is released before the caller writes
// to any of these sinks: never hold the lock across a network write.
func (r *Registry) SnapshotSinks(excludeAddr string) []User {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]User, 0, len(r.usersByAddr))
	for addr, u := range r.usersByAddr {
		if addr == excludeAddr {
			continue
		}
		out = append(out, *u)
	}
	return out
}

// AddOffer creates a new Pending Offer between two live users. Multiple
// concurrent offers between the same pair are allowed; each gets a
// distinct id.
func (r *Registry) AddOffer(originID, targetID string) Offer {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := &Offer{
		ID:     uuid.NewString(),
		Origin: originID,
		Target: targetID,
		State:  Pending,
	}
	r.offers[o.ID] = o
	return *o
}

// GetOffer looks up an Offer by id.
func (r *Registry) GetOffer(id string) (Offer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.offers[id]
	if !ok {
		return Offer{}, false
	}
	return *o, true
}

// RemoveOffer removes and returns the Offer with the given id.
func (r *Registry) RemoveOffer(id string) (Offer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.offers[id]
	if !ok {
		return Offer{}, false
	}
	delete(r.offers, id)
	return *o, true
}

// AcceptOffer transitions a Pending offer to Accepted.
func (r *Registry) AcceptOffer(id string) (Offer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.offers[id]
	if !ok {
		return Offer{}, false
	}
	o.State = Accepted
	return *o, true
}

// RecordSession marks userID's side of offer id as having sent its session
// message. It returns whether that side had already sent a session message
// before this call (a resend, which is idempotent and triggers no second
// notification), whether both sides have now sent theirs, and whether the
// offer was found at all. When both sides have sent, the offer is removed
// in the same atomic step.
func (r *Registry) RecordSession(id, userID string) (alreadySent, bothSent, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.offers[id]
	if !ok {
		return false, false, false
	}

	alreadySent, bothSent = o.sessionSent(userID)
	if bothSent {
		delete(r.offers, id)
	}
	return alreadySent, bothSent, true
}
