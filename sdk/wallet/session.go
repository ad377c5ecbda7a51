package wallet

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Snapshot identifies the wallet binding at a point in time. Results computed
// under one epoch must be discarded once the epoch moves on.
type Snapshot struct {
	ID      string
	ChainID uint64
	Account common.Address
	Epoch   uint64
}

// Session is the shared handle to the connected wallet. Components hold the
// session rather than a client so account and chain switches reach all of
// them.
type Session struct {
	id string

	mu        sync.RWMutex
	client    Client
	epoch     uint64
	nextSub   int
	listeners map[int]func(Snapshot)
}

// NewSession binds client, which may be nil until a wallet connects.
func NewSession(client Client) *Session {
	return &Session{
		id:        uuid.NewString(),
		client:    client,
		epoch:     1,
		listeners: make(map[int]func(Snapshot)),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Client returns the bound client or nil.
func (s *Session) Client() Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Snapshot returns the current binding.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{ID: s.id, Epoch: s.epoch}
	if s.client != nil {
		snap.ChainID = s.client.ChainID()
		snap.Account = s.client.Address()
	}
	return snap
}

// Current reports whether epoch is still the active one.
func (s *Session) Current(epoch uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch == epoch
}

// Switch rebinds the session to client, bumps the epoch and notifies every
// listener with the new snapshot.
func (s *Session) Switch(client Client) Snapshot {
	s.mu.Lock()
	s.client = client
	s.epoch++
	snap := s.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return snap
}

// Subscribe registers fn for switch notifications. The returned function
// removes the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
