// Package engine holds the process-wide advisory trading switch.
package engine

import (
	"sync/atomic"
	"time"
)

// Switch is the advisory run/stop flag toggled by the engine control
// endpoints. It is advisory only: adapters do not consult it, so an
// execute-trade call while the switch says "stopped" still executes. That gap
// is inherited from the source system and kept as documented scope.
//
// Writes are last-write-wins with no transition validation; concurrent
// writers race harmlessly.
type Switch struct {
	running   atomic.Bool
	changedAt atomic.Int64 // unix nano of last transition
	detail    atomic.Value // transition holding actor + reason
}

type transition struct {
	Actor  string
	Reason string
}

// Status is a snapshot of the switch.
type Status struct {
	Running   bool      `json:"running"`
	ChangedAt time.Time `json:"changed_at,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// NewSwitch returns a stopped switch.
func NewSwitch() *Switch {
	return &Switch{}
}

// Start flips the switch to running.
func (s *Switch) Start(actor string) {
	s.set(true, actor, "")
}

// Stop flips the switch to stopped.
func (s *Switch) Stop(actor string) {
	s.set(false, actor, "")
}

// EmergencyStop flips the switch to stopped and records the reason.
func (s *Switch) EmergencyStop(actor, reason string) {
	if reason == "" {
		reason = "emergency stop"
	}
	s.set(false, actor, reason)
}

// Running reports the current advisory state.
func (s *Switch) Running() bool {
	return s.running.Load()
}

// Snapshot returns the current state with transition metadata.
func (s *Switch) Snapshot() Status {
	st := Status{Running: s.running.Load()}
	if ns := s.changedAt.Load(); ns != 0 {
		st.ChangedAt = time.Unix(0, ns).UTC()
	}
	if t, ok := s.detail.Load().(transition); ok {
		st.Actor = t.Actor
		st.Reason = t.Reason
	}
	return st
}

func (s *Switch) set(running bool, actor, reason string) {
	s.running.Store(running)
	s.changedAt.Store(time.Now().UnixNano())
	s.detail.Store(transition{Actor: actor, Reason: reason})
}
