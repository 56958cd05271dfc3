package app

import (
	"context"
	"sync"
)

// MachineSet keeps one live machine per player key, so independent
// browsers each get their own session lifecycle.
type MachineSet struct {
	runCtx  context.Context
	factory func(key string) *Machine

	mu       sync.Mutex
	machines map[string]*runningMachine
}

// runningMachine pairs a machine with the cancel func for its countdown
// observer so eviction can stop the ticker goroutine.
type runningMachine struct {
	machine *Machine
	stop    context.CancelFunc
}

// NewMachineSet builds a registry whose machines run their countdown
// observers on runCtx.
func NewMachineSet(runCtx context.Context, factory func(key string) *Machine) *MachineSet {
	return &MachineSet{
		runCtx:   runCtx,
		factory:  factory,
		machines: make(map[string]*runningMachine),
	}
}

// GetOrCreate returns the machine for a player key, constructing and
// restoring it on first use and starting its countdown observer.
func (s *MachineSet) GetOrCreate(ctx context.Context, key string) *Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.machines[key]; ok {
		return entry.machine
	}
	machine := s.factory(key)
	machine.Restore(ctx)
	tickCtx, stop := context.WithCancel(s.runCtx)
	s.machines[key] = &runningMachine{machine: machine, stop: stop}
	go machine.Run(tickCtx)
	return machine
}

// Get returns the machine for a key if one has been created.
func (s *MachineSet) Get(key string) (*Machine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.machines[key]
	if !ok {
		return nil, false
	}
	return entry.machine, true
}

// Release evicts the machine for a key if it is idle: no subscribers, no
// in-flight fetch, nothing being played. Its ticker goroutine is stopped
// and its persisted state stays in the store, so the next GetOrCreate
// restores it. Called on presentation-layer disconnect.
func (s *MachineSet) Release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.machines[key]
	if !ok {
		return
	}
	if !entry.machine.Idle() {
		return
	}
	entry.stop()
	delete(s.machines, key)
}
