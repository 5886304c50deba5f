// Package storage persists machine snapshots so that a crew can be
// restored later.
package storage

import (
	"context"
	"sort"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/crew"
	"github.com/Comcast/uimachine/service"
)

// MachineState is a presentation of a machine's state as stored in a
// Storage system.
type MachineState struct {
	// Mid is the id for the machine.
	Mid string `json:"id,omitempty"`

	SpecSource *crew.SpecSource `json:"spec,omitempty" yaml:"spec,omitempty"`
	Value      string           `json:"value"`
	Context    core.Bindings    `json:"context"`
	Done       bool             `json:"done,omitempty"`

	// Deleted indicated that this machine has been deleted.
	//
	// Yes, this flag is a hack.
	Deleted bool `json:"-" yaml:"-"`
}

// State returns a core.State suitable for service.WithRestore.
func (ms *MachineState) State() *core.State {
	return core.NewState(nil, ms.Value, ms.Context.DeepCopy(), ms.Done)
}

// Storage is a persistence interface that's suitable for Crews.
type Storage interface {
	MakeCrew(ctx context.Context, pid string) error

	RemCrew(ctx context.Context, pid string) error

	GetCrew(ctx context.Context, pid string) ([]*MachineState, error)

	WriteState(ctx context.Context, pid string, ss []*MachineState) error
}

// AsMachineStates converts snapshots keyed by machine id, in id
// order.
func AsMachineStates(changes map[string]*core.State) []*MachineState {
	ids := make([]string, 0, len(changes))
	for mid := range changes {
		ids = append(ids, mid)
	}
	sort.Strings(ids)
	acc := make([]*MachineState, 0, len(changes))
	for _, mid := range ids {
		s := changes[mid]
		acc = append(acc, &MachineState{
			Mid:     mid,
			Value:   s.Value,
			Context: s.Context,
			Done:    s.Done,
		})
	}
	return acc
}

// AsMachines makes (stopped) crew.Machines from stored states.
func AsMachines(mss []*MachineState) map[string]*crew.Machine {
	acc := make(map[string]*crew.Machine, len(mss))
	for _, ms := range mss {
		acc[ms.Mid] = &crew.Machine{
			Id:         ms.Mid,
			State:      ms.State(),
			SpecSource: ms.SpecSource,
		}
	}
	return acc
}

// Restore spawns every stored machine into the crew.  The provider
// finds each machine's spec, and each machine resumes at its stored
// node and context.
func Restore(ctx context.Context, s Storage, c *crew.Crew, p crew.SpecProvider, opts ...service.Option) error {
	mss, err := s.GetCrew(ctx, c.Id)
	if err != nil {
		return err
	}
	for _, ms := range mss {
		spec, err := p.FindSpec(ctx, ms.SpecSource)
		if err != nil {
			return err
		}
		o := append([]service.Option{service.WithRestore(ms.State())}, opts...)
		m, err := c.Spawn(ctx, ms.Mid, spec, o...)
		if err != nil {
			return err
		}
		m.SpecSource = ms.SpecSource.Copy()
	}
	return nil
}
