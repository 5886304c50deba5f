package storage

import (
	"context"

	"github.com/Comcast/uimachine/core"
	"github.com/Comcast/uimachine/crew"

	"go.uber.org/zap"
)

// Recorder writes a machine's snapshots to a Storage as they happen.
type Recorder struct {
	Storage Storage
	Pid     string
	Logger  *zap.Logger
}

// NewRecorder makes a Recorder for the given crew id.
func NewRecorder(s Storage, pid string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		Storage: s,
		Pid:     pid,
		Logger:  logger.With(zap.String("crew", pid)),
	}
}

// Record writes the service's current state and then each new
// snapshot.  The returned function stops recording.
//
// Writes happen in the goroutine that processed the event.
func (r *Recorder) Record(ctx context.Context, m *crew.Machine) func() {
	write := func(ms *MachineState) {
		ms.Mid = m.Id
		ms.SpecSource = m.SpecSource
		if err := r.Storage.WriteState(ctx, r.Pid, []*MachineState{ms}); err != nil {
			r.Logger.Warn("write failed", zap.String("machine", m.Id), zap.Error(err))
		}
	}
	s := m.Service
	st := s.GetState()
	write(&MachineState{Value: st.Value, Context: st.Context, Done: st.Done})
	return s.Subscribe(func(st *core.State) {
		write(&MachineState{Value: st.Value, Context: st.Context, Done: st.Done})
	})
}

// Forget marks the machine as deleted in the Storage.
func (r *Recorder) Forget(ctx context.Context, mid string) error {
	return r.Storage.WriteState(ctx, r.Pid, []*MachineState{{Mid: mid, Deleted: true}})
}
