package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
)

var UnknownCrew = errors.New("unknown crew")

// Mem is an in-memory Storage.  States are stored as JSON, so what
// comes back looks like what comes back from a real Storage.
type Mem struct {
	sync.Mutex
	crews map[string]map[string][]byte
}

func NewMem() *Mem {
	return &Mem{
		crews: make(map[string]map[string][]byte),
	}
}

func (s *Mem) MakeCrew(ctx context.Context, pid string) error {
	s.Lock()
	defer s.Unlock()
	if _, have := s.crews[pid]; !have {
		s.crews[pid] = make(map[string][]byte)
	}
	return nil
}

func (s *Mem) RemCrew(ctx context.Context, pid string) error {
	s.Lock()
	defer s.Unlock()
	if _, have := s.crews[pid]; !have {
		return UnknownCrew
	}
	delete(s.crews, pid)
	return nil
}

func (s *Mem) GetCrew(ctx context.Context, pid string) ([]*MachineState, error) {
	s.Lock()
	defer s.Unlock()
	ms := s.crews[pid]
	ids := make([]string, 0, len(ms))
	for id := range ms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var acc []*MachineState
	for _, id := range ids {
		var m MachineState
		if err := json.Unmarshal(ms[id], &m); err != nil {
			return nil, err
		}
		m.Mid = id
		acc = append(acc, &m)
	}
	return acc, nil
}

func (s *Mem) WriteState(ctx context.Context, pid string, mss []*MachineState) error {
	s.Lock()
	defer s.Unlock()
	c, have := s.crews[pid]
	if !have {
		c = make(map[string][]byte)
		s.crews[pid] = c
	}
	for _, m := range mss {
		if m.Deleted {
			delete(c, m.Mid)
			continue
		}
		js, err := json.Marshal(m)
		if err != nil {
			return err
		}
		c[m.Mid] = js
	}
	return nil
}
