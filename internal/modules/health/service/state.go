package service

import (
	"sync/atomic"
	"time"
)

// State: то, что отдают /readyz и /healthz.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	lastTickUnix atomic.Int64 // unix seconds
	streamProbe  atomic.Pointer[func() bool]
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

// SetReady: после первого завершённого тика.
func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// SetStreamProbe регистрирует проверку websocket-источника цен.
func (s *State) SetStreamProbe(p func() bool) { s.streamProbe.Store(&p) }

// StreamConnected: known=false, если источник не потоковый.
func (s *State) StreamConnected() (connected, known bool) {
	p := s.streamProbe.Load()
	if p == nil {
		return false, false
	}
	return (*p)(), true
}

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
