// Package deploy implements the zero-downtime rename-then-replace
// deployment engine (§4.6): it runs off-host from the operator's
// workstation, mutates exactly one (service, host) pair's container at a
// time, and drives the reverse-proxy sidecar once the new container is
// healthy.
package deploy

import "fmt"

// State is a deployment slot's state machine for one (service, host)
// pair (§4.6 "State machine for a deployment slot").
type State string

const (
	StateIdle           State = "idle"
	StatePreparing      State = "preparing"
	StateStarting       State = "starting"
	StateHealthChecking State = "health_checking"
	StateSwitchingProxy State = "switching_proxy"
	StateCleanup        State = "cleanup"
	StateFailed         State = "failed"
)

// transitions enumerates the state machine's legal edges. Any non-Idle
// state may additionally transition to Failed on error, handled
// separately in fail rather than listed here.
var transitions = map[State][]State{
	StateIdle:           {StatePreparing},
	StatePreparing:      {StateStarting},
	StateStarting:       {StateHealthChecking},
	StateHealthChecking: {StateSwitchingProxy},
	StateSwitchingProxy: {StateCleanup},
	StateCleanup:        {StateIdle},
}

// slot tracks one deployment's progress through the state machine and
// reports illegal transitions as a programming error rather than silently
// skipping steps.
type slot struct {
	service string
	host    string
	state   State
}

func newSlot(service, host string) *slot {
	return &slot{service: service, host: host, state: StateIdle}
}

func (s *slot) advance(to State) error {
	if s.state == StateFailed {
		return fmt.Errorf("deployment %s/%s: cannot advance from terminal failed state", s.service, s.host)
	}
	for _, next := range transitions[s.state] {
		if next == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("deployment %s/%s: illegal transition %s -> %s", s.service, s.host, s.state, to)
}

// fail moves the slot to the terminal Failed state and returns err wrapped
// with the slot's service and host. The step at which it failed is not
// recorded.
func (s *slot) fail(err error) error {
	s.state = StateFailed
	return fmt.Errorf("deployment %s/%s failed: %w", s.service, s.host, err)
}

// Result is the operator-facing outcome of one (service, host) deployment.
type Result struct {
	Service string
	Host    string
	State   State
	Err     error
}

func (r Result) Success() bool {
	return r.Err == nil
}
