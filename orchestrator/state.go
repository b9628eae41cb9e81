package orchestrator

import (
	"fmt"
	"sync"
	"time"
)

// State is a run's position in the pipeline.
type State string

// Run states, in pipeline order. Failed is absorbing.
const (
	StatePlanning     State = "planning"
	StateExporting    State = "exporting"
	StateTranscribing State = "transcribing"
	StateMerging      State = "merging"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

var next = map[State]State{
	StatePlanning:     StateExporting,
	StateExporting:    StateTranscribing,
	StateTranscribing: StateMerging,
	StateMerging:      StateDone,
}

// Final reports whether no transition leaves s.
func (s State) Final() bool { return s == StateDone || s == StateFailed }

// CanTransition reports whether from → to is allowed: one step forward,
// or to Failed from any non-final state.
func CanTransition(from, to State) bool {
	if from.Final() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[from] == to
}

// Transition is one recorded state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Run tracks one execution's state.
type Run struct {
	ID      string
	AssetID string

	mu      sync.Mutex
	state   State
	history []Transition
}

func newRun(id, assetID string) *Run {
	return &Run{ID: id, AssetID: assetID, state: StatePlanning}
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// History returns the transitions so far.
func (r *Run) History() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.history...)
}

func (r *Run) transition(to State) (Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !CanTransition(r.state, to) {
		return Transition{}, fmt.Errorf("orchestrator: invalid transition %s -> %s", r.state, to)
	}
	t := Transition{From: r.state, To: to, At: time.Now()}
	r.state = to
	r.history = append(r.history, t)
	return t, nil
}
