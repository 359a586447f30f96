package mutator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"taskboard/domain"
)

// Phase is the position of a mutation in its round trip. A mutation starts
// and ends in PhaseIdle; Done tells the two apart.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseApplying
	PhaseSyncing
	PhaseReconciling
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseApplying:
		return "applying"
	case PhaseSyncing:
		return "syncing"
	case PhaseReconciling:
		return "reconciling"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Kind names the mutation.
type Kind string

const (
	KindToggle Kind = "toggle"
	KindDelete Kind = "delete"
	KindCreate Kind = "create"
)

// Stage tells which half of a round trip failed.
type Stage string

const (
	StageWrite     Stage = "write"
	StageReconcile Stage = "reconcile"
)

// MutationError describes a failure that was recovered from: the local view
// was reconciled (or left as is) and the failure is only being reported.
type MutationError struct {
	MutationID string
	Kind       Kind
	Stage      Stage
	TaskID     domain.ID
	Err        error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s of task %s failed: %v", e.Kind, e.Stage, e.TaskID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Mutation tracks one optimistic change through its round trip.
type Mutation struct {
	ID         string
	Kind       Kind
	CategoryID domain.ID
	TaskID     domain.ID
	// Completed is the value sent to the server by a toggle.
	Completed bool

	noop  bool
	phase atomic.Int32
	done  chan struct{}

	mu           sync.Mutex
	writeErr     error
	reconcileErr error
}

func newMutation(kind Kind, categoryID, taskID domain.ID) *Mutation {
	return &Mutation{
		ID:         uuid.NewString(),
		Kind:       kind,
		CategoryID: categoryID,
		TaskID:     taskID,
		done:       make(chan struct{}),
	}
}

// Noop reports whether the target was missing, in which case nothing was
// applied and no request was made.
func (m *Mutation) Noop() bool { return m.noop }

func (m *Mutation) Phase() Phase { return Phase(m.phase.Load()) }

// Done is closed when the round trip is over and the phase is back to idle.
func (m *Mutation) Done() <-chan struct{} { return m.done }

// Wait blocks until the round trip finished or ctx is done. It returns the
// recovered write and reconcile failures joined together.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteErr returns the error of the update/delete request, if any.
func (m *Mutation) WriteErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeErr
}

// ReconcileErr returns the error of the refetch that followed the write.
func (m *Mutation) ReconcileErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconcileErr
}

// Err joins WriteErr and ReconcileErr.
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.writeErr, m.reconcileErr)
}

func (m *Mutation) setPhase(p Phase) {
	m.phase.Store(int32(p))
}

func (m *Mutation) fail(stage Stage, err error) *MutationError {
	m.mu.Lock()
	if stage == StageWrite {
		m.writeErr = err
	} else {
		m.reconcileErr = err
	}
	m.mu.Unlock()
	return &MutationError{MutationID: m.ID, Kind: m.Kind, Stage: stage, TaskID: m.TaskID, Err: err}
}

func (m *Mutation) finish() {
	m.setPhase(PhaseIdle)
	close(m.done)
}
