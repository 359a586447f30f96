package mutator

import (
	"context"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

type setCall struct {
	id        domain.ID
	completed bool
	ctxErr    error
}

// fakeGateway serves fetches from fetchFn. A gate registered for a fetch
// call number blocks that call until the gate is closed.
type fakeGateway struct {
	mu        sync.Mutex
	fetchFn   func(call int) (domain.Snapshot, error)
	fetches   int
	gates     map[int]chan struct{}
	writeGate chan struct{}

	setErr    error
	deleteErr error
	createErr error

	sets    []setCall
	deletes []domain.ID
	creates []domain.TaskInput
}

func newFakeGateway(fetch func(call int) (domain.Snapshot, error)) *fakeGateway {
	return &fakeGateway{fetchFn: fetch, gates: make(map[int]chan struct{})}
}

func (f *fakeGateway) gate(call int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[call] = ch
	return ch
}

func (f *fakeGateway) FetchCollection(ctx context.Context) (domain.Snapshot, error) {
	f.mu.Lock()
	f.fetches++
	call := f.fetches
	gate := f.gates[call]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.fetchFn(call)
}

func (f *fakeGateway) SetTaskCompletion(ctx context.Context, id domain.ID, completed bool) error {
	if f.writeGate != nil {
		<-f.writeGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, setCall{id: id, completed: completed, ctxErr: ctx.Err()})
	return f.setErr
}

func (f *fakeGateway) DeleteTask(ctx context.Context, id domain.ID) error {
	if f.writeGate != nil {
		<-f.writeGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return f.deleteErr
}

func (f *fakeGateway) CreateTask(ctx context.Context, in domain.TaskInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, in)
	return f.createErr
}

func (f *fakeGateway) counts() (fetches, sets, deletes, creates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, len(f.sets), len(f.deletes), len(f.creates)
}

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func inbox(completed bool) domain.Snapshot {
	return domain.Snapshot{Categories: []domain.Category{
		{ID: "1", Name: "Inbox", Tasks: []domain.Task{
			{ID: "10", Title: "Buy milk", Completed: completed},
		}},
	}}
}
