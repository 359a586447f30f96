package mutator

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard/domain"
	"taskboard/storage"
)

const (
	defaultWorkers        = 4
	defaultBuffer         = 64
	defaultHandoffTimeout = 15 * time.Millisecond
)

// Gateway is the remote collection the mutator keeps in sync with.
type Gateway interface {
	FetchCollection(ctx context.Context) (domain.Snapshot, error)
	SetTaskCompletion(ctx context.Context, id domain.ID, completed bool) error
	DeleteTask(ctx context.Context, id domain.ID) error
	CreateTask(ctx context.Context, in domain.TaskInput) error
}

type Options struct {
	Logger         *log.Logger
	Workers        int
	Buffer         int
	HandoffTimeout time.Duration
	// Report receives failures that were recovered from. Defaults to a
	// warning on Logger.
	Report func(*MutationError)
}

// View is what the presentation layer renders.
type View struct {
	Snapshot domain.Snapshot
	// Loaded is true once any fetch has been applied.
	Loaded  bool
	Loading bool
	// Err is the last failed Load or Reload. A later successful fetch
	// clears it.
	Err      error
	InFlight int
	// Seq is the sequence number of the canonical fetch the snapshot was
	// built from.
	Seq uint64
	// Optimistic is set while the snapshot holds local changes the server
	// has not confirmed yet.
	Optimistic bool
}

// Mutator applies changes to the local collection first, writes them to
// the server in the background and then replaces the local copy with a
// fresh fetch.
type Mutator struct {
	gw     Gateway
	cache  *storage.Cache
	log    *log.Logger
	report func(*MutationError)
	pool   *pool

	mu   sync.Mutex
	view View

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}
}

func New(gw Gateway, cache *storage.Cache, opts Options) *Mutator {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	if cache == nil {
		cache = storage.NewCache()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	handoff := opts.HandoffTimeout
	if handoff <= 0 {
		handoff = defaultHandoffTimeout
	}

	m := &Mutator{
		gw:     gw,
		cache:  cache,
		log:    logger,
		report: opts.Report,
		pool:   newPool(workers, buffer, handoff, logger),
		subs:   make(map[chan struct{}]struct{}),
	}
	if m.report == nil {
		m.report = m.logFailure
	}
	if snap, ok := cache.Snapshot(); ok {
		m.view.Snapshot = snap
		m.view.Loaded = true
		m.view.Seq = cache.Applied()
	}
	return m
}

// Load fetches the collection. A failure is kept on the view and returned.
func (m *Mutator) Load(ctx context.Context) error {
	m.mu.Lock()
	m.view.Loading = true
	m.mu.Unlock()
	m.notify()

	err := m.refresh(ctx, true)
	if err != nil {
		m.log.WithError(err).Warn("failed to load collection")
	}
	return err
}

// Reload is the retry action offered after a failed load.
func (m *Mutator) Reload(ctx context.Context) error {
	return m.Load(ctx)
}

// View returns the current state. Snapshots are never modified in place so
// the result can be read without further locking.
func (m *Mutator) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// Toggle flips the completion flag of a task. The negated collection is
// visible to View before Toggle returns; the write and the refetch run in the
// background. A missing category or task yields a no-op mutation.
func (m *Mutator) Toggle(ctx context.Context, categoryID, taskID domain.ID) *Mutation {
	mut := newMutation(KindToggle, categoryID, taskID)

	m.mu.Lock()
	next, ok := domain.ToggleTask(m.view.Snapshot, categoryID, taskID)
	if !ok {
		m.mu.Unlock()
		return m.skip(mut)
	}
	mut.setPhase(PhaseApplying)
	task, _ := next.FindTask(categoryID, taskID)
	mut.Completed = task.Completed
	m.applyLocked(next)
	m.mu.Unlock()
	m.notify()

	completed := mut.Completed
	m.dispatch(ctx, mut, func(ctx context.Context) error {
		return m.gw.SetTaskCompletion(ctx, taskID, completed)
	})
	return mut
}

// Delete removes a task locally, then deletes it on the server.
func (m *Mutator) Delete(ctx context.Context, categoryID, taskID domain.ID) *Mutation {
	mut := newMutation(KindDelete, categoryID, taskID)

	m.mu.Lock()
	next, ok := domain.RemoveTask(m.view.Snapshot, categoryID, taskID)
	if !ok {
		m.mu.Unlock()
		return m.skip(mut)
	}
	mut.setPhase(PhaseApplying)
	m.applyLocked(next)
	m.mu.Unlock()
	m.notify()

	m.dispatch(ctx, mut, func(ctx context.Context) error {
		return m.gw.DeleteTask(ctx, taskID)
	})
	return mut
}

// Create validates and submits a new task, then refetches. Unlike toggles
// and deletes nothing is shown before the server accepts it, and a failed
// request is returned to the caller.
func (m *Mutator) Create(ctx context.Context, in domain.TaskInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if err := m.gw.CreateTask(ctx, in); err != nil {
		return err
	}
	if err := m.refresh(ctx, false); err != nil {
		m.report(&MutationError{Kind: KindCreate, Stage: StageReconcile, Err: err})
	}
	return nil
}

// Subscribe returns a channel signalled after every view change. Signals
// coalesce: a slow reader sees one pending notification, not a backlog.
func (m *Mutator) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.subsMu.Lock()
	m.subs[ch] = struct{}{}
	m.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			delete(m.subs, ch)
			m.subsMu.Unlock()
		})
	}
}

// Close waits for mutations already handed to the pool.
func (m *Mutator) Close() {
	m.pool.close()
}

func (m *Mutator) skip(mut *Mutation) *Mutation {
	m.log.WithFields(log.Fields{
		"mutation": mut.ID,
		"kind":     mut.Kind,
		"category": mut.CategoryID,
		"task":     mut.TaskID,
	}).Debug("mutation target not in collection; nothing to do")
	mut.noop = true
	mut.finish()
	return mut
}

func (m *Mutator) applyLocked(next domain.Snapshot) {
	m.view.Snapshot = next
	m.view.Optimistic = true
	m.view.InFlight++
}

func (m *Mutator) dispatch(ctx context.Context, mut *Mutation, write func(context.Context) error) {
	bg := context.WithoutCancel(ctx)
	m.pool.submit(func() {
		m.run(bg, mut, write)
	})
}

func (m *Mutator) run(ctx context.Context, mut *Mutation, write func(context.Context) error) {
	entry := m.log.WithFields(log.Fields{
		"mutation": mut.ID,
		"kind":     mut.Kind,
		"task":     mut.TaskID,
	})

	mut.setPhase(PhaseSyncing)
	entry.Debug("mutation syncing")
	if err := write(ctx); err != nil {
		m.report(mut.fail(StageWrite, err))
	}

	mut.setPhase(PhaseReconciling)
	entry.Debug("mutation reconciling")
	if err := m.refresh(ctx, false); err != nil {
		m.report(mut.fail(StageReconcile, err))
	}

	m.mu.Lock()
	m.view.InFlight--
	m.mu.Unlock()
	m.notify()

	mut.finish()
	entry.Debug("mutation done")
}

// refresh fetches the collection and applies it unless a newer fetch got
// there first. When surface is set a failure becomes the view's error;
// otherwise the current snapshot, optimistic or not, stays as it is.
func (m *Mutator) refresh(ctx context.Context, surface bool) error {
	seq := m.cache.Begin()
	snap, err := m.gw.FetchCollection(ctx)

	m.mu.Lock()
	if surface {
		m.view.Loading = false
	}
	if err != nil {
		if surface {
			m.view.Err = err
		}
		m.mu.Unlock()
		m.notify()
		return err
	}
	if !m.cache.Apply(seq, snap) {
		m.mu.Unlock()
		m.log.WithField("seq", seq).Debug("discarding stale collection fetch")
		m.notify()
		return nil
	}
	m.view.Snapshot = snap
	m.view.Loaded = true
	m.view.Err = nil
	m.view.Seq = seq
	m.view.Optimistic = false
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *Mutator) notify() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m *Mutator) logFailure(err *MutationError) {
	m.log.WithError(err.Err).WithFields(log.Fields{
		"mutation": err.MutationID,
		"kind":     err.Kind,
		"stage":    err.Stage,
		"task":     err.TaskID,
	}).Warn("recovered from mutation failure")
}
