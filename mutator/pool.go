package mutator

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// pool runs mutation round trips in the background on a fixed set of
// workers. When the buffer stays full past the handoff timeout the job runs
// on the caller's goroutine instead.
type pool struct {
	jobs      chan func()
	handoff   time.Duration
	log       *log.Logger
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newPool(workers, buffer int, handoff time.Duration, logger *log.Logger) *pool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	p := &pool{
		jobs:    make(chan func(), buffer),
		handoff: handoff,
		log:     logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	logger.Debugf("mutation pool started, workers: %d, buffer: %d, handoff: %v", workers, buffer, handoff)
	return p
}

func (p *pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// submit hands job to a worker, falling back to running it inline. The
// inline fallback blocks the caller for a full server round trip, so
// callers that own a render loop must not call Toggle or Delete from it.
func (p *pool) submit(job func()) {
	if p.trySubmit(job) {
		return
	}
	p.log.Warn("mutation pool saturated; processing inline")
	job()
}

func (p *pool) trySubmit(job func()) bool {
	if ok, closed := trySendNonBlocking(p.jobs, job); closed {
		return false
	} else if ok {
		return true
	}

	if p.handoff <= 0 {
		return false
	}

	timer := time.NewTimer(p.handoff)
	defer timer.Stop()

	ok, closed := sendWithTimer(p.jobs, job, timer.C)
	if closed {
		return false
	}
	return ok
}

// close stops accepting work and waits for queued jobs to finish.
func (p *pool) close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

func trySendNonBlocking(ch chan func(), job func()) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan func(), job func(), timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	case <-timer:
		return false, false
	}
}
