package worker

import (
	"container/list"
	"sync"
	"time"
)

type userQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher hands out relay jobs to pooled workers one user at a time.
// Per-user queues plus an LRU ready list keep a single chatty user from
// starving everyone else's upstream requests.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job

	mu        sync.Mutex
	queues    map[int64]*userQueue
	ready     *list.List // LRU queue storing user IDs
	positions map[int64]*list.Element
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, idleTimeout time.Duration) *Dispatcher {
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}
	pool := newJobChannelPool(minWorkers, maxWorkers, idleTimeout)
	jobQueue := make(chan Job, queueSize)

	d := &Dispatcher{
		queues:    make(map[int64]*userQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
		pool:      pool,
		JobQueue:  jobQueue,
	}

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

const defaultQueueSize = 16

func (d *Dispatcher) run() {
	for {
		if !d.dispatchOne() {
			job := <-d.JobQueue // nothing queued, wait for work
			d.enqueueJob(job)
			continue
		}
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		default:
		}
	}
}

// CancelUser drops all queued jobs for a user. In-flight jobs observe
// cancellation through their own context.
func (d *Dispatcher) CancelUser(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if q, ok := d.queues[userID]; ok {
		for _, job := range q.jobs {
			if job.Task != nil {
				job.Task.abandon()
			}
		}
	}
	delete(d.queues, userID)
	if elem, ok := d.positions[userID]; ok {
		d.ready.Remove(elem)
		delete(d.positions, userID)
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	userID := job.userID()

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[userID]
	if q == nil {
		q = &userQueue{}
		d.queues[userID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	elem := d.ready.PushBack(userID)
	d.positions[userID] = elem
}

// dispatchOne hands the next job from the user at the front of the LRU
// list to a worker. The worker is acquired before the job is popped so
// a CancelUser racing with a full pool can still abandon queued work.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	if d.ready.Front() == nil {
		d.mu.Unlock()
		return false
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()

	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		// Everything queued was cancelled while we waited for a worker.
		d.mu.Unlock()
		d.pool.Release(workerChan)
		return true
	}
	userID := elem.Value.(int64)
	q := d.queues[userID]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, userID)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	debugLog("[dispatcher] assign relay for user %d", userID)
	workerChan <- job
	return true
}

func (job Job) userID() int64 {
	if job.Task != nil {
		return job.Task.userID
	}
	return 0
}
