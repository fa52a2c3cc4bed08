package worker

// Job is the unit of work handed to a pooled worker: either one upstream
// relay on behalf of a user, or a stop signal retiring the worker.
type jobType int

const (
	Relay jobType = iota
	Stop
)

type Job struct {
	Type jobType
	Task *relayTask
}

type Worker struct {
	pool       *jobChannelPool
	jobChannel chan Job
}

func NewWorker(pool *jobChannelPool) *Worker {
	return &Worker{
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			if job.Type == Stop {
				return
			}
			if job.Task != nil {
				job.Task.run()
			}
			w.pool.Release(w.jobChannel)
		}
	}()
}
