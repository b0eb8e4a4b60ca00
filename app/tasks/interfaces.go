package tasks

// TaskSchedulerInterface is the scheduling surface used by the main
// application and the API layer. The scheduler owns the worker pool and the
// periodic enqueueing of due feeds and maintenance runs.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
