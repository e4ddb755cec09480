package model

import "time"

// JobStatus is the lifecycle state of an asynchronous balance job.
type JobStatus string

// Job states. Done, Failed and Cancelled are terminal.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed || s == JobCancelled
}

// BalanceJob is the unit of work flowing through the job queue.
type BalanceJob struct {
	ID          string
	Roster      []Player
	TeamSize    int
	TopN        int
	SubmittedAt time.Time
}
