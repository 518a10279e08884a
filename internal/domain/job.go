package domain

import "time"

// JobState is the lifecycle state of a durable queue record.
type JobState string

const (
	JobPending        JobState = "pending"
	JobReserved       JobState = "reserved"
	JobCompleted      JobState = "completed"
	JobFailedRetrying JobState = "failed-retrying"
	JobFailedFinal    JobState = "failed-final"
)

// DeepResearchJobData is the payload carried by every job on the deep-research
// queue. RootJobID is the first job's id in the chain and is the external
// correlator the credit collaborator keys on.
type DeepResearchJobData struct {
	UserID              string
	ConversationID      string
	MessageID           string
	StateID             string
	ConversationStateID string
	RequestedAt         time.Time
	ResearchMode        ResearchMode
	IterationNumber     int
	RootJobID           string
	IsInitialIteration  bool
	Message             string
}

// Lease describes the reservation deadline and owner of a reserved job.
type Lease struct {
	Owner    string
	Deadline time.Time
}

// Expired reports whether the lease has passed its deadline as of now.
func (l Lease) Expired(now time.Time) bool {
	return !l.Deadline.IsZero() && now.After(l.Deadline)
}

// Job is the durable scheduling record tracked by the queue.
type Job struct {
	ID          string
	QueueName   string
	Payload     DeepResearchJobData
	Attempts    int
	MaxAttempts int
	Lease       Lease
	State       JobState
}
