package domain

import "time"

// Stage names a pipeline step that can be queued.
type Stage string

const (
	StageScrape   Stage = "scrape"
	StageConcept  Stage = "concept"
	StageMotif    Stage = "motif"
	StageProducts Stage = "products"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageScrape, StageConcept, StageMotif, StageProducts:
		return true
	}
	return false
}

// TaskStatus enumerates queue row states.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "QUEUED"
	TaskRunning   TaskStatus = "RUNNING"
	TaskSucceeded TaskStatus = "SUCCEEDED"
	TaskFailed    TaskStatus = "FAILED"
)

// Task is a durable request to run one stage for one session.
type Task struct {
	ID         string
	SessionID  string
	Stage      Stage
	Regenerate bool
	Status     TaskStatus
	Attempts   int
	LastError  string
	RunAfter   time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
