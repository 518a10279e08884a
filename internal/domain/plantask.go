// Package domain defines the typed records shared by every orchestrator
// component: Conversation, ConversationState, PlanTask, Message, IterationState,
// and Job. Fields are enumerated explicitly rather than carried as untyped bags.
package domain

import (
	"strconv"
	"time"
)

// TaskType discriminates the two PlanTask variants. PlanTask is a single
// struct for both: Type selects the variant, and the ANALYSIS-only fields
// (Datasets, Artifacts) are ordinary fields that the type system does not
// keep empty on LITERATURE tasks.
type TaskType string

const (
	// TaskLiterature is a literature-retrieval task (lit-<level>).
	TaskLiterature TaskType = "LITERATURE"
	// TaskAnalysis is a data-analysis task (ana-<level>).
	TaskAnalysis TaskType = "ANALYSIS"
)

// prefix returns the id prefix used to build a PlanTask's id, e.g. "lit" or "ana".
func (t TaskType) prefix() string {
	switch t {
	case TaskLiterature:
		return "lit"
	case TaskAnalysis:
		return "ana"
	default:
		return "unk"
	}
}

// PlanTask is a unit of research work created by planning and mutated only by
// the iteration that owns its Level. It is terminal once End is non-nil.
type PlanTask struct {
	ID        string
	Type      TaskType
	Level     int
	Objective string

	// Datasets lists the uploaded dataset filenames, as named by the planner,
	// that an ANALYSIS task operates over. Unused for LITERATURE tasks.
	Datasets []string

	Start *time.Time
	End   *time.Time

	// Output accumulates agent-produced text across one or more invocations
	// (e.g. one append per literature source).
	Output string

	// Artifacts holds analysis-produced artifact references (e.g. storage keys
	// for generated charts/tables). Unused for LITERATURE tasks.
	Artifacts []string

	// JobID is the external agent's task id, used for out-of-band cleanup. Not
	// required for task completion.
	JobID string
}

// TaskID builds the canonical "<type-prefix>-<level>" PlanTask id.
func TaskID(t TaskType, level int) string {
	return t.prefix() + "-" + strconv.Itoa(level)
}

// Done reports whether the task has reached its terminal state.
func (t *PlanTask) Done() bool { return t.End != nil }

// MarkStarted records the task's start time if not already set.
func (t *PlanTask) MarkStarted(now time.Time) {
	if t.Start == nil {
		t.Start = &now
	}
}

// MarkEnded records the task's end time, making it terminal. Safe to call more
// than once; only the first call takes effect so retried fan-out does not
// clobber an already-completed task's timing.
func (t *PlanTask) MarkEnded(now time.Time) {
	if t.End == nil {
		t.End = &now
	}
}
