package scheduler

import "time"

// Task gates one recurring orchestration step by elapsed time since it
// last ran. The state is an explicit value owned by the loop that
// drives it, not a process-wide global.
type Task struct {
	Name    string
	Every   time.Duration
	lastRun time.Time
}

// NewTask creates a task that is due immediately.
func NewTask(name string, every time.Duration) *Task {
	return &Task{Name: name, Every: every}
}

// Due reports whether at least Every has elapsed since the last run.
// A task that never ran is always due.
func (t *Task) Due(now time.Time) bool {
	if t.lastRun.IsZero() {
		return true
	}
	return now.Sub(t.lastRun) >= t.Every
}

// MarkRan records a run. The orchestrator calls this once the step's
// call has returned, whether that call reported success or a caught
// failure: a step that ran and failed still waits a full cadence before
// its next attempt.
func (t *Task) MarkRan(now time.Time) {
	t.lastRun = now
}

// LastRun returns the time of the last recorded run (zero if never).
func (t *Task) LastRun() time.Time {
	return t.lastRun
}
