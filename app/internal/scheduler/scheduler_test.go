package scheduler

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --------------- Due / MarkRan ---------------

func TestTask_DueImmediatelyAfterCreation(t *testing.T) {
	task := NewTask("statistics", time.Hour)
	if !task.Due(t0) {
		t.Error("a fresh task must be due on the first check")
	}
}

func TestTask_NotDueBeforeCadenceElapses(t *testing.T) {
	task := NewTask("statistics", time.Hour)
	task.MarkRan(t0)

	if task.Due(t0.Add(59 * time.Minute)) {
		t.Error("task due before the cadence elapsed")
	}
	if !task.Due(t0.Add(time.Hour)) {
		t.Error("task not due exactly at the cadence boundary")
	}
	if !task.Due(t0.Add(2 * time.Hour)) {
		t.Error("task not due after the cadence elapsed")
	}
}

func TestTask_MarkRanResetsTheClock(t *testing.T) {
	task := NewTask("retention", 24*time.Hour)
	task.MarkRan(t0)
	task.MarkRan(t0.Add(24 * time.Hour))

	if task.Due(t0.Add(25 * time.Hour)) {
		t.Error("task due one hour after its second run")
	}
	if !task.Due(t0.Add(48 * time.Hour)) {
		t.Error("task not due a full cadence after its second run")
	}
}

func TestTask_LastRun(t *testing.T) {
	task := NewTask("notifications", 5*time.Minute)
	if !task.LastRun().IsZero() {
		t.Error("last run must start zero")
	}

	task.MarkRan(t0)
	if !task.LastRun().Equal(t0) {
		t.Errorf("last run = %v, want %v", task.LastRun(), t0)
	}
}
