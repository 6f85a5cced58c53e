package models

import (
	"time"

	"github.com/google/uuid"
)

// LessonStatus is the stored lifecycle state of a lesson.
// Transitions are forward-only: scheduled -> live -> completed.
type LessonStatus string

const (
	LessonScheduled LessonStatus = "scheduled"
	LessonLive      LessonStatus = "live"
	LessonCompleted LessonStatus = "completed"
)

// Lesson represents a scheduled or running class session.
type Lesson struct {
	ID          uuid.UUID    `json:"id"`
	Topic       string       `json:"topic"`
	Status      LessonStatus `json:"status"`
	ScheduledAt time.Time    `json:"scheduled_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
	CreatedBy   *uuid.UUID   `json:"created_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Due reports whether a scheduled lesson's start time has passed.
func (l *Lesson) Due(now time.Time) bool {
	return l.Status == LessonScheduled && !l.ScheduledAt.After(now)
}
