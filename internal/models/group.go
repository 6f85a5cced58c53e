package models

import (
	"time"

	"github.com/google/uuid"
)

// GroupType distinguishes school-based from course-based study groups.
type GroupType string

const (
	GroupSchool GroupType = "school"
	GroupCourse GroupType = "course"
)

// Valid reports whether t is a known group type.
func (t GroupType) Valid() bool {
	return t == GroupSchool || t == GroupCourse
}

// StudyGroup is a shared chat room keyed by (type, name).
// At most one group should exist per pair; creation is look-up-before-insert.
type StudyGroup struct {
	ID        uuid.UUID `json:"id"`
	Type      GroupType `json:"group_type"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
