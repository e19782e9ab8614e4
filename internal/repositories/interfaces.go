package repositories

import (
	"github.com/hezretaly/toefl/internal/models"
)

// ===== SHARED AGGREGATION STRUCTS =====

// StudentSectionProgress counts what a student submitted in a section and how
// many of those submissions carry a score row.
type StudentSectionProgress struct {
	SectionID    uint               `json:"section_id"`
	SectionTitle string             `json:"section_title"`
	SectionType  models.SectionType `json:"section_type"`
	Submitted    int64              `json:"submitted"`
	Scored       int64              `json:"scored"`
}

// SectionStudentCount is the number of distinct students with submissions in a section
type SectionStudentCount struct {
	SectionID    uint               `json:"section_id"`
	SectionTitle string             `json:"section_title"`
	SectionType  models.SectionType `json:"section_type"`
	StudentCount int64              `json:"student_count"`
}

// SectionMedia lists stored file references found under a section
type SectionMedia struct {
	URLs []string `json:"urls"`
}
