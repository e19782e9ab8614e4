package models

import (
	"time"
)

type SectionType string

const (
	SectionReading   SectionType = "reading"
	SectionListening SectionType = "listening"
	SectionSpeaking  SectionType = "speaking"
	SectionWriting   SectionType = "writing"
)

// AllSectionTypes lists section types in the order reviews are presented
var AllSectionTypes = []SectionType{SectionSpeaking, SectionWriting, SectionReading, SectionListening}

func (t SectionType) IsValid() bool {
	switch t {
	case SectionReading, SectionListening, SectionSpeaking, SectionWriting:
		return true
	}
	return false
}

// IsChoiceBased is true for sections scored from stored option/cell selections
func (t SectionType) IsChoiceBased() bool {
	return t == SectionReading || t == SectionListening
}

// IsFreeResponse is true for sections whose submissions are graded by a reviewer
func (t SectionType) IsFreeResponse() bool {
	return t == SectionSpeaking || t == SectionWriting
}

// Fixed task counts per free-response section
const (
	SpeakingTaskCount = 4
	WritingTaskCount  = 2
)

type Section struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	SectionType SectionType `json:"section_type" gorm:"not null;size:20;index"`
	Title       string      `json:"title" gorm:"not null;size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Passages      []ReadingPassage `json:"passages,omitempty" gorm:"foreignKey:SectionID"`
	Audios        []ListeningAudio `json:"audios,omitempty" gorm:"foreignKey:SectionID"`
	SpeakingTasks []SpeakingTask   `json:"speaking_tasks,omitempty" gorm:"foreignKey:SectionID"`
	WritingTasks  []WritingTask    `json:"writing_tasks,omitempty" gorm:"foreignKey:SectionID"`
}

type ReadingPassage struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	SectionID uint   `json:"section_id" gorm:"not null;index"`
	Title     string `json:"title" gorm:"not null;size:255"`
	Content   string `json:"content" gorm:"type:text;not null"`

	CreatedAt time.Time `json:"created_at"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:ReadingPassageID"`
}

type ListeningAudio struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	SectionID uint    `json:"section_id" gorm:"not null;index"`
	Title     string  `json:"title" gorm:"not null;size:255"`
	AudioURL  string  `json:"audio_url" gorm:"not null;size:500"`
	PhotoURL  *string `json:"photo_url" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:ListeningAudioID"`
}

type SpeakingTask struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	SectionID  uint    `json:"section_id" gorm:"not null;index"`
	TaskNumber int     `json:"task_number" gorm:"not null"`
	Passage    *string `json:"passage" gorm:"type:text"`
	Prompt     string  `json:"prompt" gorm:"type:text;not null"`
	AudioURL   *string `json:"audio_url" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
}

type WritingTask struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	SectionID  uint    `json:"section_id" gorm:"not null;index"`
	TaskNumber int     `json:"task_number" gorm:"not null"`
	Passage    string  `json:"passage" gorm:"type:text;not null"`
	Prompt     string  `json:"prompt" gorm:"type:text;not null"`
	AudioURL   *string `json:"audio_url" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
}

type SpeakingResponse struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	UserID   uint   `json:"user_id" gorm:"not null;index"`
	TaskID   uint   `json:"task_id" gorm:"not null;index"`
	AudioURL string `json:"audio_url" gorm:"not null;size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User User         `json:"-" gorm:"foreignKey:UserID"`
	Task SpeakingTask `json:"-" gorm:"foreignKey:TaskID"`
}

type WritingResponse struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	UserID       uint   `json:"user_id" gorm:"not null;index"`
	TaskID       uint   `json:"task_id" gorm:"not null;index"`
	ResponseText string `json:"response_text" gorm:"type:text;not null"`
	WordCount    int    `json:"word_count" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User User        `json:"-" gorm:"foreignKey:UserID"`
	Task WritingTask `json:"-" gorm:"foreignKey:TaskID"`
}
